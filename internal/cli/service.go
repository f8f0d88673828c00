package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/purgegate/internal/approval"
	"github.com/roach88/purgegate/internal/notify"
	"github.com/roach88/purgegate/internal/store"
)

// openStore opens the SQLite database, mapping failures to command errors.
func openStore(path string) (*store.Store, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return s, nil
}

// newLogger builds the CLI logger. Diagnostics go to errWriter so they never
// corrupt JSON output on stdout; verbose lowers the level to Debug.
func newLogger(errWriter io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{Level: level}))
}

// newService wires the approval service against the store's reference
// backends. Notifications land in the log; the CLI has no chat channel to
// push to.
func newService(s *store.Store, logger *slog.Logger) *approval.Service {
	return approval.NewService(
		s.Groups(),
		s.Directory(),
		s.Items(),
		notify.NewLogNotifier(logger),
		approval.WithLogger(logger),
	)
}
