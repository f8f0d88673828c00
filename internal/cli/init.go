package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	DB string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database and apply schema migrations.

Safe to run repeatedly; an existing database is migrated in place.

Example:
  purgegate init --db purgegate.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return f.Success(fmt.Sprintf("database ready at %s", opts.DB))
}
