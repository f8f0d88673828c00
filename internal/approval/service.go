package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// GroupStore is the aggregate store for groups and their embedded
// pending-request state.
//
// The read-modify-write contract: ReadRequest returns the current request
// (nil when absent) together with the aggregate revision; WriteRequest
// compares-and-swaps against that revision and fails with
// ErrRevisionConflict when the aggregate moved in between. All mutations of
// the pending request go through this discipline - an unguarded
// read-then-write can silently lose a concurrent vote.
type GroupStore interface {
	// ResolveGroup looks a group up by internal or external id.
	// Returns (nil, nil) when no group matches.
	ResolveGroup(ctx context.Context, ref string) (*Group, error)

	// ReadRequest returns the pending request for the group, or nil, along
	// with the aggregate revision to use for a subsequent WriteRequest.
	ReadRequest(ctx context.Context, groupID string) (*DeletionRequest, int64, error)

	// WriteRequest replaces the pending request (nil clears it) if the
	// aggregate is still at expectedRevision, returning the new revision.
	// Returns ErrRevisionConflict when the aggregate moved in between.
	WriteRequest(ctx context.Context, groupID string, req *DeletionRequest, expectedRevision int64) (int64, error)
}

// Directory resolves identities and answers membership questions.
// It is an external collaborator; implementations must tolerate being asked
// about unknown ids.
type Directory interface {
	// CountActiveMembers returns the number of active members in the group.
	// A non-positive count or an error means "unknown" - the caller falls
	// back to previously stored values.
	CountActiveMembers(ctx context.Context, groupID string) (int, error)

	// IsAdmin reports whether the identity holds admin privilege in the group.
	IsAdmin(ctx context.Context, identityID, groupID string) (bool, error)

	// IsMember reports whether the identity is a current member of the group.
	IsMember(ctx context.Context, identityID, groupID string) (bool, error)

	// ResolveIdentity resolves a voter/requester ref.
	// Returns (nil, nil) when the ref is unknown.
	ResolveIdentity(ctx context.Context, ref string) (*Identity, error)
}

// ItemStore resolves and deletes the work items targeted by a bulk deletion.
type ItemStore interface {
	// FindItems returns the subset of ids that resolve to existing items
	// belonging to groupID. Missing or foreign ids are simply absent from
	// the result.
	FindItems(ctx context.Context, ids []string, groupID string) ([]Item, error)

	// DeleteItem removes a single item. Implementations should honor the
	// context deadline so one stuck deletion cannot block a batch.
	DeleteItem(ctx context.Context, id string) error
}

// Notifier pushes human-readable summaries to a group channel.
// Delivery is best-effort: the service logs failures and never lets them
// surface on the approval or execution path.
type Notifier interface {
	Push(ctx context.Context, channelRef, text string) error
}

// Defaults for service options.
const (
	// DefaultMaxWriteRetries bounds the CAS retry loop around each
	// read-modify-write of the aggregate.
	DefaultMaxWriteRetries = 5

	// DefaultPreviewLimit bounds the item list shown in notifications.
	DefaultPreviewLimit = 5

	// DefaultNotifyTimeout caps how long a best-effort push may take.
	DefaultNotifyTimeout = 5 * time.Second
)

// Service coordinates the quorum-gated deletion workflow: initiating a
// request, registering approvals, and executing the deletion once quorum is
// reached. All collaborators are injected explicitly so tests can substitute
// fakes without a global registry.
type Service struct {
	groups   GroupStore
	dir      Directory
	items    ItemStore
	notifier Notifier

	clock  Clock
	idGen  IDGenerator
	logger *slog.Logger

	maxRetries    int
	previewLimit  int
	requestTTL    time.Duration // 0 = requests never expire
	deleteTimeout time.Duration // 0 = no per-item deadline
	notifyTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock substitutes the timestamp source. Used by tests.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator substitutes the request-id source. Used by tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.idGen = g }
}

// WithLogger substitutes the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxWriteRetries bounds the CAS retry loop. Values below 1 are ignored.
func WithMaxWriteRetries(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxRetries = n
		}
	}
}

// WithPreviewLimit bounds the item preview in notifications.
// Values below 1 are ignored.
func WithPreviewLimit(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.previewLimit = n
		}
	}
}

// WithRequestTTL enables expiry of pending requests. A request older than
// ttl is cleared on the next read or vote with an "expired" outcome.
// Zero (the default) preserves the original behavior: requests never expire.
func WithRequestTTL(ttl time.Duration) Option {
	return func(s *Service) { s.requestTTL = ttl }
}

// WithDeleteTimeout applies a per-item deadline during execution so one
// stuck deletion cannot block the rest of the batch.
func WithDeleteTimeout(d time.Duration) Option {
	return func(s *Service) { s.deleteTimeout = d }
}

// NewService creates a Service with the given collaborators.
func NewService(groups GroupStore, dir Directory, items ItemStore, n Notifier, opts ...Option) *Service {
	s := &Service{
		groups:        groups,
		dir:           dir,
		items:         items,
		notifier:      n,
		clock:         SystemClock{},
		idGen:         UUIDv7Generator{},
		logger:        slog.Default(),
		maxRetries:    DefaultMaxWriteRetries,
		previewLimit:  DefaultPreviewLimit,
		notifyTimeout: DefaultNotifyTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// notify pushes a message to the group channel, best-effort.
// Failures are logged and swallowed - notification delivery must never
// affect the outcome of the calling operation.
func (s *Service) notify(ctx context.Context, group *Group, text string) {
	if s.notifier == nil || group.ChannelRef == "" {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Push(nctx, group.ChannelRef, text); err != nil {
		s.logger.Warn("notification push failed",
			"group_id", group.ID,
			"channel", group.ChannelRef,
			"error", err,
		)
	}
}

// expired reports whether the request outlived the configured TTL.
// Always false when no TTL is configured.
func (s *Service) expired(req *DeletionRequest) bool {
	if s.requestTTL <= 0 {
		return false
	}
	return s.clock.Now().Sub(req.CreatedAt) > s.requestTTL
}

// taskPreview renders a bounded preview of the task list, with a "+N more"
// suffix when the list exceeds the configured limit.
func (s *Service) taskPreview(tasks []TaskSnapshot) string {
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
	}
	return boundedList(titles, s.previewLimit)
}

// boundedList joins up to limit entries, appending "+N more" for the rest.
func boundedList(entries []string, limit int) string {
	if len(entries) <= limit {
		return strings.Join(entries, ", ")
	}
	shown := strings.Join(entries[:limit], ", ")
	return fmt.Sprintf("%s, +%d more", shown, len(entries)-limit)
}
