package approval

import (
	"context"
	"errors"
	"fmt"
)

// InitiateParams carries the inputs of an Initiate call.
type InitiateParams struct {
	// GroupRef is an internal or external group identifier.
	GroupRef string
	// RequesterRef identifies the admin asking for the deletion.
	RequesterRef string
	// ItemIDs are the targeted work items. Must be non-empty and all
	// belong to the group.
	ItemIDs []string
	// Filter records the selection intent (all | incomplete | custom).
	Filter Filter
}

// Initiate creates a pending deletion request on the group aggregate.
//
// Preconditions are checked in order, each with a distinct failure:
// non-empty selection, known filter, resolvable group, no existing pending
// request, admin privilege, resolvable requester identity, and all item ids
// resolving to items of this group. Any failure is returned synchronously;
// the caller surfaces a user-facing message and takes no further action.
//
// On success the resolved items are snapshotted, the approval threshold is
// derived (with the item count as fallback when the directory is
// unavailable), the request is persisted with an empty approval list, and a
// best-effort notification summarizes it to the group channel.
func (s *Service) Initiate(ctx context.Context, p InitiateParams) (*DeletionRequest, error) {
	if len(p.ItemIDs) == 0 {
		return nil, ErrEmptySelection
	}
	if !ValidFilter(p.Filter) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, p.Filter)
	}

	group, err := s.groups.ResolveGroup(ctx, p.GroupRef)
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	existing, _, err := s.groups.ReadRequest(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("read pending request: %w", err)
	}
	if existing != nil && !s.expired(existing) {
		return nil, ErrRequestPending
	}

	admin, err := s.dir.IsAdmin(ctx, p.RequesterRef, group.ID)
	if err != nil {
		return nil, fmt.Errorf("check admin privilege: %w", err)
	}
	if !admin {
		return nil, ErrNotAdmin
	}

	requester, err := s.dir.ResolveIdentity(ctx, p.RequesterRef)
	if err != nil {
		return nil, fmt.Errorf("resolve requester: %w", err)
	}
	if requester == nil {
		return nil, ErrUnknownRequester
	}

	tasks, err := s.snapshotItems(ctx, group.ID, p.ItemIDs)
	if err != nil {
		return nil, err
	}

	req := &DeletionRequest{
		ID:     s.idGen.Generate(),
		Filter: p.Filter,
		RequestedBy: Requester{
			IdentityID:  requester.ID,
			DisplayName: requester.DisplayName,
		},
		CreatedAt: s.clock.Now(),
		Tasks:     tasks,
		Approvals: []Vote{},
	}

	// Threshold fallbacks are derived from the selection size so a request
	// created while the directory is unreachable still has a sane gate.
	fallbackTotal := max(len(tasks), 1)
	fallbackRequired := max(ceilThird(fallbackTotal), 1)
	live, err := s.dir.CountActiveMembers(ctx, group.ID)
	if err != nil {
		s.logger.Warn("member count unavailable, using fallback",
			"group_id", group.ID,
			"error", err,
		)
		live = 0
	}
	th := ComputeThreshold(live, fallbackTotal, fallbackRequired)
	req.TotalMembers = th.TotalMembers
	req.RequiredApprovals = th.RequiredApprovals

	if err := s.createRequest(ctx, group.ID, req); err != nil {
		return nil, err
	}

	s.logger.Info("deletion request created",
		"group_id", group.ID,
		"request_id", req.ID,
		"items", len(req.Tasks),
		"required_approvals", req.RequiredApprovals,
	)

	s.notify(ctx, group, fmt.Sprintf(
		"%s requested deletion of %d item(s): %s. %d approval(s) required.",
		req.RequestedBy.DisplayName, len(req.Tasks), s.taskPreview(req.Tasks), req.RequiredApprovals,
	))

	return req, nil
}

// snapshotItems resolves every requested id against the work-item store and
// captures immutable display snapshots. Any id that does not resolve to an
// item of this group fails the whole call with a MissingItemsError naming
// the offenders.
func (s *Service) snapshotItems(ctx context.Context, groupID string, ids []string) ([]TaskSnapshot, error) {
	found, err := s.items.FindItems(ctx, ids, groupID)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}

	byID := make(map[string]Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}

	var missing []string
	tasks := make([]TaskSnapshot, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		it, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		tasks = append(tasks, TaskSnapshot{
			ID:        it.ID,
			Title:     it.Title,
			Status:    it.Status,
			Assignees: it.Assignees,
		})
	}
	if len(missing) > 0 {
		return nil, &MissingItemsError{GroupID: groupID, ItemIDs: missing}
	}

	return tasks, nil
}

// createRequest persists a new request under the CAS discipline. A bounded
// retry loop re-reads on revision conflict; discovering a live request on
// re-read means another admin won the race and the call fails with
// ErrRequestPending.
func (s *Service) createRequest(ctx context.Context, groupID string, req *DeletionRequest) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		existing, rev, err := s.groups.ReadRequest(ctx, groupID)
		if err != nil {
			return fmt.Errorf("read pending request: %w", err)
		}
		if existing != nil && !s.expired(existing) {
			return ErrRequestPending
		}

		_, err = s.groups.WriteRequest(ctx, groupID, req, rev)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return fmt.Errorf("write pending request: %w", err)
		}
	}
	return fmt.Errorf("create request for group %s: %w", groupID, ErrRevisionConflict)
}
