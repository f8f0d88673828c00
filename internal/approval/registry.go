package approval

import (
	"context"
	"errors"
	"fmt"
)

// PendingRequest loads the pending deletion request for a group, refreshed
// against live state.
//
// On every read the snapshot task ids are re-resolved against the work-item
// store; tasks that no longer resolve are dropped from the working set. If
// nothing survives, the stored request is cleared and absent is returned -
// an irreversible bulk action targeting zero live items is meaningless.
// Surviving requests get their approval list deduplicated and their
// threshold re-derived from the live membership directory, and the refreshed
// snapshot is persisted.
//
// Returns (nil, nil) when the group is unknown or nothing is pending.
func (s *Service) PendingRequest(ctx context.Context, groupRef string) (*DeletionRequest, error) {
	group, err := s.groups.ResolveGroup(ctx, groupRef)
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}
	if group == nil {
		return nil, nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		req, rev, err := s.groups.ReadRequest(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("read pending request: %w", err)
		}
		if req == nil {
			return nil, nil
		}

		// A claimed request is being executed right now; refreshing or
		// auto-clearing under the executor would only fight it.
		if req.Executing() {
			return req, nil
		}

		if s.expired(req) {
			if done, err := s.tryClear(ctx, group, req, rev, "the pending deletion request expired and was cleared"); err != nil {
				return nil, err
			} else if done {
				return nil, nil
			}
			continue // lost the race, re-read
		}

		surviving, err := s.survivingTasks(ctx, group.ID, req)
		if err != nil {
			return nil, err
		}
		if len(surviving) == 0 {
			if done, err := s.tryClear(ctx, group, req, rev, "deletion request cleared: the targeted items no longer exist"); err != nil {
				return nil, err
			} else if done {
				return nil, nil
			}
			continue
		}

		req.Tasks = surviving
		req.Approvals = dedupeVotes(req.Approvals)
		s.refreshThreshold(ctx, group.ID, req)

		_, err = s.groups.WriteRequest(ctx, group.ID, req, rev)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return nil, fmt.Errorf("persist refreshed request: %w", err)
		}
	}

	return nil, fmt.Errorf("refresh request for group %s: %w", group.ID, ErrRevisionConflict)
}

// RegisterApproval records a member's vote on the pending request.
//
// Expected conditions never surface as errors - the tagged Outcome lets the
// calling layer render a reply without exception handling. A non-nil error
// is reserved for infrastructure failure (store or directory I/O).
//
// Votes are idempotent per voter: repeated approvals from the same identity
// never double-count. When a vote brings the approval count to the
// threshold, this call claims the request (a CAS write of the executing
// marker) and runs the deletion executor synchronously. Concurrent callers
// that lose a CAS race re-read and re-apply themselves, so no vote is ever
// silently dropped and execution happens exactly once.
func (s *Service) RegisterApproval(ctx context.Context, groupRef, voterRef string) (Outcome, error) {
	group, err := s.groups.ResolveGroup(ctx, groupRef)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve group: %w", err)
	}
	if group == nil {
		return errorOutcome("group not found"), nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		req, rev, err := s.groups.ReadRequest(ctx, group.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("read pending request: %w", err)
		}
		if req == nil {
			return noopOutcome("nothing pending"), nil
		}

		if req.Executing() {
			return noopOutcome("a deletion is already in progress"), nil
		}

		if s.expired(req) {
			if done, err := s.tryClear(ctx, group, req, rev, "the pending deletion request expired and was cleared"); err != nil {
				return Outcome{}, err
			} else if done {
				return expiredOutcome(), nil
			}
			continue
		}

		surviving, err := s.survivingTasks(ctx, group.ID, req)
		if err != nil {
			return Outcome{}, err
		}
		if len(surviving) == 0 {
			if done, err := s.tryClear(ctx, group, req, rev, "deletion request cleared: the targeted items no longer exist"); err != nil {
				return Outcome{}, err
			} else if done {
				return noopOutcome("nothing pending: the targeted items no longer exist"), nil
			}
			continue
		}

		voter, err := s.dir.ResolveIdentity(ctx, voterRef)
		if err != nil {
			return Outcome{}, fmt.Errorf("resolve voter: %w", err)
		}
		if voter == nil {
			return errorOutcome("could not resolve your identity yet, please retry shortly"), nil
		}

		member, err := s.dir.IsMember(ctx, voter.ID, group.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return errorOutcome("only members may approve"), nil
		}

		req.Approvals = dedupeVotes(req.Approvals)

		// Already ripe without an executor: a threshold re-derivation (for
		// example after the membership shrank) can leave the stored request
		// at quorum. Any valid approval attempt picks it up and executes;
		// the claim write keeps that exactly-once.
		if req.QuorumReached() {
			out, retry, err := s.claimAndExecute(ctx, group, req, rev)
			if err != nil {
				return Outcome{}, err
			}
			if retry {
				continue
			}
			return out, nil
		}

		if req.HasApproval(voter.ID) {
			return noopOutcome("already approved"), nil
		}

		req.Approvals = append(req.Approvals, Vote{
			VoterID:     voter.ID,
			DisplayName: voter.DisplayName,
			ApprovedAt:  s.clock.Now(),
		})
		s.refreshThreshold(ctx, group.ID, req)

		newRev, err := s.groups.WriteRequest(ctx, group.ID, req, rev)
		if errors.Is(err, ErrRevisionConflict) {
			continue // re-read and re-apply this single vote
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("persist approval: %w", err)
		}

		s.logger.Info("approval recorded",
			"group_id", group.ID,
			"request_id", req.ID,
			"voter_id", voter.ID,
			"approved", len(req.Approvals),
			"required", req.RequiredApprovals,
		)

		if req.QuorumReached() {
			out, retry, err := s.claimAndExecute(ctx, group, req, newRev)
			if err != nil {
				return Outcome{}, err
			}
			if retry {
				continue
			}
			return out, nil
		}
		return pendingOutcome(len(req.Approvals), req.RequiredApprovals), nil
	}

	return errorOutcome("could not record approval due to concurrent updates, please retry"), nil
}

// claimAndExecute writes the executing marker at the given revision and, on
// success, runs the executor. retry=true means the claim lost a CAS race and
// the caller should re-read to find out what happened (typically the marker
// or a cleared aggregate).
func (s *Service) claimAndExecute(ctx context.Context, group *Group, req *DeletionRequest, rev int64) (out Outcome, retry bool, err error) {
	claimed := req.Clone()
	now := s.clock.Now()
	claimed.ExecutingAt = &now

	_, err = s.groups.WriteRequest(ctx, group.ID, claimed, rev)
	if errors.Is(err, ErrRevisionConflict) {
		return Outcome{}, true, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("claim execution: %w", err)
	}

	report := s.execute(ctx, group, claimed)
	return executedOutcome(report), false, nil
}

// survivingTasks re-resolves the snapshot task ids against the live
// work-item store and returns the snapshots whose items still exist.
func (s *Service) survivingTasks(ctx context.Context, groupID string, req *DeletionRequest) ([]TaskSnapshot, error) {
	live, err := s.items.FindItems(ctx, req.TaskIDs(), groupID)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot items: %w", err)
	}

	alive := make(map[string]bool, len(live))
	for _, it := range live {
		alive[it.ID] = true
	}

	surviving := make([]TaskSnapshot, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		if alive[t.ID] {
			surviving = append(surviving, t)
		}
	}
	return surviving, nil
}

// refreshThreshold re-derives the threshold from the live membership count,
// with the stored values as fallback. The collected approval count floors
// the member total so a quorum already reached cannot be invalidated by a
// shrinking (or temporarily unreadable) membership count.
func (s *Service) refreshThreshold(ctx context.Context, groupID string, req *DeletionRequest) {
	live, err := s.dir.CountActiveMembers(ctx, groupID)
	if err != nil {
		s.logger.Warn("member count unavailable, keeping stored threshold",
			"group_id", groupID,
			"error", err,
		)
		live = 0
	}

	th := ComputeThreshold(live, req.TotalMembers, req.RequiredApprovals)
	if n := len(req.Approvals); th.TotalMembers < n {
		th.TotalMembers = n
		th.RequiredApprovals = max(ceilThird(n), 1)
	}

	req.TotalMembers = th.TotalMembers
	req.RequiredApprovals = th.RequiredApprovals
}

// tryClear removes the stored request at the given revision and pushes a
// best-effort notification. Returns done=false on a revision conflict so the
// caller can re-read and re-evaluate.
func (s *Service) tryClear(ctx context.Context, group *Group, req *DeletionRequest, rev int64, reason string) (done bool, err error) {
	_, err = s.groups.WriteRequest(ctx, group.ID, nil, rev)
	if errors.Is(err, ErrRevisionConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("clear pending request: %w", err)
	}

	s.logger.Info("pending request cleared",
		"group_id", group.ID,
		"request_id", req.ID,
		"reason", reason,
	)
	s.notify(ctx, group, reason)
	return true, nil
}
