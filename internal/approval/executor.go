package approval

import (
	"context"
	"errors"
	"fmt"
)

// execute performs the gated bulk deletion for a fully approved request.
//
// Items are deleted sequentially - one at a time keeps partial-failure
// accounting simple and deterministic at the expected batch sizes. A single
// item's failure is recorded and never aborts the rest of the batch.
//
// After attempting every item the pending request is cleared
// unconditionally, even if some deletions failed: a fully voted request
// stuck in pending forever is worse than surfacing a partial-failure report.
// A best-effort completion notification summarizes the result.
func (s *Service) execute(ctx context.Context, group *Group, req *DeletionRequest) *ExecutionReport {
	report := &ExecutionReport{
		Approvals: len(req.Approvals),
		Required:  req.RequiredApprovals,
	}

	for _, t := range req.Tasks {
		if err := s.deleteItem(ctx, t.ID); err != nil {
			s.logger.Warn("item deletion failed",
				"group_id", group.ID,
				"request_id", req.ID,
				"item_id", t.ID,
				"error", err,
			)
			report.Failed = append(report.Failed, FailedItem{ID: t.ID, Reason: err.Error()})
			continue
		}
		report.DeletedTitles = append(report.DeletedTitles, t.Title)
	}

	s.clearRequest(ctx, group, req.ID)

	s.logger.Info("deletion executed",
		"group_id", group.ID,
		"request_id", req.ID,
		"deleted", report.DeletedCount(),
		"failed", len(report.Failed),
		"approvals", report.Approvals,
	)

	text := fmt.Sprintf("deletion approved by %d member(s): removed %d item(s)",
		report.Approvals, report.DeletedCount())
	if len(report.DeletedTitles) > 0 {
		text += ": " + boundedList(report.DeletedTitles, s.previewLimit)
	}
	if len(report.Failed) > 0 {
		text += fmt.Sprintf(" (%d item(s) could not be deleted)", len(report.Failed))
	}
	s.notify(ctx, group, text)

	return report
}

// deleteItem removes a single work item, applying the configured per-item
// deadline so one stuck deletion cannot block the remaining batch.
func (s *Service) deleteItem(ctx context.Context, id string) error {
	if s.deleteTimeout > 0 {
		dctx, cancel := context.WithTimeout(ctx, s.deleteTimeout)
		defer cancel()
		return s.items.DeleteItem(dctx, id)
	}
	return s.items.DeleteItem(ctx, id)
}

// clearRequest removes the executed request from the aggregate under the
// CAS discipline. Clearing is keyed to the request id: if a re-read shows a
// different (newer) request, someone else already cleared ours and the loop
// stops. Retry exhaustion is logged, not returned - the deletions already
// happened and the caller's outcome must reflect that.
func (s *Service) clearRequest(ctx context.Context, group *Group, requestID string) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, rev, err := s.groups.ReadRequest(ctx, group.ID)
		if err != nil {
			s.logger.Error("clear after execution: read failed",
				"group_id", group.ID,
				"request_id", requestID,
				"error", err,
			)
			return
		}
		if current == nil || current.ID != requestID {
			return // already cleared or superseded
		}

		_, err = s.groups.WriteRequest(ctx, group.ID, nil, rev)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrRevisionConflict) {
			s.logger.Error("clear after execution: write failed",
				"group_id", group.ID,
				"request_id", requestID,
				"error", err,
			)
			return
		}
	}

	s.logger.Error("clear after execution: retries exhausted",
		"group_id", group.ID,
		"request_id", requestID,
	)
}
