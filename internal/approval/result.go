package approval

import "fmt"

// Status tags the outcome of a RegisterApproval call. Callers are expected
// to switch over every case.
type Status string

const (
	// StatusPending means the vote was recorded but quorum is not yet reached.
	StatusPending Status = "pending"
	// StatusExecuted means this vote reached quorum and the deletion ran.
	StatusExecuted Status = "executed"
	// StatusNoop means nothing changed (no pending request, or the voter
	// had already approved).
	StatusNoop Status = "noop"
	// StatusError means the vote could not be processed (unknown group,
	// unresolvable voter, non-member, or write contention exhausted).
	StatusError Status = "error"
	// StatusExpired means the pending request outlived its TTL and was
	// cleared instead of accepting the vote.
	StatusExpired Status = "expired"
)

// FailedItem records a single item whose deletion failed during execution.
type FailedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ExecutionReport summarizes a terminal executor run. A non-empty Failed
// list is data, not an error - partial failure never aborts the batch.
type ExecutionReport struct {
	DeletedTitles []string     `json:"deleted_titles"`
	Failed        []FailedItem `json:"failed,omitempty"`
	Approvals     int          `json:"approvals"`
	Required      int          `json:"required"`
}

// DeletedCount returns the number of successfully deleted items.
func (r *ExecutionReport) DeletedCount() int {
	return len(r.DeletedTitles)
}

// Outcome is the tagged result of RegisterApproval.
//
// Approved and Required are populated for StatusPending. Report is populated
// for StatusExecuted. Message always carries a human-readable summary for
// the calling layer to render.
type Outcome struct {
	Status   Status
	Message  string
	Approved int
	Required int
	Report   *ExecutionReport
}

func pendingOutcome(approved, required int) Outcome {
	remaining := required - approved
	return Outcome{
		Status:   StatusPending,
		Message:  fmt.Sprintf("approval recorded (%d/%d), %d more needed", approved, required, remaining),
		Approved: approved,
		Required: required,
	}
}

func noopOutcome(msg string) Outcome {
	return Outcome{Status: StatusNoop, Message: msg}
}

func errorOutcome(msg string) Outcome {
	return Outcome{Status: StatusError, Message: msg}
}

func executedOutcome(report *ExecutionReport) Outcome {
	msg := fmt.Sprintf("quorum reached, deleted %d item(s)", report.DeletedCount())
	if len(report.Failed) > 0 {
		msg = fmt.Sprintf("quorum reached, deleted %d item(s), %d failed", report.DeletedCount(), len(report.Failed))
	}
	return Outcome{
		Status:  StatusExecuted,
		Message: msg,
		Report:  report,
	}
}

func expiredOutcome() Outcome {
	return Outcome{Status: StatusExpired, Message: "the pending deletion request expired and was cleared"}
}
