package approval

import "time"

// Filter records the selection intent of a deletion request.
// It is informational only - the authoritative target set is the
// task snapshot list captured at creation time.
type Filter string

const (
	// FilterAll selects every task in the group.
	FilterAll Filter = "all"
	// FilterIncomplete selects tasks that are not yet done.
	FilterIncomplete Filter = "incomplete"
	// FilterCustom selects an explicit list of task ids.
	FilterCustom Filter = "custom"
)

// ValidFilter reports whether f is one of the known filter tags.
func ValidFilter(f Filter) bool {
	switch f {
	case FilterAll, FilterIncomplete, FilterCustom:
		return true
	}
	return false
}

// Requester is an identity snapshot taken when a request is created.
type Requester struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
}

// TaskSnapshot is an immutable copy of a work item captured at request
// creation time. Voters see this snapshot even if the underlying item is
// edited before execution - a stable approval prompt is preferred over a
// perfectly live preview.
type TaskSnapshot struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Assignees []string `json:"assignees,omitempty"`
}

// Vote records a single member's approval.
type Vote struct {
	VoterID     string    `json:"voter_id"`
	DisplayName string    `json:"display_name"`
	ApprovedAt  time.Time `json:"approved_at"`
}

// DeletionRequest is the pending bulk-deletion record embedded in a group
// aggregate. At most one may exist per group at any time.
//
// TotalMembers and RequiredApprovals are re-derived from the live membership
// directory on every read; the stored values act as fallbacks when the
// directory is unavailable.
type DeletionRequest struct {
	ID                string         `json:"id"`
	Filter            Filter         `json:"filter"`
	RequestedBy       Requester      `json:"requested_by"`
	CreatedAt         time.Time      `json:"created_at"`
	Tasks             []TaskSnapshot `json:"tasks"`
	TotalMembers      int            `json:"total_members"`
	RequiredApprovals int            `json:"required_approvals"`
	Approvals         []Vote         `json:"approvals"`

	// ExecutingAt marks the request as claimed by a running executor. The
	// claim is written compare-and-swap before any item is deleted, which
	// is what makes execution exactly-once under concurrent votes. The
	// executing state is transient; callers observe the request as pending
	// until it is cleared.
	ExecutingAt *time.Time `json:"executing_at,omitempty"`
}

// Executing reports whether a deletion executor has claimed this request.
func (r *DeletionRequest) Executing() bool {
	return r.ExecutingAt != nil
}

// HasApproval reports whether voterID already appears in the approval list.
func (r *DeletionRequest) HasApproval(voterID string) bool {
	for _, v := range r.Approvals {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}

// QuorumReached reports whether the collected approvals satisfy the stored
// threshold.
func (r *DeletionRequest) QuorumReached() bool {
	return len(r.Approvals) >= r.RequiredApprovals
}

// TaskIDs returns the ids of all snapshot tasks in order.
func (r *DeletionRequest) TaskIDs() []string {
	ids := make([]string, len(r.Tasks))
	for i, t := range r.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Clone returns a deep copy of the request. Store implementations hand out
// clones so callers can mutate working copies without aliasing stored state.
func (r *DeletionRequest) Clone() *DeletionRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Tasks = make([]TaskSnapshot, len(r.Tasks))
	for i, t := range r.Tasks {
		out.Tasks[i] = t
		if t.Assignees != nil {
			out.Tasks[i].Assignees = append([]string(nil), t.Assignees...)
		}
	}
	out.Approvals = append([]Vote(nil), r.Approvals...)
	if r.ExecutingAt != nil {
		at := *r.ExecutingAt
		out.ExecutingAt = &at
	}
	return &out
}

// dedupeVotes removes duplicate voter ids, keeping the first occurrence.
// Guards against corruption written by earlier versions; under the CAS
// write discipline new duplicates cannot appear.
func dedupeVotes(votes []Vote) []Vote {
	seen := make(map[string]bool, len(votes))
	out := votes[:0:0]
	for _, v := range votes {
		if seen[v.VoterID] {
			continue
		}
		seen[v.VoterID] = true
		out = append(out, v)
	}
	return out
}

// Group is the aggregate that owns the embedded pending-request state.
type Group struct {
	// ID is the internal identifier.
	ID string
	// ExternalID is the identifier used by the surrounding chat layer.
	ExternalID string
	// Name is the human-readable group name.
	Name string
	// ChannelRef addresses the group's notification channel.
	ChannelRef string
}

// Identity is a resolved voter or requester.
type Identity struct {
	ID          string
	DisplayName string
}

// Item is a live work item as returned by the work-item store.
type Item struct {
	ID        string
	GroupID   string
	Title     string
	Status    string
	Assignees []string
}
