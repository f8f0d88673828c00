package approval

import (
	"errors"
	"fmt"
	"strings"
)

// Initiate precondition failures. Each precondition maps to a distinct
// sentinel so callers can render a specific user-facing message.
var (
	// ErrEmptySelection indicates the caller supplied no item ids.
	ErrEmptySelection = errors.New("no items selected for deletion")

	// ErrInvalidFilter indicates an unknown filter tag.
	ErrInvalidFilter = errors.New("invalid selection filter")

	// ErrGroupNotFound indicates the group ref resolved to nothing.
	ErrGroupNotFound = errors.New("group not found")

	// ErrRequestPending indicates a deletion is already awaiting approval
	// for this group. At most one request may exist per group.
	ErrRequestPending = errors.New("a deletion is already awaiting approval")

	// ErrNotAdmin indicates the requester lacks admin privilege in the group.
	ErrNotAdmin = errors.New("only group admins may request a bulk deletion")

	// ErrUnknownRequester indicates the requester identity could not be
	// resolved.
	ErrUnknownRequester = errors.New("requester identity not found")
)

// Store contract errors.
var (
	// ErrRevisionConflict is returned by GroupStore.WriteRequest when the
	// aggregate revision moved between read and write. Callers re-read,
	// re-apply their single mutation, and retry.
	ErrRevisionConflict = errors.New("group revision conflict")
)

// MissingItemsError reports item ids that did not resolve to existing items
// belonging to the target group.
type MissingItemsError struct {
	GroupID string
	ItemIDs []string
}

// Error implements the error interface.
func (e *MissingItemsError) Error() string {
	return fmt.Sprintf("items not found in group %s: %s", e.GroupID, strings.Join(e.ItemIDs, ", "))
}

// IsMissingItems reports whether err is a MissingItemsError.
// Uses errors.As to handle wrapped errors.
func IsMissingItems(err error) bool {
	var me *MissingItemsError
	return errors.As(err, &me)
}
