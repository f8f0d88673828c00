package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/purgegate/internal/approval"
)

func seedGroup(t *testing.T, g *Groups, grp approval.Group) {
	t.Helper()
	if err := g.UpsertGroup(context.Background(), grp); err != nil {
		t.Fatalf("UpsertGroup() failed: %v", err)
	}
}

func TestGroups_ResolveByInternalAndExternalID(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42", Name: "Team", ChannelRef: "#ops"})

	for _, ref := range []string{"g1", "chat-42"} {
		grp, err := g.ResolveGroup(ctx, ref)
		if err != nil {
			t.Fatalf("ResolveGroup(%q) failed: %v", ref, err)
		}
		if grp == nil || grp.ID != "g1" {
			t.Errorf("ResolveGroup(%q) = %+v, want group g1", ref, grp)
		}
	}

	grp, err := g.ResolveGroup(ctx, "nope")
	if err != nil {
		t.Fatalf("ResolveGroup(nope) failed: %v", err)
	}
	if grp != nil {
		t.Errorf("ResolveGroup(nope) = %+v, want nil", grp)
	}
}

func TestGroups_RequestRoundTrip(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42"})

	// Fresh aggregate: no request, revision zero.
	req, rev, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if req != nil || rev != 0 {
		t.Fatalf("fresh aggregate = (%+v, %d), want (nil, 0)", req, rev)
	}

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := &approval.DeletionRequest{
		ID:     "req-1",
		Filter: approval.FilterCustom,
		RequestedBy: approval.Requester{
			IdentityID:  "u1",
			DisplayName: "Ann",
		},
		CreatedAt: created,
		Tasks: []approval.TaskSnapshot{
			{ID: "t1", Title: "one", Status: "open", Assignees: []string{"u2"}},
			{ID: "t2", Title: "two", Status: "done"},
		},
		TotalMembers:      10,
		RequiredApprovals: 4,
		Approvals: []approval.Vote{
			{VoterID: "u2", DisplayName: "Ben", ApprovedAt: created.Add(time.Minute)},
		},
	}

	newRev, err := g.WriteRequest(ctx, "g1", want, 0)
	if err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}
	if newRev != 1 {
		t.Errorf("new revision = %d, want 1", newRev)
	}

	got, rev, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if rev != 1 {
		t.Errorf("revision = %d, want 1", rev)
	}
	if got == nil {
		t.Fatal("ReadRequest() = nil, want stored request")
	}
	if got.ID != want.ID || got.Filter != want.Filter {
		t.Errorf("request header = (%s, %s), want (%s, %s)", got.ID, got.Filter, want.ID, want.Filter)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if len(got.Tasks) != 2 || got.Tasks[0].Assignees[0] != "u2" {
		t.Errorf("tasks = %+v, want snapshot with assignees", got.Tasks)
	}
	if len(got.Approvals) != 1 || got.Approvals[0].VoterID != "u2" {
		t.Errorf("approvals = %+v, want vote from u2", got.Approvals)
	}
	if got.Executing() {
		t.Error("Executing() = true for unclaimed request")
	}
}

func TestGroups_ExecutingMarkerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42"})

	claimedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	req := &approval.DeletionRequest{ID: "req-1", ExecutingAt: &claimedAt}
	if _, err := g.WriteRequest(ctx, "g1", req, 0); err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}

	got, _, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if !got.Executing() {
		t.Fatal("Executing() = false after storing claim marker")
	}
	if !got.ExecutingAt.Equal(claimedAt) {
		t.Errorf("ExecutingAt = %v, want %v", got.ExecutingAt, claimedAt)
	}
}

func TestGroups_WriteConflictOnStaleRevision(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42"})

	req := &approval.DeletionRequest{ID: "req-1"}
	if _, err := g.WriteRequest(ctx, "g1", req, 0); err != nil {
		t.Fatalf("first WriteRequest() failed: %v", err)
	}

	// Stale revision must conflict, not overwrite.
	_, err := g.WriteRequest(ctx, "g1", &approval.DeletionRequest{ID: "req-2"}, 0)
	if !errors.Is(err, approval.ErrRevisionConflict) {
		t.Fatalf("stale write error = %v, want ErrRevisionConflict", err)
	}

	got, _, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if got.ID != "req-1" {
		t.Errorf("stored request = %s, want req-1 (stale write overwrote)", got.ID)
	}
}

func TestGroups_ClearRequest(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42"})

	if _, err := g.WriteRequest(ctx, "g1", &approval.DeletionRequest{ID: "req-1"}, 0); err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}

	newRev, err := g.WriteRequest(ctx, "g1", nil, 1)
	if err != nil {
		t.Fatalf("WriteRequest(clear) failed: %v", err)
	}
	if newRev != 2 {
		t.Errorf("revision after clear = %d, want 2", newRev)
	}

	got, rev, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if got != nil {
		t.Errorf("request after clear = %+v, want nil", got)
	}
	if rev != 2 {
		t.Errorf("revision = %d, want 2", rev)
	}
}

func TestGroups_UnknownGroup(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	if _, _, err := g.ReadRequest(ctx, "nope"); err == nil {
		t.Error("ReadRequest(unknown) = nil error, want failure")
	}
	if _, err := g.WriteRequest(ctx, "nope", nil, 0); err == nil {
		t.Error("WriteRequest(unknown) = nil error, want failure")
	}
}

func TestGroups_UpsertPreservesRevision(t *testing.T) {
	s := openTestStore(t)
	g := s.Groups()
	ctx := context.Background()

	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42", Name: "Old"})
	if _, err := g.WriteRequest(ctx, "g1", &approval.DeletionRequest{ID: "req-1"}, 0); err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}

	// A membership sync updating the group metadata must not reset the
	// aggregate revision or drop the pending request.
	seedGroup(t, g, approval.Group{ID: "g1", ExternalID: "chat-42", Name: "New"})

	req, rev, err := g.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if req == nil || rev != 1 {
		t.Errorf("after upsert = (%+v, %d), want request at revision 1", req, rev)
	}

	grp, err := g.ResolveGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("ResolveGroup() failed: %v", err)
	}
	if grp.Name != "New" {
		t.Errorf("group name = %q, want %q", grp.Name, "New")
	}
}
