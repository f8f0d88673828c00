package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/purgegate/internal/approval"
)

func TestMemoryGroupStore_CASConflict(t *testing.T) {
	g := &approval.Group{ID: "g1", ExternalID: "ext-1"}
	s := NewMemoryGroupStore(g)
	ctx := context.Background()

	req := &approval.DeletionRequest{ID: "req-1"}
	rev, err := s.WriteRequest(ctx, "g1", req, 0)
	if err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}
	if rev != 1 {
		t.Errorf("new revision = %d, want 1", rev)
	}

	// A second write against the stale revision must conflict.
	_, err = s.WriteRequest(ctx, "g1", req, 0)
	if !errors.Is(err, approval.ErrRevisionConflict) {
		t.Fatalf("stale write error = %v, want ErrRevisionConflict", err)
	}

	// The current revision succeeds.
	if _, err := s.WriteRequest(ctx, "g1", nil, 1); err != nil {
		t.Fatalf("WriteRequest(clear) failed: %v", err)
	}
	if got := s.Revision("g1"); got != 2 {
		t.Errorf("Revision() = %d, want 2", got)
	}
}

func TestMemoryGroupStore_ReadReturnsClone(t *testing.T) {
	g := &approval.Group{ID: "g1"}
	s := NewMemoryGroupStore(g)
	ctx := context.Background()

	req := &approval.DeletionRequest{ID: "req-1", Approvals: []approval.Vote{{VoterID: "u1"}}}
	if _, err := s.WriteRequest(ctx, "g1", req, 0); err != nil {
		t.Fatalf("WriteRequest() failed: %v", err)
	}

	got, _, err := s.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	got.Approvals = append(got.Approvals, approval.Vote{VoterID: "u2"})

	again, _, err := s.ReadRequest(ctx, "g1")
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if len(again.Approvals) != 1 {
		t.Errorf("stored approvals = %d, want 1 (caller mutation leaked in)", len(again.Approvals))
	}
}

func TestMemoryGroupStore_ResolveByExternalID(t *testing.T) {
	s := NewMemoryGroupStore(&approval.Group{ID: "g1", ExternalID: "chat-42"})
	ctx := context.Background()

	g, err := s.ResolveGroup(ctx, "chat-42")
	if err != nil {
		t.Fatalf("ResolveGroup() failed: %v", err)
	}
	if g == nil || g.ID != "g1" {
		t.Errorf("ResolveGroup(chat-42) = %+v, want group g1", g)
	}

	g, err = s.ResolveGroup(ctx, "nope")
	if err != nil {
		t.Fatalf("ResolveGroup() failed: %v", err)
	}
	if g != nil {
		t.Errorf("ResolveGroup(nope) = %+v, want nil", g)
	}
}

func TestFakeDirectory_RolesAndCounts(t *testing.T) {
	d := NewFakeDirectory()
	ctx := context.Background()

	d.AddMember("g1", "u1", "Ann", "admin")
	d.AddMember("g1", "u2", "Ben", "member")

	if n, _ := d.CountActiveMembers(ctx, "g1"); n != 2 {
		t.Errorf("CountActiveMembers() = %d, want 2", n)
	}
	if ok, _ := d.IsAdmin(ctx, "u1", "g1"); !ok {
		t.Error("IsAdmin(u1) = false, want true")
	}
	if ok, _ := d.IsAdmin(ctx, "u2", "g1"); ok {
		t.Error("IsAdmin(u2) = true, want false")
	}
	if ok, _ := d.IsMember(ctx, "u2", "g1"); !ok {
		t.Error("IsMember(u2) = false, want true")
	}

	d.SetActiveCount("g1", 10)
	if n, _ := d.CountActiveMembers(ctx, "g1"); n != 10 {
		t.Errorf("CountActiveMembers() after override = %d, want 10", n)
	}

	d.SetCountError(errors.New("directory down"))
	if _, err := d.CountActiveMembers(ctx, "g1"); err == nil {
		t.Error("CountActiveMembers() = nil error, want failure")
	}
}

func TestFakeItemStore_FindScopedToGroup(t *testing.T) {
	f := NewFakeItemStore()
	ctx := context.Background()

	f.AddItem(approval.Item{ID: "t1", GroupID: "g1", Title: "one"})
	f.AddItem(approval.Item{ID: "t2", GroupID: "g2", Title: "two"})

	got, err := f.FindItems(ctx, []string{"t1", "t2", "t3"}, "g1")
	if err != nil {
		t.Fatalf("FindItems() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("FindItems() = %+v, want just t1", got)
	}
}

func TestFakeItemStore_DeleteAndFailure(t *testing.T) {
	f := NewFakeItemStore()
	ctx := context.Background()

	f.AddItem(approval.Item{ID: "t1", GroupID: "g1"})
	f.AddItem(approval.Item{ID: "t2", GroupID: "g1"})
	f.FailDelete("t2", errors.New("storage hiccup"))

	if err := f.DeleteItem(ctx, "t1"); err != nil {
		t.Fatalf("DeleteItem(t1) failed: %v", err)
	}
	if err := f.DeleteItem(ctx, "t2"); err == nil {
		t.Fatal("DeleteItem(t2) = nil error, want injected failure")
	}

	if f.Exists("t1") {
		t.Error("t1 still exists after delete")
	}
	if !f.Exists("t2") {
		t.Error("t2 removed despite failed delete")
	}
	if got := f.DeletedIDs(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("DeletedIDs() = %v, want [t1]", got)
	}
}
