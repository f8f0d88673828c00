package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/purgegate/internal/approval"
)

// MemoryGroupStore is an in-memory approval.GroupStore with the same
// revision-CAS semantics as the SQLite store. Concurrency tests use it to
// interleave read-modify-write cycles deterministically via BeforeWrite.
type MemoryGroupStore struct {
	mu        sync.Mutex
	groups    map[string]*approval.Group
	requests  map[string]*approval.DeletionRequest
	revisions map[string]int64

	// BeforeWrite, when set, runs at the start of every WriteRequest call,
	// outside the store lock. Tests use it to force two callers to read the
	// same revision before either writes.
	BeforeWrite func(groupID string)
}

// NewMemoryGroupStore creates a store holding the given groups.
func NewMemoryGroupStore(groups ...*approval.Group) *MemoryGroupStore {
	s := &MemoryGroupStore{
		groups:    make(map[string]*approval.Group),
		requests:  make(map[string]*approval.DeletionRequest),
		revisions: make(map[string]int64),
	}
	for _, g := range groups {
		s.AddGroup(g)
	}
	return s
}

// AddGroup registers a group aggregate.
func (s *MemoryGroupStore) AddGroup(g *approval.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// ResolveGroup implements approval.GroupStore.
// Matches by internal id first, then external id.
func (s *MemoryGroupStore) ResolveGroup(_ context.Context, ref string) (*approval.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[ref]; ok {
		return g, nil
	}
	for _, g := range s.groups {
		if g.ExternalID == ref {
			return g, nil
		}
	}
	return nil, nil
}

// ReadRequest implements approval.GroupStore. Returns a deep copy so caller
// mutations never alias stored state.
func (s *MemoryGroupStore) ReadRequest(_ context.Context, groupID string) (*approval.DeletionRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupID]; !ok {
		return nil, 0, fmt.Errorf("read request: unknown group %s", groupID)
	}
	return s.requests[groupID].Clone(), s.revisions[groupID], nil
}

// WriteRequest implements approval.GroupStore with compare-and-swap on the
// aggregate revision.
func (s *MemoryGroupStore) WriteRequest(_ context.Context, groupID string, req *approval.DeletionRequest, expectedRevision int64) (int64, error) {
	if s.BeforeWrite != nil {
		s.BeforeWrite(groupID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupID]; !ok {
		return 0, fmt.Errorf("write request: unknown group %s", groupID)
	}
	if s.revisions[groupID] != expectedRevision {
		return 0, approval.ErrRevisionConflict
	}

	if req == nil {
		delete(s.requests, groupID)
	} else {
		s.requests[groupID] = req.Clone()
	}
	s.revisions[groupID]++
	return s.revisions[groupID], nil
}

// Revision returns the current aggregate revision, for assertions.
func (s *MemoryGroupStore) Revision(groupID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[groupID]
}

// FakeDirectory is an in-memory approval.Directory.
type FakeDirectory struct {
	mu         sync.Mutex
	identities map[string]*approval.Identity // keyed by ref/id
	roles      map[string]map[string]string  // groupID -> identityID -> role
	countOver  map[string]int                // optional override per group
	countErr   error
}

// NewFakeDirectory creates an empty directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		identities: make(map[string]*approval.Identity),
		roles:      make(map[string]map[string]string),
		countOver:  make(map[string]int),
	}
}

// AddMember registers an identity as a member of a group.
// Role is "admin" or "member".
func (d *FakeDirectory) AddMember(groupID, identityID, displayName, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.identities[identityID] = &approval.Identity{ID: identityID, DisplayName: displayName}
	if d.roles[groupID] == nil {
		d.roles[groupID] = make(map[string]string)
	}
	d.roles[groupID][identityID] = role
}

// ForgetIdentity makes an identity unresolvable while keeping its group
// role. Simulates a member whose identity sync has not completed yet.
func (d *FakeDirectory) ForgetIdentity(identityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.identities, identityID)
}

// RemoveMember drops an identity from a group, shrinking the member count.
func (d *FakeDirectory) RemoveMember(groupID, identityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.roles[groupID], identityID)
}

// SetActiveCount overrides the live member count for a group.
// Useful for simulating membership drift without adding identities.
func (d *FakeDirectory) SetActiveCount(groupID string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countOver[groupID] = n
}

// SetCountError makes CountActiveMembers fail, simulating directory outage.
func (d *FakeDirectory) SetCountError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countErr = err
}

// CountActiveMembers implements approval.Directory.
func (d *FakeDirectory) CountActiveMembers(_ context.Context, groupID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.countErr != nil {
		return 0, d.countErr
	}
	if n, ok := d.countOver[groupID]; ok {
		return n, nil
	}
	return len(d.roles[groupID]), nil
}

// IsAdmin implements approval.Directory.
func (d *FakeDirectory) IsAdmin(_ context.Context, identityID, groupID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roles[groupID][identityID] == "admin", nil
}

// IsMember implements approval.Directory.
func (d *FakeDirectory) IsMember(_ context.Context, identityID, groupID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.roles[groupID][identityID]
	return ok, nil
}

// ResolveIdentity implements approval.Directory.
func (d *FakeDirectory) ResolveIdentity(_ context.Context, ref string) (*approval.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identities[ref], nil
}

// FakeItemStore is an in-memory approval.ItemStore with per-item failure
// injection for partial-execution tests.
type FakeItemStore struct {
	mu         sync.Mutex
	items      map[string]approval.Item
	failDelete map[string]error
	deleted    []string
}

// NewFakeItemStore creates an empty item store.
func NewFakeItemStore() *FakeItemStore {
	return &FakeItemStore{
		items:      make(map[string]approval.Item),
		failDelete: make(map[string]error),
	}
}

// AddItem registers a live work item.
func (f *FakeItemStore) AddItem(it approval.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[it.ID] = it
}

// RemoveItem deletes an item out-of-band, simulating an independent path
// (e.g. a user completing and archiving the task).
func (f *FakeItemStore) RemoveItem(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
}

// FailDelete makes DeleteItem fail for the given id.
func (f *FakeItemStore) FailDelete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[id] = err
}

// FindItems implements approval.ItemStore: only existing items that belong
// to groupID are returned.
func (f *FakeItemStore) FindItems(_ context.Context, ids []string, groupID string) ([]approval.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []approval.Item
	for _, id := range ids {
		if it, ok := f.items[id]; ok && it.GroupID == groupID {
			out = append(out, it)
		}
	}
	return out, nil
}

// DeleteItem implements approval.ItemStore.
func (f *FakeItemStore) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failDelete[id]; ok {
		return err
	}
	if _, ok := f.items[id]; !ok {
		return fmt.Errorf("item %s not found", id)
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// DeletedIDs returns the ids deleted through DeleteItem, in order.
func (f *FakeItemStore) DeletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Exists reports whether an item is still live.
func (f *FakeItemStore) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok
}
