package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"doorsync/internal/record"
	"doorsync/internal/store"
)

// AccessStore is an in-memory implementation of store.AccessStore.  It is
// intended for tests and dev environments.
type AccessStore struct {
	mu   sync.Mutex
	data map[string]record.Access
	feed store.Feed[record.Access]
}

func NewAccessStore() *AccessStore {
	return &AccessStore{data: make(map[string]record.Access)}
}

func (s *AccessStore) Insert(_ context.Context, rec record.Access) (record.Access, error) {
	s.mu.Lock()
	if _, ok := s.data[rec.ID]; ok {
		s.mu.Unlock()
		return record.Access{}, store.ErrDuplicateID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.data[rec.ID] = rec
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.feed.Publish(snap)
	return rec, nil
}

func (s *AccessStore) Get(_ context.Context, id string) (record.Access, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	if !ok {
		return record.Access{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *AccessStore) Update(_ context.Context, rec record.Access) error {
	s.mu.Lock()
	prev, ok := s.data[rec.ID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	rec.CreatedAt = prev.CreatedAt
	s.data[rec.ID] = rec
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.feed.Publish(snap)
	return nil
}

func (s *AccessStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.data[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.data, id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.feed.Publish(snap)
	return true, nil
}

func (s *AccessStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	rec, ok := s.data[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	rec.Synced = true
	s.data[id] = rec
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.feed.Publish(snap)
	return nil
}

func (s *AccessStore) ListByStatus(_ context.Context, status record.Status) ([]record.Access, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []record.Access
	for _, rec := range s.data {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	sortAccess(out)
	return out, nil
}

func (s *AccessStore) ListUnsynced(_ context.Context) ([]record.Access, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []record.Access
	for _, rec := range s.data {
		if !rec.Synced {
			out = append(out, rec)
		}
	}
	sortAccess(out)
	return out, nil
}

func (s *AccessStore) Subscribe(fn func([]record.Access)) func() {
	return s.feed.Subscribe(fn)
}

// All returns every stored record.  Test-only helper.
func (s *AccessStore) All() []record.Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *AccessStore) snapshotLocked() []record.Access {
	out := make([]record.Access, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	sortAccess(out)
	return out
}

// sortAccess keeps listings deterministic: oldest first, id as tiebreak.
func sortAccess(recs []record.Access) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
