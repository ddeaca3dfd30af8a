package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"doorsync/internal/record"
	"doorsync/internal/store"
)

// DiagnosticStore is an in-memory implementation of store.DiagnosticStore.
type DiagnosticStore struct {
	mu   sync.Mutex
	data map[string]record.Diagnostic
	feed store.Feed[record.Diagnostic]
}

func NewDiagnosticStore() *DiagnosticStore {
	return &DiagnosticStore{data: make(map[string]record.Diagnostic)}
}

func (s *DiagnosticStore) Insert(_ context.Context, rec record.Diagnostic) (record.Diagnostic, error) {
	s.mu.Lock()
	if _, ok := s.data[rec.ID]; ok {
		s.mu.Unlock()
		return record.Diagnostic{}, store.ErrDuplicateID
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.data[rec.ID] = rec
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.feed.Publish(snap)
	return rec, nil
}

func (s *DiagnosticStore) Delete(_ context.Context, id string) (bool, error) {
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

func (s *DiagnosticStore) ListUnsynced(_ context.Context) ([]record.Diagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []record.Diagnostic
	for _, rec := range s.data {
		if !rec.Synced {
			out = append(out, rec)
		}
	}
	sortDiagnostics(out)
	return out, nil
}

func (s *DiagnosticStore) Subscribe(fn func([]record.Diagnostic)) func() {
	return s.feed.Subscribe(fn)
}

// All returns every stored record.  Test-only helper.
func (s *DiagnosticStore) All() []record.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *DiagnosticStore) snapshotLocked() []record.Diagnostic {
	out := make([]record.Diagnostic, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	sortDiagnostics(out)
	return out
}

func sortDiagnostics(recs []record.Diagnostic) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
}
