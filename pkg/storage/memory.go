package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// MemoryStore keeps history in process memory. It is the default backend
// for dry runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []stored
	seq        uint64
	executions map[string]*models.ExecutionRecord
}

type stored struct {
	seq   uint64
	entry *models.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{executions: make(map[string]*models.ExecutionRecord)}
}

func (s *MemoryStore) AppendEntry(ctx context.Context, entry *models.HistoryEntry) error {
	if err := prepareEntry(entry); err != nil {
		return apperr.Validation("appendEntry", "%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries = append(s.entries, stored{seq: s.seq, entry: copyEntry(entry)})
	return nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, query models.HistoryQuery) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	var hits []stored
	for _, st := range s.entries {
		if matches(query, st.entry) {
			hits = append(hits, st)
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		ti, tj := hits[i].entry.OperationTime, hits[j].entry.OperationTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].seq > hits[j].seq
	})
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}

	out := make([]*models.HistoryEntry, len(hits))
	for i, st := range hits {
		out[i] = copyEntry(st.entry)
	}
	return out, nil
}

func (s *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, st := range s.entries {
		if st.entry.OperationTime.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, st)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return removed, nil
}

func (s *MemoryStore) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	if rec == nil || rec.ID == "" {
		return apperr.Validation("saveExecution", "execution record needs an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.executions[id]
	if !ok {
		return nil, apperr.NotFound("getExecution", "execution %s not found", id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
