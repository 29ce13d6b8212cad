package executor

import (
	"sort"
	"sync"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// Registry tracks in-flight executions, at most one per table. It holds
// copies published by the owning worker, never the live record.
type Registry struct {
	mu      sync.Mutex
	byTable map[string]string // table key -> execution id
	byID    map[string]*models.ExecutionRecord
}

func NewRegistry() *Registry {
	return &Registry{
		byTable: make(map[string]string),
		byID:    make(map[string]*models.ExecutionRecord),
	}
}

// Acquire claims the record's table, failing fast if another execution
// already holds it.
func (r *Registry) Acquire(rec *models.ExecutionRecord) error {
	key := rec.Ref().Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, busy := r.byTable[key]; busy {
		return apperr.Conflict("execute", "table %s already has active execution %s", rec.Ref(), id)
	}
	r.byTable[key] = rec.ID
	r.byID[rec.ID] = rec.Clone()
	return nil
}

// Publish replaces the visible copy of an acquired record
func (r *Registry) Publish(rec *models.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[rec.ID]; ok {
		r.byID[rec.ID] = rec.Clone()
	}
}

// Release frees the table once the record is terminal
func (r *Registry) Release(rec *models.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byTable[rec.Ref().Key()] == rec.ID {
		delete(r.byTable, rec.Ref().Key())
	}
	delete(r.byID, rec.ID)
}

// Get returns a copy of an in-flight record
func (r *Registry) Get(id string) (*models.ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Active lists in-flight records, oldest first
func (r *Registry) Active() []*models.ExecutionRecord {
	r.mu.Lock()
	out := make([]*models.ExecutionRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, rec.Clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
