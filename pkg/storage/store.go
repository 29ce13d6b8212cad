// Package storage persists the compression history and the execution
// journal. History entries are append-only; execution records are
// upserted by id while an execution is running.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// Store defines the interface for persistent storage
type Store interface {
	// AppendEntry inserts a new history entry in a single atomic write
	AppendEntry(ctx context.Context, entry *models.HistoryEntry) error
	// ListEntries returns matching entries, most recent first
	ListEntries(ctx context.Context, query models.HistoryQuery) ([]*models.HistoryEntry, error)
	// PurgeBefore deletes entries older than cutoff and reports how many
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)

	SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error
	GetExecution(ctx context.Context, id string) (*models.ExecutionRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend  string
	Path     string // badger directory
	URL      string // postgres DSN
	InMemory bool   // badger without a directory, for tests
}

// Open creates the configured backend
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendBadger:
		return NewBadgerStore(BadgerConfig{Path: cfg.Path, InMemory: cfg.InMemory})
	case BackendPostgres:
		return NewPostgresStore(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

// prepareEntry assigns an id and operation time to a new entry
func prepareEntry(entry *models.HistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history entry is nil")
	}
	if entry.Type != models.RecordRecommendation && entry.Type != models.RecordExecution {
		return fmt.Errorf("unknown record type %q", entry.Type)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.OperationTime.IsZero() {
		entry.OperationTime = time.Now()
	}
	return nil
}

// matches applies every non-zero filter of q. Since is inclusive and
// Until exclusive.
func matches(q models.HistoryQuery, e *models.HistoryEntry) bool {
	if q.Schema != "" && !strings.EqualFold(q.Schema, e.Schema) {
		return false
	}
	if q.Table != "" && !strings.EqualFold(q.Table, e.Table) {
		return false
	}
	if q.Type != "" && q.Type != e.Type {
		return false
	}
	if q.Scheme != "" && q.Scheme != e.RecommendedScheme && q.Scheme != e.AppliedScheme {
		return false
	}
	if !q.Since.IsZero() && e.OperationTime.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.OperationTime.Before(q.Until) {
		return false
	}
	return true
}

func copyEntry(e *models.HistoryEntry) *models.HistoryEntry {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}
