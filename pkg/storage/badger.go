package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// Key layout:
//
//	e/<revts>/<revseq>        history entry (JSON)
//	t/<SCHEMA.TABLE>/<revts>/<revseq>  -> entry key
//	x/<execution id>          execution record (JSON)
//
// revts and revseq count down so a forward scan yields newest first.
var (
	entryPrefix     = []byte("e/")
	executionPrefix = []byte("x/")
	sequenceKey     = []byte("meta/entry-seq")
)

// BadgerStore is an embedded history backend
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

type BadgerConfig struct {
	// Path to store database files
	Path string
	// InMemory mode (for testing)
	InMemory bool
}

func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	// History is small and written rarely; keep memory bounded
	opts = opts.
		WithLogger(nil).
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithBlockCacheSize(4 << 20).
		WithIndexCacheSize(2 << 20).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open entry sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func reverseTime(t time.Time) uint64 {
	return uint64(math.MaxInt64 - t.UnixNano())
}

func entryKey(t time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("e/%016x/%016x", reverseTime(t), math.MaxUint64-seq))
}

func tableIndexPrefix(schema, table string) []byte {
	ref := models.TableRef{Schema: schema, Name: table}
	return []byte("t/" + ref.Key() + "/")
}

func tableIndexKey(entry *models.HistoryEntry, key []byte) []byte {
	suffix := bytes.TrimPrefix(key, entryPrefix)
	return append(tableIndexPrefix(entry.Schema, entry.Table), suffix...)
}

func executionKey(id string) []byte {
	return append([]byte(string(executionPrefix)), id...)
}

func (s *BadgerStore) AppendEntry(ctx context.Context, entry *models.HistoryEntry) error {
	if err := prepareEntry(entry); err != nil {
		return apperr.Validation("appendEntry", "%v", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.seq.Next()
	if err != nil {
		return apperr.DataAccess("appendEntry", err, false)
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	key := entryKey(entry.OperationTime, n)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(tableIndexKey(entry, key), key)
	})
	if err != nil {
		return apperr.DataAccess("appendEntry", err, false)
	}
	return nil
}

func (s *BadgerStore) ListEntries(ctx context.Context, query models.HistoryQuery) ([]*models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byTable := query.Schema != "" && query.Table != ""
	prefix := entryPrefix
	if byTable {
		prefix = tableIndexPrefix(query.Schema, query.Table)
	}

	var out []*models.HistoryEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if byTable {
				item, err := txn.Get(raw)
				if err != nil {
					return fmt.Errorf("dangling table index %s: %w", it.Item().Key(), err)
				}
				if raw, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if !query.Since.IsZero() && entry.OperationTime.Before(query.Since) {
				// Everything after this point is older still
				break
			}
			if !matches(query, entry) {
				continue
			}
			out = append(out, entry)
			if query.Limit > 0 && len(out) == query.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.DataAccess("listEntries", err, false)
	}
	return out, nil
}

func (s *BadgerStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var doomed [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if !entry.OperationTime.Before(cutoff) {
				continue
			}
			key := it.Item().KeyCopy(nil)
			doomed = append(doomed, key, tableIndexKey(entry, key))
		}
		return nil
	})
	if err != nil {
		return 0, apperr.DataAccess("purgeBefore", err, false)
	}
	if len(doomed) == 0 {
		return 0, ctx.Err()
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return 0, apperr.DataAccess("purgeBefore", err, false)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, apperr.DataAccess("purgeBefore", err, false)
	}
	return len(doomed) / 2, nil
}

func (s *BadgerStore) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	if rec == nil || rec.ID == "" {
		return apperr.Validation("saveExecution", "execution record needs an id")
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode execution: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(executionKey(rec.ID), value)
	})
	if err != nil {
		return apperr.DataAccess("saveExecution", err, false)
	}
	return nil
}

func (s *BadgerStore) GetExecution(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(executionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.NotFound("getExecution", "execution %s not found", id)
	}
	if err != nil {
		return nil, apperr.DataAccess("getExecution", err, false)
	}
	return &rec, nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return apperr.DataAccess("ping", errors.New("badger store is closed"), false)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func decodeEntry(raw []byte) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode history entry: %w", err)
	}
	if string(entry.Payload) == "null" {
		entry.Payload = nil
	}
	return &entry, nil
}
