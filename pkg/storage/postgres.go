package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

const historyColumns = `id, record_type, execution_id, schema_name, table_name,
	operation_time, status, recommended_scheme, applied_scheme,
	expected_ratio, actual_ratio, expected_savings, actual_savings, expected_percent,
	size_before, size_after, duration_ms, priority, risk_level, payload`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// migrate runs every embedded migration in file order
func (s *PostgresStore) migrate() error {
	files, err := postgresFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	for _, f := range files {
		schema, err := postgresFS.ReadFile("migrations/" + f.Name())
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		if _, err := s.db.Exec(string(schema)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", f.Name(), err)
		}
	}
	return nil
}

// AppendEntry inserts one history row
func (s *PostgresStore) AppendEntry(ctx context.Context, entry *models.HistoryEntry) error {
	if err := prepareEntry(entry); err != nil {
		return apperr.Validation("appendEntry", "%v", err)
	}

	query := `INSERT INTO compression_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	var payload []byte
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Type, nullString(entry.ExecutionID), entry.Schema, entry.Table,
		entry.OperationTime, entry.Status,
		nullString(string(entry.RecommendedScheme)), nullString(string(entry.AppliedScheme)),
		entry.ExpectedRatio, entry.ActualRatio, entry.ExpectedSavings, entry.ActualSavings, entry.ExpectedPercent,
		entry.SizeBefore, entry.SizeAfter, entry.Duration.Milliseconds(),
		nullString(string(entry.Priority)), nullString(string(entry.RiskLevel)), payload,
	)
	if err != nil {
		return apperr.DataAccess("appendEntry", err, false)
	}
	return nil
}

// ListEntries retrieves entries most recent first
func (s *PostgresStore) ListEntries(ctx context.Context, q models.HistoryQuery) ([]*models.HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Schema != "" {
		add("UPPER(schema_name) = UPPER($%d)", q.Schema)
	}
	if q.Table != "" {
		add("UPPER(table_name) = UPPER($%d)", q.Table)
	}
	if q.Type != "" {
		add("record_type = $%d", string(q.Type))
	}
	if q.Scheme != "" {
		args = append(args, string(q.Scheme))
		where = append(where, fmt.Sprintf("(recommended_scheme = $%d OR applied_scheme = $%d)", len(args), len(args)))
	}
	if !q.Since.IsZero() {
		add("operation_time >= $%d", q.Since)
	}
	if !q.Until.IsZero() {
		add("operation_time < $%d", q.Until)
	}

	query := `SELECT ` + historyColumns + ` FROM compression_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY operation_time DESC, seq DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.DataAccess("listEntries", err, false)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var (
			e                                 models.HistoryEntry
			executionID, recommended, applied sql.NullString
			priority, risk                    sql.NullString
			durationMS                        int64
			payload                           []byte
		)
		err := rows.Scan(
			&e.ID, &e.Type, &executionID, &e.Schema, &e.Table,
			&e.OperationTime, &e.Status, &recommended, &applied,
			&e.ExpectedRatio, &e.ActualRatio, &e.ExpectedSavings, &e.ActualSavings, &e.ExpectedPercent,
			&e.SizeBefore, &e.SizeAfter, &durationMS, &priority, &risk, &payload,
		)
		if err != nil {
			return nil, apperr.DataAccess("listEntries", err, false)
		}
		e.ExecutionID = executionID.String
		e.RecommendedScheme = models.Scheme(recommended.String)
		e.AppliedScheme = models.Scheme(applied.String)
		e.Priority = models.Priority(priority.String)
		e.RiskLevel = models.RiskLevel(risk.String)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DataAccess("listEntries", err, false)
	}
	return entries, nil
}

// PurgeBefore deletes history rows older than cutoff
func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM compression_history WHERE operation_time < $1`, cutoff)
	if err != nil {
		return 0, apperr.DataAccess("purgeBefore", err, false)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.DataAccess("purgeBefore", err, false)
	}
	return int(n), nil
}

// SaveExecution upserts the journal row for an execution
func (s *PostgresStore) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	if rec == nil || rec.ID == "" {
		return apperr.Validation("saveExecution", "execution record needs an id")
	}
	record, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode execution: %w", err)
	}

	query := `
		INSERT INTO compression_executions (id, schema_name, table_name, status, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Recommendation.Schema, rec.Recommendation.Table, rec.Status, record)
	if err != nil {
		return apperr.DataAccess("saveExecution", err, false)
	}
	return nil
}

// GetExecution retrieves the journalled execution by id
func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM compression_executions WHERE id = $1`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("getExecution", "execution %s not found", id)
	}
	if err != nil {
		return nil, apperr.DataAccess("getExecution", err, false)
	}

	var rec models.ExecutionRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}
	return &rec, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.DataAccess("ping", err, true)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
