// Package history records recommendations and execution outcomes and
// answers reporting queries over them.
package history

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/converter"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/storage"
)

const day = 24 * time.Hour

// Tracker is the append-only history of the advisor
type Tracker struct {
	store     storage.Store
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a tracker over store. Entries older than retentionDays are
// removed by Purge.
func New(store storage.Store, retentionDays int, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		retention: time.Duration(retentionDays) * day,
		logger:    logging.OrDefault(logger),
		now:       time.Now,
	}
}

func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RecordRecommendation appends a RECOMMENDATION entry and returns its id
func (t *Tracker) RecordRecommendation(ctx context.Context, rec *models.Recommendation) (string, error) {
	entry, err := converter.RecommendationToEntry(rec)
	if err != nil {
		return "", apperr.Validation("recordRecommendation", "%v", err)
	}
	if entry.OperationTime.IsZero() {
		entry.OperationTime = t.now()
	}
	if err := t.store.AppendEntry(ctx, entry); err != nil {
		return "", err
	}
	t.logger.DebugContext(ctx, "recommendation recorded",
		"schema", rec.Schema, "table", rec.Table, "scheme", rec.Scheme, "entry_id", entry.ID)
	return entry.ID, nil
}

// RecordExecution appends an EXECUTION entry and returns its id
func (t *Tracker) RecordExecution(ctx context.Context, executionID string, rec *models.Recommendation, result *models.ExecutionRecord) (string, error) {
	entry, err := converter.ExecutionToEntry(executionID, rec, result)
	if err != nil {
		return "", apperr.Validation("recordExecution", "%v", err)
	}
	if result.CompletedAt.IsZero() {
		entry.OperationTime = t.now()
	}
	if err := t.store.AppendEntry(ctx, entry); err != nil {
		return "", err
	}
	t.logger.InfoContext(ctx, "execution recorded",
		"execution_id", entry.ExecutionID, "schema", entry.Schema, "table", entry.Table,
		"status", entry.Status, "entry_id", entry.ID)
	return entry.ID, nil
}

// TableOptions narrows GetTableHistory
type TableOptions struct {
	Type  models.RecordType
	Since time.Time
	Until time.Time
	Limit int
}

// GetTableHistory returns a table's entries, most recent first
func (t *Tracker) GetTableHistory(ctx context.Context, schema, table string, opts TableOptions) ([]*models.HistoryEntry, error) {
	if err := ddl.ValidateIdentifier(schema); err != nil {
		return nil, err
	}
	if err := ddl.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	return t.store.ListEntries(ctx, models.HistoryQuery{
		Schema: schema,
		Table:  table,
		Type:   opts.Type,
		Since:  opts.Since,
		Until:  opts.Until,
		Limit:  opts.Limit,
	})
}

// Query returns entries matching q across all tables
func (t *Tracker) Query(ctx context.Context, q models.HistoryQuery) ([]*models.HistoryEntry, error) {
	if q.Limit < 0 {
		return nil, apperr.Validation("query", "limit must not be negative")
	}
	return t.store.ListEntries(ctx, q)
}

// GetStatisticsSummary aggregates the trailing window of days up to and
// including now. An empty window yields zero values.
func (t *Tracker) GetStatisticsSummary(ctx context.Context, days int) (*models.StatisticsSummary, error) {
	if days < 1 {
		return nil, apperr.Validation("statisticsSummary", "window must be at least one day, got %d", days)
	}
	until := t.now()
	since := until.Add(-time.Duration(days) * day)

	entries, err := t.store.ListEntries(ctx, models.HistoryQuery{Since: since})
	if err != nil {
		return nil, err
	}
	return summarize(entries, since, until), nil
}

func summarize(entries []*models.HistoryEntry, since, until time.Time) *models.StatisticsSummary {
	summary := &models.StatisticsSummary{
		Since:    since,
		Until:    until,
		ByScheme: make(map[models.Scheme]*models.SchemeSavings),
	}

	tables := make(map[string]struct{})
	var (
		durations []time.Duration
		ratioSum  float64
		ratioN    int
	)
	for _, e := range entries {
		tables[models.TableRef{Schema: e.Schema, Name: e.Table}.Key()] = struct{}{}

		if e.Type == models.RecordRecommendation {
			summary.TotalRecommendations++
			summary.ExpectedSavingsBytes += e.ExpectedSavings
			continue
		}

		summary.TotalExecutions++
		if e.Duration > 0 {
			durations = append(durations, e.Duration)
		}
		switch models.ExecutionStatus(e.Status) {
		case models.StatusFailed:
			summary.Failed++
		case models.StatusRolledBack:
			summary.RolledBack++
		case models.StatusCompleted:
			summary.Completed++
			summary.ActualSavingsBytes += e.ActualSavings
			if e.ActualRatio > 0 {
				ratioSum += e.ActualRatio
				ratioN++
			}

			s, ok := summary.ByScheme[e.AppliedScheme]
			if !ok {
				s = &models.SchemeSavings{Scheme: e.AppliedScheme}
				summary.ByScheme[e.AppliedScheme] = s
			}
			// AvgRatio holds the running sum until the loop ends
			s.Executions++
			s.SavedBytes += e.ActualSavings
			s.AvgRatio += e.ActualRatio
		}
	}

	summary.UniqueTables = len(tables)
	if ratioN > 0 {
		summary.AvgActualRatio = round2(ratioSum / float64(ratioN))
	}
	for _, s := range summary.ByScheme {
		s.AvgRatio = round2(s.AvgRatio / float64(s.Executions))
	}

	stats := calculateDurationStats(durations)
	summary.AvgDuration = stats.Average
	summary.DurationP50 = stats.P50
	summary.DurationP95 = stats.P95
	summary.MaxDuration = stats.Max
	return summary
}

// Purge removes entries older than the retention horizon and reports how
// many were removed
func (t *Tracker) Purge(ctx context.Context) (int, error) {
	if t.retention < day {
		return 0, apperr.Validation("purge", "retention must be at least one day")
	}
	cutoff := t.now().Add(-t.retention)
	n, err := t.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	t.logger.InfoContext(ctx, "history purged", "cutoff", cutoff, "removed", n)
	return n, nil
}

// RecommendationFilter selects recorded recommendations
type RecommendationFilter struct {
	Scheme            models.Scheme
	MinSavingsPercent float64
	Since             time.Time
	Limit             int
}

// ListRecommendations returns recorded recommendations, newest first,
// filtered on the typed columns and decoded from their payload
func (t *Tracker) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]*models.Recommendation, error) {
	entries, err := t.store.ListEntries(ctx, models.HistoryQuery{
		Type:   models.RecordRecommendation,
		Scheme: f.Scheme,
		Since:  f.Since,
	})
	if err != nil {
		return nil, err
	}

	var out []*models.Recommendation
	for _, e := range entries {
		if e.Status == converter.StatusNoChange || e.ExpectedPercent < f.MinSavingsPercent {
			continue
		}
		rec, err := converter.EntryToRecommendation(e)
		if err != nil {
			t.logger.WarnContext(ctx, "skipping unreadable history entry", "entry_id", e.ID, "error", err)
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
