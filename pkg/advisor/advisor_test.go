package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/analyzer"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/history"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func table(schema, name string, size int64, reads, writes int64) models.TableSnapshot {
	return models.TableSnapshot{
		Schema:       schema,
		Name:         name,
		RowCount:     size / 200,
		AvgRowLen:    200,
		SizeBytes:    size,
		Compression:  models.SchemeNone,
		Indexes:      []string{name + "_PK"},
		ReadCount:    reads,
		WriteCount:   writes,
		LastAnalyzed: now.Add(-24 * time.Hour),
	}
}

type fixture struct {
	advisor *Advisor
	fake    *datasource.Fake
	store   *storage.MemoryStore
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := datasource.NewFake()
	fake.Now = func() time.Time { return now }
	fake.AddTable(table("APP", "SALES", 20*config.GiB, 9_000_000, 100))
	fake.AddTable(table("APP", "ORDERS", 5*config.GiB, 3_000_000, 2_000_000))
	fake.AddTable(table("SYS", "AUD$", 30*config.GiB, 10, 9_000_000))

	cfg := config.NewConfig()
	cfg.Execution.RetryBackoff = time.Millisecond
	cfg.Execution.StepTimeout = time.Minute

	store := storage.NewMemoryStore()
	reg := prometheus.NewRegistry()
	a := New(fake, store, cfg, logging.Discard(), Options{Metrics: metrics.New(reg), Now: func() time.Time { return now }})
	return &fixture{advisor: a, fake: fake, store: store, reg: reg}
}

var approved = models.ExecutionOptions{Online: true, ApproveHighRisk: true}

func TestAnalyzeRecordsRecommendations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.advisor.Analyze(ctx, analyzer.Filter{}, true)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Identification.Scanned)
	require.Len(t, res.Identification.Excluded, 1)
	assert.Equal(t, analyzer.ExcludedSystemSchema, res.Identification.Excluded[0].Reason)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, 2, res.Recorded)

	entries, err := f.store.ListEntries(ctx, models.HistoryQuery{Type: models.RecordRecommendation})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	recs, err := f.advisor.ListRecommendations(ctx, history.RecommendationFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	count, err := testutil.GatherAndCount(f.reg, "compression_advisor_candidates_excluded_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAnalyzeWithoutRecording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.advisor.Analyze(ctx, analyzer.Filter{Schemas: []string{"APP"}, Limit: 1}, false)
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
	assert.Zero(t, res.Recorded)

	entries, err := f.store.ListEntries(ctx, models.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteTableRecordsOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.advisor.ExecuteTable(ctx, "APP", "SALES", approved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, models.SchemeQueryHigh, result.Recommendation.Scheme)

	entries, err := f.advisor.TableHistory(ctx, "APP", "SALES", history.TableOptions{Type: models.RecordExecution})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.ID, entries[0].ExecutionID)
	assert.Equal(t, string(models.StatusCompleted), entries[0].Status)
	assert.Equal(t, result.ActualSavings.SavedBytes, entries[0].ActualSavings)

	status, err := f.advisor.Status(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Empty(t, f.advisor.ActiveExecutions())

	stats, err := f.advisor.Statistics(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, result.ActualSavings.SavedBytes, stats.ActualSavingsBytes)
}

func TestExecuteFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fake.FailOn("COLUMN STORE COMPRESS", errors.New("ORA-01652: unable to extend temp segment"))

	result, execErr := f.advisor.ExecuteTable(ctx, "APP", "SALES", approved)
	require.Error(t, execErr)
	assert.ErrorIs(t, execErr, apperr.ErrCompression)
	assert.Equal(t, models.StatusRolledBack, result.Status)

	stats, err := f.advisor.Statistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 1, stats.RolledBack)

	pub := f.advisor.Sanitize(ctx, execErr)
	require.NotNil(t, pub)
	assert.Equal(t, apperr.KindCompression, pub.Kind)
	assert.NotContains(t, pub.Error(), "ORA-01652")
	assert.NotContains(t, pub.Error(), "SALES")
	assert.NotEmpty(t, pub.Reference)
}

func TestDryRunIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	opts := approved
	opts.DryRun = true
	result, err := f.advisor.ExecuteTable(ctx, "APP", "SALES", opts)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.NotEmpty(t, result.Plan)

	entries, err := f.store.ListEntries(ctx, models.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.fake.Applied())
}

func TestExecuteBatchRecordsEveryOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sales, err := f.advisor.Recommend(ctx, "APP", "SALES")
	require.NoError(t, err)
	orders, err := f.advisor.Recommend(ctx, "APP", "ORDERS")
	require.NoError(t, err)
	f.fake.FailOn(`"APP"."ORDERS" MOVE`, errors.New("ORA-01652: unable to extend temp segment"))

	results, err := f.advisor.ExecuteBatch(ctx, []*models.Recommendation{sales, orders}, approved)
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)

	entries, err := f.store.ListEntries(ctx, models.HistoryQuery{Type: models.RecordExecution})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecommendUsesTableActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fake.AddTable(table("APP", "LEDGER", 15*config.GiB, 100, 9_000_000))

	rec, err := f.advisor.Recommend(ctx, "app", "ledger")
	require.NoError(t, err)

	assert.Equal(t, 1, f.fake.Calls("GetActivityStats"))
	assert.Equal(t, "APP", rec.Schema)
	assert.Equal(t, "LEDGER", rec.Table)
	assert.Equal(t, models.WorkloadWriteHeavy, rec.Workload.Type)
	assert.False(t, rec.Workload.IsArchivalCandidate)
	assert.Equal(t, models.SchemeQueryLow, rec.Scheme)
}

func TestRecommendValidatesNames(t *testing.T) {
	f := newFixture(t)
	_, err := f.advisor.Recommend(context.Background(), "APP", "SALES' OR 1=1")
	assert.True(t, apperr.IsValidation(err))

	_, err = f.advisor.Recommend(context.Background(), "APP", "MISSING")
	assert.True(t, apperr.IsNotFound(err))
}

func TestCompareSchemesUsesDatabaseEstimates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := models.TableRef{Schema: "APP", Name: "SALES"}
	f.fake.SetRatio(ref, models.SchemeQueryHigh, 9)

	cmp, err := f.advisor.CompareSchemes(ctx, "APP", "SALES")
	require.NoError(t, err)
	require.Len(t, cmp, len(models.Schemes())-1)

	var recommended int
	for _, c := range cmp {
		assert.True(t, c.Measured, string(c.Info.Scheme))
		if c.Info.Scheme == models.SchemeQueryHigh {
			assert.Equal(t, 9.0, c.Savings.Ratio)
		}
		if c.Recommended {
			recommended++
			assert.Equal(t, models.SchemeQueryHigh, c.Info.Scheme)
		}
	}
	assert.Equal(t, 1, recommended)

	// Estimates are cached per table and scheme
	calls := f.fake.Calls("EstimateCompressionRatio")
	_, err = f.advisor.CompareSchemes(ctx, "APP", "SALES")
	require.NoError(t, err)
	assert.Equal(t, calls, f.fake.Calls("EstimateCompressionRatio"))
}

func TestCompareSchemesFallsBackToCatalogue(t *testing.T) {
	f := newFixture(t)
	f.fake.FailCall("EstimateCompressionRatio", errors.New("ORA-00942: table or view does not exist"))

	cmp, err := f.advisor.CompareSchemes(context.Background(), "APP", "ORDERS")
	require.NoError(t, err)
	for _, c := range cmp {
		assert.False(t, c.Measured)
		assert.Equal(t, c.Info.RatioAvg, c.Savings.Ratio)
	}
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.advisor.Ping(context.Background()))

	f.fake.SetPingError(errors.New("ORA-12541: TNS:no listener"))
	err := f.advisor.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindDataAccess, apperr.KindOf(err))
	assert.True(t, strings.Contains(err.Error(), "ORA-12541"))
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := &models.HistoryEntry{
		Type: models.RecordRecommendation, Schema: "APP", Table: "SALES",
		OperationTime: now.AddDate(-2, 0, 0), Status: "RECOMMENDED",
	}
	require.NoError(t, f.store.AppendEntry(ctx, old))

	n, err := f.advisor.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
