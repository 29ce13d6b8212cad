package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var captured = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.AnalysisConfig {
	cfg := config.NewConfig().Analysis
	cfg.MinTableBytes = 100 * config.MiB
	cfg.MinRatio = 1.5
	cfg.ResultLimit = 100
	cfg.Workers = 4
	return cfg
}

func table(schema, name string, size int64) models.TableSnapshot {
	return models.TableSnapshot{
		Schema:       schema,
		Name:         name,
		RowCount:     size / 200,
		AvgRowLen:    200,
		SizeBytes:    size,
		Compression:  models.SchemeNone,
		Cardinality:  0.2,
		ReadCount:    9_000,
		WriteCount:   100,
		LastAnalyzed: captured.Add(-48 * time.Hour),
	}
}

func newFake(tables ...models.TableSnapshot) *datasource.Fake {
	fake := datasource.NewFake()
	fake.Now = func() time.Time { return captured }
	for _, t := range tables {
		fake.AddTable(t)
	}
	return fake
}

func TestIdentifyOrdersByScore(t *testing.T) {
	fake := newFake(
		table("APP", "SMALL_ORDERS", 200*config.MiB),
		table("APP", "SALES_HISTORY", 20*config.GiB),
		table("APP", "EVENTS", 2*config.GiB),
	)
	id := New(fake, testConfig(), logging.Discard())

	candidates, err := id.IdentifyCandidates(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "SALES_HISTORY", candidates[0].Snapshot.Name)
	assert.Equal(t, "EVENTS", candidates[1].Snapshot.Name)
	assert.Equal(t, "SMALL_ORDERS", candidates[2].Snapshot.Name)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
	// Activity was attached after listing
	assert.Equal(t, int64(9_000), candidates[0].Snapshot.ReadCount)
}

func TestIdentifyIsDeterministic(t *testing.T) {
	fake := newFake(
		table("APP", "A", 5*config.GiB),
		table("APP", "B", 5*config.GiB),
		table("HR", "C", 1*config.GiB),
	)
	id := New(fake, testConfig(), logging.Discard())

	first, err := id.IdentifyCandidates(context.Background(), Filter{})
	require.NoError(t, err)
	second, err := id.IdentifyCandidates(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Equal scores fall back to name order
	assert.Equal(t, "A", first[0].Snapshot.Name)
	assert.Equal(t, "B", first[1].Snapshot.Name)
}

func TestIdentifyCallsProviderOncePerTable(t *testing.T) {
	fake := newFake(
		table("APP", "A", 5*config.GiB),
		table("APP", "B", 3*config.GiB),
		table("SYS", "OBJ$", 5*config.GiB),
		table("APP", "TMP_LOAD", 5*config.GiB),
	)
	id := New(fake, testConfig(), logging.Discard())

	res, err := id.Identify(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Calls("ListTables"))
	assert.Equal(t, 2, fake.Calls("GetActivityStats"))
	assert.Equal(t, 0, fake.Calls("EstimateCompressionRatio"))
	assert.Equal(t, 4, res.Scanned)
	assert.Len(t, res.Candidates, 2)
}

func TestIdentifyExclusions(t *testing.T) {
	compressed := table("APP", "ARCHIVED", 5*config.GiB)
	compressed.Compression = models.SchemeQueryHigh

	basic := table("APP", "ROWCOMP", 5*config.GiB)
	basic.Compression = models.SchemeBasic

	// Narrow rows with nearly unique values barely compress
	tiny := table("APP", "LOOKUP", 1*config.MiB)
	tiny.AvgRowLen = 40
	tiny.Cardinality = 0.95

	fake := newFake(
		table("SYSTEM", "AUD_LOG", 5*config.GiB),
		table("APP", "STG_ORDERS", 5*config.GiB),
		compressed,
		basic,
		tiny,
	)
	id := New(fake, testConfig(), logging.Discard())

	res, err := id.Identify(context.Background(), Filter{MinSizeBytes: 1})
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, e := range res.Excluded {
		reasons[e.Table.Name] = e.Reason
	}
	assert.Equal(t, ExcludedSystemSchema, reasons["AUD_LOG"])
	assert.Equal(t, ExcludedNamePrefix, reasons["STG_ORDERS"])
	assert.Equal(t, ExcludedCompressed, reasons["ARCHIVED"])
	assert.Equal(t, ExcludedLowRatio, reasons["LOOKUP"])

	// Row-compressed tables stay eligible with a penalty
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "ROWCOMP", res.Candidates[0].Snapshot.Name)
	assert.Equal(t, 0.5, res.Candidates[0].Breakdown.CompressionPenalty)
}

func TestIdentifySmallTableNeverListed(t *testing.T) {
	tiny := table("APP", "LOOKUP", 1*config.MiB)
	tiny.Cardinality = 0.95
	fake := newFake(tiny)
	id := New(fake, testConfig(), logging.Discard())

	res, err := id.Identify(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 0, res.Scanned)
}

func TestIdentifyEmptyIsNotAnError(t *testing.T) {
	id := New(newFake(), testConfig(), logging.Discard())

	candidates, err := id.IdentifyCandidates(context.Background(), Filter{Schemas: []string{"APP"}})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestIdentifyLimit(t *testing.T) {
	fake := newFake(
		table("APP", "A", 5*config.GiB),
		table("APP", "B", 4*config.GiB),
		table("APP", "C", 3*config.GiB),
	)
	id := New(fake, testConfig(), logging.Discard())

	candidates, err := id.IdentifyCandidates(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "A", candidates[0].Snapshot.Name)
}

func TestIdentifyPropagatesProviderFailure(t *testing.T) {
	fake := newFake(table("APP", "A", 5*config.GiB))
	fake.FailCall("GetActivityStats", errors.New("ORA-03113: end-of-file on communication channel"))
	id := New(fake, testConfig(), logging.Discard())

	_, err := id.IdentifyCandidates(context.Background(), Filter{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDataAccess, apperr.KindOf(err))
}

func TestIdentifyRejectsMalformedFilter(t *testing.T) {
	id := New(newFake(), testConfig(), logging.Discard())

	_, err := id.IdentifyCandidates(context.Background(), Filter{Schemas: []string{"APP; DROP TABLE X"}})
	assert.True(t, apperr.IsValidation(err))

	_, err = id.IdentifyCandidates(context.Background(), Filter{Preference: "FASTEST"})
	assert.True(t, apperr.IsValidation(err))
}

func TestIdentifyPreferenceBoostsMatchingTables(t *testing.T) {
	reader := table("APP", "READER", 5*config.GiB)
	writer := table("APP", "WRITER", 5*config.GiB)
	writer.ReadCount = 100
	writer.WriteCount = 900_000

	fake := newFake(reader, writer)
	id := New(fake, testConfig(), logging.Discard())

	candidates, err := id.IdentifyCandidates(context.Background(), Filter{Preference: PreferReadHeavy})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "READER", candidates[0].Snapshot.Name)
	assert.Equal(t, 1.2, candidates[0].Breakdown.PreferenceBonus)
	assert.Equal(t, 1.0, candidates[1].Breakdown.PreferenceBonus)
}
