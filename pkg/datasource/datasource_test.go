package datasource

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salesRef = models.TableRef{Schema: "APP", Name: "SALES"}

func salesTable() models.TableSnapshot {
	return models.TableSnapshot{
		Schema:      "APP",
		Name:        "SALES",
		RowCount:    1_000_000,
		AvgRowLen:   200,
		SizeBytes:   10 << 30,
		Compression: models.SchemeNone,
		Indexes:     []string{"SALES_PK"},
		ReadCount:   9_000,
		WriteCount:  100,
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ORA-00054", ErrorCode(errors.New("ORA-00054: resource busy and acquire with NOWAIT specified")))
	assert.Equal(t, "", ErrorCode(errors.New("plain failure")))
	assert.Equal(t, "", ErrorCode(nil))
}

func TestClassifyRead(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      apperr.Kind
		retryable bool
	}{
		{"session limit", errors.New("ORA-00018: maximum number of sessions exceeded"), apperr.KindResource, true},
		{"lost connection", errors.New("ORA-03113: end-of-file on communication channel"), apperr.KindDataAccess, true},
		{"missing table", errors.New("ORA-00942: table or view does not exist"), apperr.KindNotFound, false},
		{"syntax", errors.New("ORA-00904: invalid identifier"), apperr.KindDataAccess, false},
		{"timeout", context.DeadlineExceeded, apperr.KindResource, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRead("measure", "APP.SALES", tt.err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.retryable, apperr.IsRetryable(err))

			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "APP", e.Schema)
			assert.Equal(t, "SALES", e.Table)
		})
	}

	assert.ErrorIs(t, classifyRead("measure", "", context.Canceled), context.Canceled)
}

func TestClassifyApplyKeepsVendorCode(t *testing.T) {
	err := classifyApply("apply", errors.New("ORA-00054: resource busy"))

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindCompression, e.Kind)
	assert.Equal(t, "ORA-00054", e.Code)
	assert.False(t, apperr.IsRetryable(err))
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	ctx := context.Background()

	t.Run("recovers from transient failure", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, policy, logging.Discard(), "op", func(context.Context) error {
			calls++
			if calls < 2 {
				return apperr.DataAccess("op", errors.New("ORA-03113"), true)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, policy, logging.Discard(), "op", func(context.Context) error {
			calls++
			return apperr.Validation("op", "bad input")
		})
		assert.True(t, apperr.IsValidation(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, policy, logging.Discard(), "op", func(context.Context) error {
			calls++
			return apperr.Resource("op", errors.New("ORA-12516: no handler"))
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, apperr.KindResource, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "retries exhausted")
	})
}

func TestRetryingProviderRetriesTransientReads(t *testing.T) {
	fake := NewFake().AddTable(salesTable())
	fake.FailCall("Measure", errors.New("ORA-03113: end-of-file on communication channel"))

	p := NewRetryingProvider(fake, RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, logging.Discard())
	_, err := p.Measure(context.Background(), salesRef)
	require.Error(t, err)
	assert.Equal(t, 2, fake.Calls("Measure"))

	fake.ClearFailures()
	m, err := p.Measure(context.Background(), salesRef)
	require.NoError(t, err)
	assert.Equal(t, int64(10<<30), m.SizeBytes)
}

func TestRatioCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewRatioCache(time.Hour)
	cache.now = func() time.Time { return now }

	cache.Set(salesRef, models.SchemeQueryHigh, 7.5)
	got, ok := cache.Get(salesRef, models.SchemeQueryHigh)
	require.True(t, ok)
	assert.Equal(t, 7.5, got)

	_, ok = cache.Get(salesRef, models.SchemeArchiveHigh)
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = cache.Get(salesRef, models.SchemeQueryHigh)
	assert.False(t, ok)
}

func TestCachingProviderEstimatesOnce(t *testing.T) {
	fake := NewFake().AddTable(salesTable())
	fake.SetRatio(salesRef, models.SchemeQueryHigh, 9)
	p := NewCachingProvider(fake, NewRatioCache(time.Hour))

	for i := 0; i < 3; i++ {
		ratio, err := p.EstimateCompressionRatio(context.Background(), salesRef, models.SchemeQueryHigh, 0)
		require.NoError(t, err)
		assert.Equal(t, 9.0, ratio)
	}
	assert.Equal(t, 1, fake.Calls("EstimateCompressionRatio"))
}

func TestInClause(t *testing.T) {
	clause, args := inClause("owner", []string{"app", "Sales"}, 3)
	assert.Equal(t, "owner IN (:3, :4)", clause)
	assert.Equal(t, []any{"APP", "SALES"}, args)

	clause, args = inClause("owner", nil, 1)
	assert.Empty(t, clause)
	assert.Nil(t, args)
}

func TestFakeMoveAndRestore(t *testing.T) {
	fake := NewFake().AddTable(salesTable())
	fake.SetRatio(salesRef, models.SchemeQueryHigh, 8)
	ctx := context.Background()

	_, err := fake.Apply(ctx, `ALTER TABLE "APP"."SALES" MOVE ONLINE COLUMN STORE COMPRESS FOR QUERY HIGH PARALLEL 4`)
	require.NoError(t, err)

	m, err := fake.Measure(ctx, salesRef)
	require.NoError(t, err)
	assert.Equal(t, int64(10<<30)/8, m.SizeBytes)
	assert.Equal(t, models.SchemeQueryHigh, m.Compression)

	_, err = fake.Apply(ctx, `ALTER TABLE "APP"."SALES" MOVE ONLINE NOCOMPRESS`)
	require.NoError(t, err)

	m, err = fake.Measure(ctx, salesRef)
	require.NoError(t, err)
	assert.Equal(t, int64(10<<30), m.SizeBytes)
	assert.Equal(t, models.SchemeNone, m.Compression)
}

func TestFakePartitionMove(t *testing.T) {
	s := salesTable()
	s.Partitioned = true
	s.Partitions = []string{"P2023", "P2024"}
	fake := NewFake().AddTable(s)
	ctx := context.Background()

	_, err := fake.Apply(ctx, `ALTER TABLE "APP"."SALES" MOVE PARTITION "P2023" COLUMN STORE COMPRESS FOR ARCHIVE HIGH UPDATE INDEXES`)
	require.NoError(t, err)
	got, _ := fake.Table(salesRef)
	assert.Equal(t, models.SchemeNone, got.Compression)
	assert.Less(t, got.SizeBytes, s.SizeBytes)

	_, err = fake.Apply(ctx, `ALTER TABLE "APP"."SALES" MOVE PARTITION "P2024" COLUMN STORE COMPRESS FOR ARCHIVE HIGH UPDATE INDEXES`)
	require.NoError(t, err)
	got, _ = fake.Table(salesRef)
	assert.Equal(t, models.SchemeArchiveHigh, got.Compression)

	_, err = fake.Apply(ctx, `ALTER TABLE "APP"."SALES" MOVE PARTITION "P2099" NOCOMPRESS`)
	assert.Equal(t, apperr.KindCompression, apperr.KindOf(err))
}

func TestFakeFailOn(t *testing.T) {
	fake := NewFake().AddTable(salesTable())
	fake.FailOn(`ALTER INDEX "APP"."SALES_PK"`, errors.New("ORA-00054: resource busy"))

	_, err := fake.Apply(context.Background(), `ALTER INDEX "APP"."SALES_PK" REBUILD ONLINE`)
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "ORA-00054", e.Code)

	_, err = fake.Apply(context.Background(), `ALTER INDEX "APP"."MISSING_IX" REBUILD`)
	require.Error(t, err)
	assert.Len(t, fake.Applied(), 2)
}

func TestFakeGateHonoursContext(t *testing.T) {
	fake := NewFake().AddTable(salesTable())
	fake.Gate = make(chan struct{})
	fake.Entered = make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := fake.Apply(ctx, "BEGIN NULL; END;")
		done <- err
	}()

	assert.Equal(t, "BEGIN NULL; END;", <-fake.Entered)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFakeListTablesFilters(t *testing.T) {
	small := salesTable()
	small.Name = "LOOKUP"
	small.SizeBytes = 1 << 20
	other := salesTable()
	other.Schema = "HR"

	fake := NewFake().AddTable(salesTable()).AddTable(small).AddTable(other)

	tables, err := fake.ListTables(context.Background(), TableFilter{Schemas: []string{"app"}, MinSizeBytes: 100 << 20})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "SALES", tables[0].Name)
	assert.Zero(t, tables[0].ReadCount)

	stats, err := fake.GetActivityStats(context.Background(), salesRef)
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), stats.ReadCount)
}

func TestFakeDescribeTableCarriesNoActivity(t *testing.T) {
	fake := NewFake().AddTable(salesTable())

	s, err := fake.DescribeTable(context.Background(), models.TableRef{Schema: "app", Name: "sales"})
	require.NoError(t, err)
	assert.Equal(t, "SALES", s.Name)
	assert.Zero(t, s.ReadCount)
	assert.Zero(t, s.Writes())
	assert.Zero(t, fake.Calls("GetActivityStats"))
}

func TestCatalogRef(t *testing.T) {
	assert.Equal(t, salesRef, catalogRef(models.TableRef{Schema: "app", Name: "Sales"}))
	assert.Equal(t, salesRef, catalogRef(salesRef))
}

type stubPrometheus struct {
	v1.API
	values  map[string]float64
	queries []string
}

func (s *stubPrometheus) Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error) {
	s.queries = append(s.queries, query)
	for substr, v := range s.values {
		if strings.Contains(query, substr) {
			return model.Vector{&model.Sample{Value: model.SampleValue(v)}}, nil, nil
		}
	}
	return model.Vector{}, nil, nil
}

func TestPrometheusActivitySource(t *testing.T) {
	stub := &stubPrometheus{values: map[string]float64{
		"oracledb_table_logical_reads_total": 5000,
		`operation="insert"`:                 30,
		`operation="update"`:                 20,
	}}
	src := newPrometheusActivitySource(stub, "http://prom:9090", 24*time.Hour, logging.Discard())

	stats, err := src.GetActivityStats(context.Background(), salesRef)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stats.ReadCount)
	assert.Equal(t, int64(30), stats.Inserts)
	assert.Equal(t, int64(0), stats.Deletes)
	assert.Equal(t, int64(50), stats.WriteCount)
	assert.Contains(t, stub.queries[0], `owner="APP",table="SALES"`)
	assert.Contains(t, stub.queries[0], "[1d]")
}

func TestPrometheusRejectsHostileLabels(t *testing.T) {
	stub := &stubPrometheus{}
	src := newPrometheusActivitySource(stub, "", time.Hour, logging.Discard())

	_, err := src.GetActivityStats(context.Background(), models.TableRef{Schema: "APP", Name: `X"} or vector(1) #`})
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, stub.queries)
}
