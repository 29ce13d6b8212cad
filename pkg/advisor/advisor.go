// Package advisor wires identification, recommendation, execution and
// history into the operations exposed to the CLI.
package advisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/analyzer"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/executor"
	"github.com/opscart/table-compression-advisor/pkg/history"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/recommender"
	"github.com/opscart/table-compression-advisor/pkg/storage"
	"golang.org/x/sync/errgroup"
)

const ratioCacheTTL = time.Hour

// target joins the read side used for measurements with the applier
type target struct {
	datasource.MetadataProvider
	datasource.Applier
}

type Advisor struct {
	db          datasource.Database
	provider    datasource.MetadataProvider
	store       storage.Store
	identifier  *analyzer.Identifier
	recommender *recommender.Recommender
	executor    *executor.Executor
	history     *history.Tracker
	cfg         *config.Config
	logger      *slog.Logger
}

// Options carries optional collaborators
type Options struct {
	Metrics  *metrics.Metrics
	Registry *executor.Registry
	Now      func() time.Time
}

// New builds an advisor over the target database and history store.
// Metadata reads are retried and ratio estimates cached; DDL is retried
// only on resource errors.
func New(db datasource.Database, store storage.Store, cfg *config.Config, logger *slog.Logger, opts Options) *Advisor {
	logger = logging.OrDefault(logger)
	policy := datasource.RetryPolicy{Attempts: cfg.Execution.RetryAttempts, Backoff: cfg.Execution.RetryBackoff}

	provider := datasource.NewCachingProvider(
		datasource.NewRetryingProvider(db, policy, logger),
		datasource.NewRatioCache(ratioCacheTTL),
	)
	applier := datasource.NewRetryingApplier(db, policy, logger)

	rec := recommender.New(cfg.Analysis, logger).WithMetrics(opts.Metrics)
	tracker := history.New(store, cfg.RetentionDays, logger)
	exec := executor.New(target{provider, applier}, opts.Registry, store, cfg.Execution, logger).
		WithMetrics(opts.Metrics)
	if opts.Now != nil {
		rec = rec.WithClock(opts.Now)
		tracker = tracker.WithClock(opts.Now)
		exec = exec.WithClock(opts.Now)
	}

	return &Advisor{
		db:          db,
		provider:    provider,
		store:       store,
		identifier:  analyzer.New(provider, cfg.Analysis, logger).WithMetrics(opts.Metrics),
		recommender: rec,
		executor:    exec,
		history:     tracker,
		cfg:         cfg,
		logger:      logger,
	}
}

// Identify runs one candidate identification pass
func (a *Advisor) Identify(ctx context.Context, filter analyzer.Filter) (*analyzer.Result, error) {
	return a.identifier.Identify(ctx, filter)
}

// Analysis is the outcome of Analyze
type Analysis struct {
	Identification  *analyzer.Result
	Recommendations []*models.Recommendation
	Recorded        int
}

// Analyze identifies candidates, recommends a scheme for each and, unless
// record is false, appends every recommendation to the history.
func (a *Advisor) Analyze(ctx context.Context, filter analyzer.Filter, record bool) (*Analysis, error) {
	res, err := a.identifier.Identify(ctx, filter)
	if err != nil {
		return nil, err
	}
	recs, err := a.recommender.RecommendBatch(ctx, res.Candidates)
	if err != nil {
		return nil, err
	}

	out := &Analysis{Identification: res, Recommendations: recs}
	if !record {
		return out, nil
	}
	for _, rec := range recs {
		if _, err := a.history.RecordRecommendation(ctx, rec); err != nil {
			return out, err
		}
		out.Recorded++
	}
	return out, nil
}

// Recommend describes one table and produces a recommendation for it
func (a *Advisor) Recommend(ctx context.Context, schema, table string) (*models.Recommendation, error) {
	snapshot, err := a.describe(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	return a.recommender.Recommend(a.identifier.Evaluate(*snapshot, analyzer.PreferNone))
}

func (a *Advisor) describe(ctx context.Context, schema, table string) (*models.TableSnapshot, error) {
	if err := ddl.ValidateIdentifier(schema); err != nil {
		return nil, err
	}
	if err := ddl.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	snapshot, err := a.provider.DescribeTable(ctx, models.TableRef{Schema: schema, Name: table})
	if err != nil {
		return nil, err
	}
	// Catalogue reads carry no activity; workload classification needs it
	stats, err := a.provider.GetActivityStats(ctx, snapshot.Ref())
	if err != nil {
		return nil, err
	}
	described := snapshot.WithActivity(stats)
	return &described, nil
}

// CompareSchemes evaluates every scheme against one table using the
// database's own ratio estimates where it can supply them
func (a *Advisor) CompareSchemes(ctx context.Context, schema, table string) ([]recommender.SchemeComparison, error) {
	snapshot, err := a.describe(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	schemes := models.Schemes()
	ratios := make([]float64, len(schemes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Analysis.Workers, 1))
	for i, info := range schemes {
		if info.Scheme == models.SchemeNone {
			continue
		}
		g.Go(func() error {
			ratio, err := a.provider.EstimateCompressionRatio(gctx, snapshot.Ref(), info.Scheme, a.cfg.Analysis.SampleSize)
			if err != nil {
				// Fall back to the catalogue average for this scheme
				a.logger.WarnContext(gctx, "ratio estimate unavailable",
					"schema", schema, "table", table, "scheme", info.Scheme, "error", err)
				return nil
			}
			ratios[i] = ratio
			return nil
		})
	}
	_ = g.Wait()

	measured := make(map[models.Scheme]float64)
	for i, info := range schemes {
		if ratios[i] > 0 {
			measured[info.Scheme] = ratios[i]
		}
	}
	return a.recommender.CompareSchemes(*snapshot, measured)
}

// Execute applies rec and records the outcome. Dry runs are not recorded.
func (a *Advisor) Execute(ctx context.Context, rec *models.Recommendation, opts models.ExecutionOptions) (*models.ExecutionRecord, error) {
	result, err := a.executor.Execute(ctx, rec, opts)
	if result == nil || result.DryRun {
		return result, err
	}
	return result, errors.Join(err, a.recordExecution(ctx, result))
}

// ExecuteTable recommends and executes in one step
func (a *Advisor) ExecuteTable(ctx context.Context, schema, table string, opts models.ExecutionOptions) (*models.ExecutionRecord, error) {
	rec, err := a.Recommend(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, rec, opts)
}

// ExecuteBatch applies recommendations for distinct tables concurrently
// and records every outcome
func (a *Advisor) ExecuteBatch(ctx context.Context, recs []*models.Recommendation, opts models.ExecutionOptions) ([]executor.BatchResult, error) {
	results, err := a.executor.ExecuteBatch(ctx, recs, opts)
	errs := []error{err}
	for _, r := range results {
		if r.Record == nil || r.Record.DryRun {
			continue
		}
		errs = append(errs, a.recordExecution(ctx, r.Record))
	}
	return results, errors.Join(errs...)
}

func (a *Advisor) recordExecution(ctx context.Context, result *models.ExecutionRecord) error {
	// The table has already changed; history must be written even if the
	// caller gave up
	_, err := a.history.RecordExecution(context.WithoutCancel(ctx), result.ID, &result.Recommendation, result)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to record execution", "execution_id", result.ID, "error", err)
	}
	return err
}

// Status returns one execution, in flight or journalled
func (a *Advisor) Status(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return a.executor.GetExecutionStatus(ctx, id)
}

// ActiveExecutions lists PENDING and IN_PROGRESS executions
func (a *Advisor) ActiveExecutions() []*models.ExecutionRecord {
	return a.executor.ListActiveExecutions()
}

func (a *Advisor) TableHistory(ctx context.Context, schema, table string, opts history.TableOptions) ([]*models.HistoryEntry, error) {
	return a.history.GetTableHistory(ctx, schema, table, opts)
}

func (a *Advisor) Statistics(ctx context.Context, days int) (*models.StatisticsSummary, error) {
	return a.history.GetStatisticsSummary(ctx, days)
}

func (a *Advisor) ListRecommendations(ctx context.Context, f history.RecommendationFilter) ([]*models.Recommendation, error) {
	return a.history.ListRecommendations(ctx, f)
}

// Purge applies the retention horizon to the history
func (a *Advisor) Purge(ctx context.Context) (int, error) {
	return a.history.Purge(ctx)
}

// Ping checks the target database and the history store
func (a *Advisor) Ping(ctx context.Context) error {
	var errs []error
	if err := a.db.Ping(ctx); err != nil {
		errs = append(errs, apperr.DataAccess("ping", err, true))
	}
	if err := a.store.Ping(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Sanitize converts err for a boundary exposed to untrusted callers. The
// detailed error is logged under the returned reference id.
func (a *Advisor) Sanitize(ctx context.Context, err error) *apperr.PublicError {
	return apperr.Public(ctx, a.logger, err)
}
