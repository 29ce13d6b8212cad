package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Identifier finds and scores compression candidates
type Identifier struct {
	provider   datasource.MetadataProvider
	cfg        config.AnalysisConfig
	classifier *SchemaClassifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(provider datasource.MetadataProvider, cfg config.AnalysisConfig, logger *slog.Logger) *Identifier {
	return &Identifier{
		provider:   provider,
		cfg:        cfg,
		classifier: NewSchemaClassifier(cfg.SystemSchemas, cfg.ExcludedPrefixes),
		logger:     logging.OrDefault(logger),
	}
}

// WithMetrics attaches collectors; nil disables them
func (a *Identifier) WithMetrics(m *metrics.Metrics) *Identifier {
	a.metrics = m
	return a
}

// IdentifyCandidates returns the scored candidates, best first
func (a *Identifier) IdentifyCandidates(ctx context.Context, filter Filter) ([]models.Candidate, error) {
	res, err := a.Identify(ctx, filter)
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

// Identify runs one analysis pass. The provider is asked for the table
// list once and for activity once per table that survives the static
// filters.
func (a *Identifier) Identify(ctx context.Context, filter Filter) (*Result, error) {
	filter, err := a.resolve(filter)
	if err != nil {
		return nil, err
	}

	snapshots, err := a.provider.ListTables(ctx, datasource.TableFilter{
		Schemas:      filter.Schemas,
		MinSizeBytes: filter.MinSizeBytes,
	})
	if err != nil {
		return nil, wrapDataAccess("listTables", err)
	}

	res := &Result{Scanned: len(snapshots)}
	eligible := make([]models.TableSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if reason, detail, ok := a.exclude(s, filter); ok {
			res.Excluded = append(res.Excluded, Exclusion{Table: s.Ref(), Reason: reason, Detail: detail})
			a.metrics.CandidateExcluded(reason)
			continue
		}
		eligible = append(eligible, s)
	}

	// Bounded fan-out for activity; each worker writes only its own slot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i := range eligible {
		g.Go(func() error {
			stats, err := a.provider.GetActivityStats(gctx, eligible[i].Ref())
			if err != nil {
				return err
			}
			eligible[i] = eligible[i].WithActivity(stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapDataAccess("getActivityStats", err)
	}

	for _, s := range eligible {
		res.Candidates = append(res.Candidates, a.Evaluate(s, filter.Preference))
	}

	SortCandidates(res.Candidates)
	if filter.Limit > 0 && len(res.Candidates) > filter.Limit {
		res.Candidates = res.Candidates[:filter.Limit]
	}

	a.logger.InfoContext(ctx, "candidate identification complete",
		"scanned", res.Scanned,
		"candidates", len(res.Candidates),
		"excluded", len(res.Excluded))

	return res, nil
}

// Evaluate scores a single snapshot that already carries its activity
func (a *Identifier) Evaluate(s models.TableSnapshot, pref WorkloadPreference) models.Candidate {
	ratio := EstimateRatio(s)
	score, breakdown := Score(s, ratio, a.cfg, pref)
	a.metrics.CandidateScored()
	return models.Candidate{
		Snapshot:       s,
		EstimatedRatio: ratio,
		Score:          score,
		Breakdown:      breakdown,
	}
}

// exclude applies the static filters in order and reports the first hit
func (a *Identifier) exclude(s models.TableSnapshot, filter Filter) (string, string, bool) {
	if err := s.Validate(); err != nil {
		return ExcludedInvalid, err.Error(), true
	}
	if a.classifier.IsSystemSchema(s.Schema) {
		return ExcludedSystemSchema, s.Schema, true
	}
	if prefix, ok := a.classifier.ExcludedPrefix(s.Name); ok {
		return ExcludedNamePrefix, prefix, true
	}
	if s.Compression.AtLeast(models.SchemeQueryLow) {
		return ExcludedCompressed, string(s.Compression), true
	}
	if ratio := EstimateRatio(s); ratio < filter.MinRatio {
		return ExcludedLowRatio, "", true
	}
	return "", "", false
}

func (a *Identifier) resolve(filter Filter) (Filter, error) {
	for _, schema := range filter.Schemas {
		if err := ddl.ValidateIdentifier(schema); err != nil {
			return filter, err
		}
	}
	if filter.MinSizeBytes < 0 {
		return filter, apperr.Validation("identifyCandidates", "minimum size must not be negative")
	}
	if filter.MinRatio < 0 {
		return filter, apperr.Validation("identifyCandidates", "minimum ratio must not be negative")
	}
	switch filter.Preference {
	case PreferNone, PreferReadHeavy, PreferArchival:
	default:
		return filter, apperr.Validation("identifyCandidates", "unknown workload preference %q", filter.Preference)
	}

	if filter.MinSizeBytes == 0 {
		filter.MinSizeBytes = a.cfg.MinTableBytes
	}
	if filter.MinRatio == 0 {
		filter.MinRatio = a.cfg.MinRatio
	}
	if filter.Limit == 0 {
		filter.Limit = a.cfg.ResultLimit
	}
	return filter, nil
}

func (a *Identifier) workers() int {
	if a.cfg.Workers < 1 {
		return 1
	}
	return a.cfg.Workers
}

// SortCandidates orders by descending score, breaking ties by table key
// so repeated passes return the same sequence.
func SortCandidates(c []models.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Ref().Key() < c[j].Ref().Key()
	})
}

// wrapDataAccess keeps typed errors and marks anything else as a data
// access failure.
func wrapDataAccess(op string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) || errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.DataAccess(op, err, false)
}
