package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/analyzer"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"golang.org/x/sync/errgroup"
)

type Recommender struct {
	cfg     config.AnalysisConfig
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg config.AnalysisConfig, logger *slog.Logger) *Recommender {
	return &Recommender{
		cfg:    cfg,
		now:    time.Now,
		logger: logging.OrDefault(logger),
	}
}

// WithClock replaces the clock that stamps GeneratedAt
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

func (r *Recommender) WithMetrics(m *metrics.Metrics) *Recommender {
	r.metrics = m
	return r
}

// Recommend turns one scored candidate into a recommendation
func (r *Recommender) Recommend(c models.Candidate) (*models.Recommendation, error) {
	s := c.Snapshot
	if err := s.Validate(); err != nil {
		return nil, apperr.Validation("recommend", "%v", err)
	}
	if err := ddl.ValidateIdentifier(s.Schema); err != nil {
		return nil, err
	}
	if err := ddl.ValidateIdentifier(s.Name); err != nil {
		return nil, err
	}

	current := s.Compression
	if current == "" {
		current = models.SchemeNone
	}
	ratio := c.EstimatedRatio
	if ratio == 0 {
		ratio = analyzer.EstimateRatio(s)
	}
	profile := analyzer.ClassifyWorkload(s)

	rec := &models.Recommendation{
		Schema:         s.Schema,
		Table:          s.Name,
		CurrentScheme:  current,
		Workload:       profile,
		Score:          c.Score,
		EstimatedRatio: ratio,
		GeneratedAt:    r.now(),
	}

	if ratio < 1.0 {
		r.noChange(rec, s, fmt.Sprintf("Estimated ratio %.2f: compression would not reduce size", ratio))
		return rec, nil
	}

	rule := selectScheme(ruleInput{profile: profile, sizeBytes: s.SizeBytes, largeBytes: r.cfg.LargeTableBytes})
	if current.AtLeast(rule.scheme) {
		r.noChange(rec, s, fmt.Sprintf("Already compressed with %s, equivalent to or stronger than %s", current, rule.scheme))
		return rec, nil
	}

	rec.Scheme = rule.scheme
	rec.Reason = rule.reason(ruleInput{profile: profile, sizeBytes: s.SizeBytes, largeBytes: r.cfg.LargeTableBytes})
	if rule.warning != "" {
		rec.Warnings = append(rec.Warnings, rule.warning)
	}
	rec.Savings = CalculateSavings(s.SizeBytes, rule.scheme)
	rec.Strategy = BuildStrategy(s, rule.scheme)
	rec.Risk = AssessRisk(s, profile, rule.scheme, r.cfg)
	rec.Priority = AssignPriority(s.SizeBytes, rec.Savings.Percent, r.cfg)

	if s.Partitioned && len(s.Partitions) == 0 {
		rec.Warnings = append(rec.Warnings, "Partition names unknown; falling back to a full-table move")
	}

	r.metrics.RecommendationProduced(string(rec.Scheme), string(rec.Priority))
	r.logger.Debug("recommendation generated",
		"schema", rec.Schema,
		"table", rec.Table,
		"scheme", rec.Scheme,
		"priority", rec.Priority,
		"risk", rec.Risk.Level)

	return rec, nil
}

// noChange fills rec with the no-compression sentinel
func (r *Recommender) noChange(rec *models.Recommendation, s models.TableSnapshot, reason string) {
	rec.Scheme = models.SchemeNone
	rec.Reason = reason
	rec.Savings = models.Savings{CurrentBytes: s.SizeBytes, CompressedBytes: s.SizeBytes, Ratio: 1}
	rec.Strategy = models.ImplementationStrategy{Approach: models.ApproachNoChange}
	rec.Risk = models.RiskAssessment{Level: models.RiskNone}
	rec.Priority = models.PriorityLow
	r.metrics.RecommendationProduced(string(models.SchemeNone), string(rec.Priority))
}

// RecommendBatch runs Recommend over candidates on a bounded pool and
// returns the results HIGH priority first.
func (r *Recommender) RecommendBatch(ctx context.Context, candidates []models.Candidate) ([]*models.Recommendation, error) {
	out := make([]*models.Recommendation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Workers, 1))
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := r.Recommend(candidates[i])
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortRecommendations(out)
	return out, nil
}

// SortRecommendations orders by priority, then score, then table key
func SortRecommendations(recs []*models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Ref().Key() < b.Ref().Key()
	})
}
