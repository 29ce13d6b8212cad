package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusMetrics names the exporter series holding per-table counters
type PrometheusMetrics struct {
	Reads         string
	Modifications string // labelled by operation=insert|update|delete
	LastAnalyzed  string // unix seconds
}

// DefaultPrometheusMetrics matches a custom-metrics oracledb exporter setup
var DefaultPrometheusMetrics = PrometheusMetrics{
	Reads:         "oracledb_table_logical_reads_total",
	Modifications: "oracledb_table_modifications_total",
	LastAnalyzed:  "oracledb_table_last_analyzed_timestamp_seconds",
}

// PrometheusActivitySource reads table activity from an exporter scraped by Prometheus
type PrometheusActivitySource struct {
	client  v1.API
	url     string
	window  time.Duration
	metrics PrometheusMetrics
	logger  *slog.Logger
}

func NewPrometheusActivitySource(url string, window time.Duration, logger *slog.Logger) (*PrometheusActivitySource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return newPrometheusActivitySource(v1.NewAPI(client), url, window, logger), nil
}

func newPrometheusActivitySource(client v1.API, url string, window time.Duration, logger *slog.Logger) *PrometheusActivitySource {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &PrometheusActivitySource{
		client:  client,
		url:     url,
		window:  window,
		metrics: DefaultPrometheusMetrics,
		logger:  logging.OrDefault(logger),
	}
}

// GetActivityStats sums counter increases over the configured window
func (p *PrometheusActivitySource) GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error) {
	// Label values are embedded in PromQL, so they must be plain identifiers
	if err := ddl.ValidateIdentifier(ref.Schema); err != nil {
		return nil, err
	}
	if err := ddl.ValidateIdentifier(ref.Name); err != nil {
		return nil, err
	}

	selector := fmt.Sprintf(`owner="%s",table="%s"`, ref.Schema, ref.Name)
	rng := model.Duration(p.window).String()

	reads, err := p.querySingle(ctx, fmt.Sprintf(`sum(increase(%s{%s}[%s]))`, p.metrics.Reads, selector, rng))
	if err != nil {
		return nil, classifyRead("getActivityStats", ref.String(), err)
	}

	stats := &models.ActivityStats{ReadCount: int64(reads)}
	for op, dest := range map[string]*int64{"insert": &stats.Inserts, "update": &stats.Updates, "delete": &stats.Deletes} {
		v, err := p.querySingle(ctx, fmt.Sprintf(`sum(increase(%s{%s,operation="%s"}[%s]))`, p.metrics.Modifications, selector, op, rng))
		if err != nil {
			return nil, classifyRead("getActivityStats", ref.String(), err)
		}
		*dest = int64(v)
	}
	stats.WriteCount = stats.Inserts + stats.Updates + stats.Deletes

	if ts, err := p.querySingle(ctx, fmt.Sprintf(`max(%s{%s})`, p.metrics.LastAnalyzed, selector)); err == nil && ts > 0 {
		stats.LastAnalyzed = time.Unix(int64(ts), 0)
	}
	return stats, nil
}

// querySingle returns the summed vector value; an empty result counts as zero
func (p *PrometheusActivitySource) querySingle(ctx context.Context, query string) (float64, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return 0, apperr.DataAccess("prometheus", fmt.Errorf("query failed: %w", err), true)
	}

	if len(warnings) > 0 {
		p.logger.WarnContext(ctx, "prometheus query warnings", "query", query, "warnings", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return 0, apperr.DataAccess("prometheus", fmt.Errorf("unexpected result type %s", result.Type()), false)
	}

	sum := 0.0
	for _, sample := range vector {
		sum += float64(sample.Value)
	}
	return sum, nil
}

func (p *PrometheusActivitySource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusActivitySource) Name() string {
	return "Prometheus"
}
