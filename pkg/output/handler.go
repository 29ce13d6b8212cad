// Package output renders advisor results for the command line.
package output

import (
	"context"
	"fmt"
	"io"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/recommender"
)

// Handler defines the interface for output formatting
type Handler interface {
	DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error
	DisplayExecution(ctx context.Context, record *models.ExecutionRecord) error
	DisplayComparison(ctx context.Context, table models.TableRef, comparisons []recommender.SchemeComparison) error
	DisplayHistory(ctx context.Context, entries []*models.HistoryEntry) error
	DisplaySummary(ctx context.Context, summary *models.StatisticsSummary) error
	Format() string
}

// NewHandler returns the handler for a format name
func NewHandler(format string, w io.Writer) (Handler, error) {
	switch format {
	case "", "text":
		return NewTextHandler(w), nil
	case "json":
		return NewJSONHandler(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
