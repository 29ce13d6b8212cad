package output

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/recommender"
)

// JSONHandler writes indented JSON documents, one per call
type JSONHandler struct {
	w   io.Writer
	now func() time.Time
}

func NewJSONHandler(w io.Writer) *JSONHandler {
	return &JSONHandler{w: w, now: time.Now}
}

func (h *JSONHandler) Format() string { return "json" }

func (h *JSONHandler) encode(v any) error {
	encoder := json.NewEncoder(h.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (h *JSONHandler) DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error {
	var saved int64
	for _, rec := range recommendations {
		saved += rec.Savings.SavedBytes
	}
	return h.encode(map[string]any{
		"recommendations":   recommendations,
		"total_saved_bytes": saved,
		"count":             len(recommendations),
		"timestamp":         h.now().Format(time.RFC3339),
	})
}

func (h *JSONHandler) DisplayExecution(ctx context.Context, record *models.ExecutionRecord) error {
	return h.encode(record)
}

func (h *JSONHandler) DisplayComparison(ctx context.Context, table models.TableRef, comparisons []recommender.SchemeComparison) error {
	return h.encode(map[string]any{
		"table":       table.String(),
		"comparisons": comparisons,
	})
}

func (h *JSONHandler) DisplayHistory(ctx context.Context, entries []*models.HistoryEntry) error {
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	return h.encode(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *JSONHandler) DisplaySummary(ctx context.Context, summary *models.StatisticsSummary) error {
	return h.encode(summary)
}
