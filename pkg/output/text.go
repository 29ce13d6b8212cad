package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/recommender"
	"github.com/opscart/table-compression-advisor/pkg/reporter"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
)

const timeLayout = "2006-01-02 15:04:05"

// TextHandler writes human-readable, colored output
type TextHandler struct {
	w io.Writer
}

func NewTextHandler(w io.Writer) *TextHandler {
	return &TextHandler{w: w}
}

func (h *TextHandler) Format() string { return "text" }

func levelColor(level string) *color.Color {
	switch level {
	case string(models.RiskHigh):
		return errorColor
	case string(models.RiskMedium):
		return warningColor
	default:
		return successColor
	}
}

func statusColor(status string) *color.Color {
	switch models.ExecutionStatus(status) {
	case models.StatusCompleted:
		return successColor
	case models.StatusFailed:
		return errorColor
	case models.StatusRolledBack:
		return warningColor
	default:
		return infoColor
	}
}

func (h *TextHandler) DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error {
	if len(recommendations) == 0 {
		infoColor.Fprintln(h.w, "[INFO] No compression opportunities found")
		return nil
	}

	boldColor.Fprintln(h.w, "=== Compression Recommendations ===")
	fmt.Fprintln(h.w)

	var current, saved int64
	for i, rec := range recommendations {
		fmt.Fprintf(h.w, "%d. %s.%s", i+1, rec.Schema, rec.Table)
		if rec.IsNoOp() {
			fmt.Fprintln(h.w, " [NO CHANGE]")
		} else {
			fmt.Fprint(h.w, " ")
			levelColor(string(rec.Priority)).Fprintf(h.w, "[%s]\n", rec.Priority)
		}

		fmt.Fprintf(h.w, "   Scheme: %s -> %s\n", rec.CurrentScheme, rec.Scheme)
		fmt.Fprintf(h.w, "   Workload: %s (reads %.0f%%)\n", rec.Workload.Type, rec.Workload.ReadRatio*100)
		if rec.Reason != "" {
			fmt.Fprintf(h.w, "   Reason: %s\n", rec.Reason)
		}
		fmt.Fprintf(h.w, "   Size: %s -> %s (saves %s, %.1f%%)\n",
			reporter.FormatBytes(rec.Savings.CurrentBytes),
			reporter.FormatBytes(rec.Savings.CompressedBytes),
			reporter.FormatBytes(rec.Savings.SavedBytes),
			rec.Savings.Percent)
		if !rec.IsNoOp() {
			fmt.Fprintf(h.w, "   Approach: %s (%d steps)\n", rec.Strategy.Approach, len(rec.Strategy.Steps))
			fmt.Fprint(h.w, "   Risk: ")
			levelColor(string(rec.Risk.Level)).Fprintln(h.w, rec.Risk.Level)
		}
		for _, w := range rec.Warnings {
			warningColor.Fprintf(h.w, "   ⚠ %s\n", w)
		}
		fmt.Fprintln(h.w)

		current += rec.Savings.CurrentBytes
		saved += rec.Savings.SavedBytes
	}

	fmt.Fprintf(h.w, "Total potential savings: %s of %s\n", reporter.FormatBytes(saved), reporter.FormatBytes(current))
	return nil
}

func (h *TextHandler) DisplayExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	fmt.Fprintf(h.w, "Execution: %s\n", rec.ID)
	fmt.Fprintf(h.w, "Table: %s.%s (%s -> %s)\n",
		rec.Recommendation.Schema, rec.Recommendation.Table,
		rec.Recommendation.CurrentScheme, rec.Recommendation.Scheme)
	fmt.Fprint(h.w, "Status: ")
	statusColor(string(rec.Status)).Fprintln(h.w, rec.Status)

	if rec.DryRun {
		infoColor.Fprintln(h.w, "Dry run, planned statements:")
		for i, stmt := range rec.Plan {
			fmt.Fprintf(h.w, "  %d. %s\n", i+1, stmt)
		}
		return nil
	}

	for _, step := range rec.Steps {
		mark := successColor.Sprint("✓")
		if !step.Success {
			mark = errorColor.Sprint("✗")
		}
		fmt.Fprintf(h.w, "  %s %s %s (%s)\n", mark, step.Action, step.Target, step.Duration.Round(time.Millisecond))
		if step.Error != "" {
			fmt.Fprintf(h.w, "      %s\n", step.Error)
		}
	}
	for _, step := range rec.Rollback {
		fmt.Fprintf(h.w, "  ↺ %s %s\n", step.Action, step.Target)
	}

	if rec.Status == models.StatusCompleted {
		fmt.Fprintf(h.w, "Saved: %s (ratio %.2f, %.1f%%)\n",
			reporter.FormatBytes(rec.ActualSavings.SavedBytes), rec.ActualSavings.Ratio, rec.ActualSavings.Percent)
	}
	if rec.Error != "" {
		errorColor.Fprintf(h.w, "Error: %s\n", rec.Error)
	}
	if rec.RollbackError != "" {
		errorColor.Fprintf(h.w, "Rollback error: %s\n", rec.RollbackError)
	}
	for _, w := range rec.Warnings {
		warningColor.Fprintf(h.w, "⚠ %s\n", w)
	}
	return nil
}

func (h *TextHandler) DisplayComparison(ctx context.Context, table models.TableRef, comparisons []recommender.SchemeComparison) error {
	boldColor.Fprintf(h.w, "Scheme comparison for %s\n\n", table)
	fmt.Fprintf(h.w, "%-14s %-8s %-12s %-8s %-8s %-8s\n", "Scheme", "Ratio", "Saved", "Percent", "Source", "Fits")
	fmt.Fprintln(h.w, strings.Repeat("-", 64))
	for _, c := range comparisons {
		source := "catalog"
		if c.Measured {
			source = "sampled"
		}
		fits := "no"
		if c.Suitable {
			fits = "yes"
		}
		line := fmt.Sprintf("%-14s %-8.2f %-12s %-8.1f %-8s %-8s",
			c.Info.Scheme, c.Savings.Ratio, reporter.FormatBytes(c.Savings.SavedBytes), c.Savings.Percent, source, fits)
		if c.Recommended {
			successColor.Fprintln(h.w, line+" *")
		} else {
			fmt.Fprintln(h.w, line)
		}
	}
	return nil
}

func (h *TextHandler) DisplayHistory(ctx context.Context, entries []*models.HistoryEntry) error {
	if len(entries) == 0 {
		infoColor.Fprintln(h.w, "No history entries found")
		return nil
	}
	for i, e := range entries {
		fmt.Fprintf(h.w, "%d. %s.%s %s ", i+1, e.Schema, e.Table, e.Type)
		statusColor(e.Status).Fprintln(h.w, e.Status)
		fmt.Fprintf(h.w, "   Time: %s\n", e.OperationTime.Format(timeLayout))
		fmt.Fprintf(h.w, "   Scheme: %s", e.RecommendedScheme)
		if e.AppliedScheme != "" {
			fmt.Fprintf(h.w, " (applied %s)", e.AppliedScheme)
		}
		fmt.Fprintln(h.w)
		if e.Type == models.RecordExecution {
			fmt.Fprintf(h.w, "   Saved: %s (ratio %.2f) in %s\n",
				reporter.FormatBytes(e.ActualSavings), e.ActualRatio, e.Duration)
		} else {
			fmt.Fprintf(h.w, "   Expected: %s (ratio %.2f)\n", reporter.FormatBytes(e.ExpectedSavings), e.ExpectedRatio)
		}
	}
	return nil
}

func (h *TextHandler) DisplaySummary(ctx context.Context, s *models.StatisticsSummary) error {
	boldColor.Fprintf(h.w, "Compression activity %s to %s\n\n", s.Since.Format("2006-01-02"), s.Until.Format("2006-01-02"))
	fmt.Fprintf(h.w, "Recommendations:  %d\n", s.TotalRecommendations)
	fmt.Fprintf(h.w, "Executions:       %d\n", s.TotalExecutions)
	successColor.Fprintf(h.w, "  Completed:      %d\n", s.Completed)
	errorColor.Fprintf(h.w, "  Failed:         %d\n", s.Failed)
	warningColor.Fprintf(h.w, "  Rolled back:    %d\n", s.RolledBack)
	fmt.Fprintf(h.w, "Tables:           %d\n", s.UniqueTables)
	fmt.Fprintf(h.w, "Expected savings: %s\n", reporter.FormatBytes(s.ExpectedSavingsBytes))
	fmt.Fprintf(h.w, "Actual savings:   %s\n", reporter.FormatBytes(s.ActualSavingsBytes))
	fmt.Fprintf(h.w, "Average ratio:    %.2f\n", s.AvgActualRatio)
	fmt.Fprintf(h.w, "Duration:         avg %s, p50 %s, p95 %s, max %s\n", s.AvgDuration, s.DurationP50, s.DurationP95, s.MaxDuration)

	if len(s.ByScheme) > 0 {
		fmt.Fprintln(h.w)
		for _, info := range models.Schemes() {
			stat, ok := s.ByScheme[info.Scheme]
			if !ok {
				continue
			}
			fmt.Fprintf(h.w, "  %-14s %3d executions, %s saved, avg ratio %.2f\n",
				stat.Scheme, stat.Executions, reporter.FormatBytes(stat.SavedBytes), stat.AvgRatio)
		}
	}
	return nil
}
