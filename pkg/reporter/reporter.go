// Package reporter builds compression reports from recommendations and
// renders them as CSV or HTML.
package reporter

import (
	"fmt"
	"sort"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatCSV  ReportFormat = "csv"
)

// Report contains all data for generating reports
type Report struct {
	Database        string
	GeneratedAt     time.Time
	Recommendations []*models.Recommendation

	TableCount      int
	ActionableCount int
	CurrentBytes    int64
	SavedBytes      int64

	SchemeStats   []*SchemeStats
	PriorityStats map[models.Priority]int
}

// SchemeStats holds totals for the tables recommended one scheme
type SchemeStats struct {
	Scheme       models.Scheme
	Tables       int
	CurrentBytes int64
	SavedBytes   int64
}

// SavedPercent is the share of the scheme's current bytes saved
func (s *SchemeStats) SavedPercent() float64 {
	if s.CurrentBytes == 0 {
		return 0
	}
	return float64(s.SavedBytes) / float64(s.CurrentBytes) * 100
}

// Reporter generates compression reports
type Reporter struct {
	now func() time.Time
}

func New() *Reporter {
	return &Reporter{now: time.Now}
}

// Generate generates a report from recommendations
func (r *Reporter) Generate(recommendations []*models.Recommendation, database string) *Report {
	report := &Report{
		Database:        database,
		GeneratedAt:     r.now(),
		Recommendations: recommendations,
		PriorityStats:   make(map[models.Priority]int),
	}

	byScheme := make(map[models.Scheme]*SchemeStats)
	for _, rec := range recommendations {
		report.TableCount++
		report.CurrentBytes += rec.Savings.CurrentBytes
		if rec.IsNoOp() {
			continue
		}
		report.ActionableCount++
		report.SavedBytes += rec.Savings.SavedBytes
		report.PriorityStats[rec.Priority]++

		stat, ok := byScheme[rec.Scheme]
		if !ok {
			stat = &SchemeStats{Scheme: rec.Scheme}
			byScheme[rec.Scheme] = stat
		}
		stat.Tables++
		stat.CurrentBytes += rec.Savings.CurrentBytes
		stat.SavedBytes += rec.Savings.SavedBytes
	}

	for _, stat := range byScheme {
		report.SchemeStats = append(report.SchemeStats, stat)
	}
	sort.Slice(report.SchemeStats, func(i, j int) bool {
		a, b := report.SchemeStats[i].Scheme, report.SchemeStats[j].Scheme
		if a.Info().Strength != b.Info().Strength {
			return a.Info().Strength < b.Info().Strength
		}
		return a < b
	})
	return report
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
