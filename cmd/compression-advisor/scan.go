package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/analyzer"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/opscart/table-compression-advisor/pkg/reporter"
	"github.com/spf13/cobra"
)

var (
	// Scan flags
	scanSchemas  []string
	minSizeMiB   int64
	minRatio     float64
	scanLimit    int
	preference   string
	dryRun       bool
	reportFormat string
	reportOutput string
	databaseName string
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find compression candidates and recommend a scheme for each",
		RunE:  run(runScan),
	}
	cmd.Flags().StringSliceVarP(&scanSchemas, "schema", "s", nil, "Schemas to scan (default all non-system schemas)")
	cmd.Flags().Int64Var(&minSizeMiB, "min-size", 0, "Minimum table size in MiB (default from config)")
	cmd.Flags().Float64Var(&minRatio, "min-ratio", 0, "Minimum estimated compression ratio (default from config)")
	cmd.Flags().IntVar(&scanLimit, "limit", 0, "Maximum number of candidates (default from config)")
	cmd.Flags().StringVar(&preference, "prefer", "", "Workload preference: read-heavy, archival")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show recommendations without recording them")
	cmd.Flags().StringVar(&reportFormat, "report-format", "", "Also write a report: html, csv")
	cmd.Flags().StringVar(&reportOutput, "report-output", "", "Report file (default reports/compression-report-<timestamp>.<ext>)")
	cmd.Flags().StringVar(&databaseName, "database", "default", "Database name shown in reports")
	return cmd
}

func parsePreference(s string) (analyzer.WorkloadPreference, error) {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "":
		return analyzer.PreferNone, nil
	case string(analyzer.PreferReadHeavy):
		return analyzer.PreferReadHeavy, nil
	case string(analyzer.PreferArchival):
		return analyzer.PreferArchival, nil
	default:
		return "", usagef("unknown workload preference: %s", s)
	}
}

func runScan(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	pref, err := parsePreference(preference)
	if err != nil {
		return err
	}
	if reportFormat != "" && !isReportFormat(reportFormat) {
		return usagef("report format must be html or csv")
	}

	filter := analyzer.Filter{
		Schemas:      scanSchemas,
		MinSizeBytes: minSizeMiB << 20,
		MinRatio:     minRatio,
		Limit:        scanLimit,
		Preference:   pref,
	}
	if dryRun {
		a.logger.Info("dry-run mode: recommendations will not be recorded")
	}

	analysis, err := a.advisor.Analyze(ctx, filter, !dryRun)
	if err != nil {
		return err
	}
	a.logger.Info("scan finished",
		"scanned", analysis.Identification.Scanned,
		"candidates", len(analysis.Identification.Candidates),
		"excluded", len(analysis.Identification.Excluded),
		"recorded", analysis.Recorded)

	if isReportFormat(outputFormat) {
		report := reporter.New().Generate(analysis.Recommendations, databaseName)
		if err := renderReport(reporter.ReportFormat(outputFormat), report, cmd.OutOrStdout()); err != nil {
			return err
		}
	} else if err := a.out.DisplayRecommendations(ctx, analysis.Recommendations); err != nil {
		return err
	}
	if reportFormat != "" {
		return writeReport(a, analysis.Recommendations)
	}
	return nil
}

func isReportFormat(format string) bool {
	return format == string(reporter.FormatHTML) || format == string(reporter.FormatCSV)
}

func renderReport(format reporter.ReportFormat, report *reporter.Report, w io.Writer) error {
	switch format {
	case reporter.FormatHTML:
		return reporter.GenerateHTML(report, w)
	case reporter.FormatCSV:
		return reporter.GenerateCSV(report, w)
	default:
		return usagef("unsupported report format: %s", format)
	}
}

func writeReport(a *app, recs []*models.Recommendation) error {
	report := reporter.New().Generate(recs, databaseName)

	outputFile := reportOutput
	if outputFile == "" {
		reportsDir := "reports"
		if err := os.MkdirAll(reportsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create reports directory: %w", err)
		}
		timestamp := time.Now().Format("20060102-150405")
		outputFile = filepath.Join(reportsDir, fmt.Sprintf("compression-report-%s.%s", timestamp, reportFormat))
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := renderReport(reporter.ReportFormat(reportFormat), report, file); err != nil {
		return err
	}

	a.logger.Info("report generated", "format", reportFormat, "file", outputFile)
	return nil
}

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <schema> <table>",
		Short: "Recommend a compression scheme for one table",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			rec, err := a.advisor.Recommend(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.out.DisplayRecommendations(ctx, []*models.Recommendation{rec})
		}),
	}
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <schema> <table>",
		Short: "Compare every compression scheme for one table",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			comparisons, err := a.advisor.CompareSchemes(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.out.DisplayComparison(ctx, models.TableRef{Schema: args[0], Name: args[1]}, comparisons)
		}),
	}
}
