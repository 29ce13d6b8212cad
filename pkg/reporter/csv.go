package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	header := []string{
		"Schema",
		"Table",
		"Current Scheme",
		"Recommended Scheme",
		"Workload",
		"Current Bytes",
		"Saved Bytes",
		"Savings %",
		"Min Savings %",
		"Max Savings %",
		"Priority",
		"Risk",
		"Approach",
		"Score",
		"Warnings",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range report.Recommendations {
		row := []string{
			rec.Schema,
			rec.Table,
			string(rec.CurrentScheme),
			string(rec.Scheme),
			string(rec.Workload.Type),
			strconv.FormatInt(rec.Savings.CurrentBytes, 10),
			strconv.FormatInt(rec.Savings.SavedBytes, 10),
			fmt.Sprintf("%.2f", rec.Savings.Percent),
			fmt.Sprintf("%.2f", rec.Savings.MinPercent),
			fmt.Sprintf("%.2f", rec.Savings.MaxPercent),
			string(rec.Priority),
			string(rec.Risk.Level),
			string(rec.Strategy.Approach),
			fmt.Sprintf("%.2f", rec.Score),
			strings.Join(rec.Warnings, "; "),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Summary rows
	summary := [][]string{
		{},
		{"SUMMARY"},
		{"Tables Analyzed", strconv.Itoa(report.TableCount)},
		{"Compression Opportunities", strconv.Itoa(report.ActionableCount)},
		{"Total Current Bytes", strconv.FormatInt(report.CurrentBytes, 10)},
		{"Total Saved Bytes", strconv.FormatInt(report.SavedBytes, 10)},
		{},
		{"SCHEME BREAKDOWN"},
		{"Scheme", "Tables", "Current Bytes", "Saved Bytes"},
	}
	for _, stat := range report.SchemeStats {
		summary = append(summary, []string{
			string(stat.Scheme),
			strconv.Itoa(stat.Tables),
			strconv.FormatInt(stat.CurrentBytes, 10),
			strconv.FormatInt(stat.SavedBytes, 10),
		})
	}
	if err := w.WriteAll(summary); err != nil {
		return fmt.Errorf("failed to write CSV summary: %w", err)
	}
	return nil
}
