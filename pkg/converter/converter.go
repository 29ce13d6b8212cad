// Package converter maps recommendations and execution records onto
// history entries and back.
package converter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// Status values recorded for recommendation entries
const (
	StatusRecommended = "RECOMMENDED"
	StatusNoChange    = "NO_CHANGE"
)

// RecommendationToEntry converts a recommendation into a history entry.
// The typed columns are filled from the recommendation; the full object
// travels in Payload.
func RecommendationToEntry(rec *models.Recommendation) (*models.HistoryEntry, error) {
	if rec == nil {
		return nil, fmt.Errorf("recommendation is nil")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendation: %w", err)
	}

	status := StatusRecommended
	if rec.IsNoOp() {
		status = StatusNoChange
	}

	return &models.HistoryEntry{
		Type:              models.RecordRecommendation,
		Schema:            rec.Schema,
		Table:             rec.Table,
		OperationTime:     rec.GeneratedAt,
		Status:            status,
		RecommendedScheme: rec.Scheme,
		ExpectedRatio:     rec.Savings.Ratio,
		ExpectedSavings:   rec.Savings.SavedBytes,
		ExpectedPercent:   rec.Savings.Percent,
		SizeBefore:        rec.Savings.CurrentBytes,
		Priority:          rec.Priority,
		RiskLevel:         rec.Risk.Level,
		Payload:           payload,
	}, nil
}

// ExecutionToEntry converts a finished execution into a history entry.
// executionID must match the record when the record carries an id.
func ExecutionToEntry(executionID string, rec *models.Recommendation, result *models.ExecutionRecord) (*models.HistoryEntry, error) {
	if result == nil {
		return nil, fmt.Errorf("execution result is nil")
	}
	if executionID == "" {
		executionID = result.ID
	}
	if executionID == "" || (result.ID != "" && result.ID != executionID) {
		return nil, fmt.Errorf("execution id %q does not match record %q", executionID, result.ID)
	}
	if rec == nil {
		rec = &result.Recommendation
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution: %w", err)
	}

	entry := &models.HistoryEntry{
		Type:              models.RecordExecution,
		ExecutionID:       executionID,
		Schema:            rec.Schema,
		Table:             rec.Table,
		OperationTime:     result.CompletedAt,
		Status:            string(result.Status),
		RecommendedScheme: rec.Scheme,
		ExpectedRatio:     rec.Savings.Ratio,
		ExpectedSavings:   rec.Savings.SavedBytes,
		ExpectedPercent:   rec.Savings.Percent,
		ActualRatio:       result.ActualSavings.Ratio,
		ActualSavings:     result.ActualSavings.SavedBytes,
		Duration:          result.Duration,
		Priority:          rec.Priority,
		RiskLevel:         rec.Risk.Level,
		Payload:           payload,
	}
	if entry.OperationTime.IsZero() {
		entry.OperationTime = time.Now()
	}
	if result.Before != nil {
		entry.SizeBefore = result.Before.SizeBytes
	}
	if result.After != nil {
		entry.SizeAfter = result.After.SizeBytes
		entry.AppliedScheme = result.After.Compression
	}
	if result.Status == models.StatusCompleted {
		entry.AppliedScheme = rec.Scheme
	}
	return entry, nil
}

// EntryToRecommendation decodes the recommendation stored in a
// RECOMMENDATION entry's payload
func EntryToRecommendation(entry *models.HistoryEntry) (*models.Recommendation, error) {
	if entry.Type != models.RecordRecommendation {
		return nil, fmt.Errorf("entry %s is a %s record", entry.ID, entry.Type)
	}
	if len(entry.Payload) == 0 {
		return nil, fmt.Errorf("entry %s has no payload", entry.ID)
	}
	var rec models.Recommendation
	if err := json.Unmarshal(entry.Payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation %s: %w", entry.ID, err)
	}
	return &rec, nil
}
