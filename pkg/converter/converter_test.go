package converter

import (
	"testing"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generated = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func recommendation() *models.Recommendation {
	return &models.Recommendation{
		Schema: "APP",
		Table:  "SALES",
		Scheme: models.SchemeQueryHigh,
		Savings: models.Savings{
			CurrentBytes: 800, CompressedBytes: 100, SavedBytes: 700, Ratio: 8, Percent: 87.5,
		},
		Risk:        models.RiskAssessment{Level: models.RiskMedium},
		Priority:    models.PriorityHigh,
		GeneratedAt: generated,
	}
}

func TestRecommendationToEntry(t *testing.T) {
	entry, err := RecommendationToEntry(recommendation())
	require.NoError(t, err)

	assert.Equal(t, models.RecordRecommendation, entry.Type)
	assert.Equal(t, StatusRecommended, entry.Status)
	assert.Equal(t, generated, entry.OperationTime)
	assert.Equal(t, models.SchemeQueryHigh, entry.RecommendedScheme)
	assert.Equal(t, int64(700), entry.ExpectedSavings)
	assert.Equal(t, 87.5, entry.ExpectedPercent)
	assert.Equal(t, models.RiskMedium, entry.RiskLevel)

	back, err := EntryToRecommendation(entry)
	require.NoError(t, err)
	assert.Equal(t, "SALES", back.Table)
	assert.True(t, generated.Equal(back.GeneratedAt))
}

func TestNoChangeRecommendation(t *testing.T) {
	rec := recommendation()
	rec.Scheme = models.SchemeNone
	entry, err := RecommendationToEntry(rec)
	require.NoError(t, err)
	assert.Equal(t, StatusNoChange, entry.Status)
}

func TestExecutionToEntry(t *testing.T) {
	rec := recommendation()
	finished := generated.Add(time.Hour)
	result := &models.ExecutionRecord{
		ID:             "exec-1",
		Recommendation: *rec,
		Status:         models.StatusCompleted,
		Before:         &models.Measurement{SizeBytes: 800, Compression: models.SchemeNone},
		After:          &models.Measurement{SizeBytes: 100, Compression: models.SchemeQueryHigh},
		ActualSavings:  models.ActualSavings{SavedBytes: 700, Ratio: 8, Percent: 87.5},
		CompletedAt:    finished,
		Duration:       10 * time.Minute,
	}

	entry, err := ExecutionToEntry("exec-1", rec, result)
	require.NoError(t, err)
	assert.Equal(t, models.RecordExecution, entry.Type)
	assert.Equal(t, "exec-1", entry.ExecutionID)
	assert.Equal(t, "COMPLETED", entry.Status)
	assert.Equal(t, finished, entry.OperationTime)
	assert.Equal(t, models.SchemeQueryHigh, entry.AppliedScheme)
	assert.Equal(t, int64(800), entry.SizeBefore)
	assert.Equal(t, int64(100), entry.SizeAfter)
	assert.Equal(t, 8.0, entry.ActualRatio)
	assert.Equal(t, 10*time.Minute, entry.Duration)
	assert.Contains(t, string(entry.Payload), `"ID":"exec-1"`)

	_, err = EntryToRecommendation(entry)
	assert.Error(t, err)
}

func TestRolledBackExecutionRecordsRestoredScheme(t *testing.T) {
	rec := recommendation()
	result := &models.ExecutionRecord{
		ID:             "exec-2",
		Recommendation: *rec,
		Status:         models.StatusRolledBack,
		Before:         &models.Measurement{SizeBytes: 800, Compression: models.SchemeNone},
		After:          &models.Measurement{SizeBytes: 800, Compression: models.SchemeNone},
	}

	entry, err := ExecutionToEntry("", nil, result)
	require.NoError(t, err)
	assert.Equal(t, "exec-2", entry.ExecutionID)
	assert.Equal(t, models.SchemeNone, entry.AppliedScheme)
	assert.Equal(t, models.SchemeQueryHigh, entry.RecommendedScheme)
	assert.False(t, entry.OperationTime.IsZero())
}

func TestExecutionIDMismatch(t *testing.T) {
	_, err := ExecutionToEntry("other", nil, &models.ExecutionRecord{ID: "exec-1"})
	assert.Error(t, err)
}
