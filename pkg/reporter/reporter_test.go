package reporter

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecommendations() []*models.Recommendation {
	return []*models.Recommendation{
		{
			Schema: "APP", Table: "SALES", Scheme: models.SchemeQueryHigh, CurrentScheme: models.SchemeNone,
			Savings:  models.Savings{CurrentBytes: 800, SavedBytes: 700, Percent: 87.5},
			Priority: models.PriorityHigh,
			Risk:     models.RiskAssessment{Level: models.RiskMedium},
			Warnings: []string{"first", "second"},
		},
		{
			Schema: "APP", Table: "AUDIT_2019", Scheme: models.SchemeArchiveHigh, CurrentScheme: models.SchemeBasic,
			Savings:  models.Savings{CurrentBytes: 1500, SavedBytes: 1400, Percent: 93.33},
			Priority: models.PriorityMedium,
			Risk:     models.RiskAssessment{Level: models.RiskLow},
		},
		{
			Schema: "APP", Table: "LOOKUP", Scheme: models.SchemeNone, CurrentScheme: models.SchemeNone,
			Savings: models.Savings{CurrentBytes: 100},
		},
	}
}

func TestGenerate(t *testing.T) {
	report := New().Generate(sampleRecommendations(), "PROD")

	assert.Equal(t, 3, report.TableCount)
	assert.Equal(t, 2, report.ActionableCount)
	assert.Equal(t, int64(2400), report.CurrentBytes)
	assert.Equal(t, int64(2100), report.SavedBytes)
	assert.Equal(t, 1, report.PriorityStats[models.PriorityHigh])

	require.Len(t, report.SchemeStats, 2)
	assert.Equal(t, models.SchemeQueryHigh, report.SchemeStats[0].Scheme)
	assert.Equal(t, models.SchemeArchiveHigh, report.SchemeStats[1].Scheme)
	assert.InDelta(t, 87.5, report.SchemeStats[0].SavedPercent(), 0.001)
}

func TestGenerateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateCSV(New().Generate(sampleRecommendations(), "PROD"), &buf))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, "Schema", rows[0][0])
	assert.Equal(t, []string{"APP", "SALES", "NONE", "QUERY HIGH"}, rows[1][:4])
	assert.Equal(t, "87.50", rows[1][7])
	assert.Equal(t, "first; second", rows[1][14])

	var summary bool
	for _, row := range rows {
		if row[0] == "Total Saved Bytes" {
			summary = true
			assert.Equal(t, "2100", row[1])
		}
	}
	assert.True(t, summary)
}

func TestGenerateHTMLEscapesNames(t *testing.T) {
	recs := sampleRecommendations()
	var buf bytes.Buffer
	require.NoError(t, GenerateHTML(New().Generate(recs, "<script>"), &buf))

	out := buf.String()
	assert.Contains(t, out, "APP.SALES")
	assert.Contains(t, out, "level-high")
	assert.False(t, strings.Contains(out, "<script>"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "10.0 GiB", FormatBytes(10<<30))
}
