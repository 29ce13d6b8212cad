package analyzer

import (
	"testing"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestClassifyWorkload(t *testing.T) {
	tests := []struct {
		name      string
		reads     int64
		writes    int64
		workload  models.WorkloadType
		frequency models.AccessFrequency
		archival  bool
	}{
		{"no activity", 0, 0, models.WorkloadReadOnly, models.FrequencyVeryLow, true},
		{"read only", 9_500_000, 500_000, models.WorkloadReadOnly, models.FrequencyHigh, false},
		{"read heavy", 700_000, 300_000, models.WorkloadReadHeavy, models.FrequencyHigh, false},
		{"mixed", 300_000, 700_000, models.WorkloadMixed, models.FrequencyHigh, false},
		{"write heavy", 100, 6_750_000, models.WorkloadWriteHeavy, models.FrequencyHigh, false},
		{"low volume", 50_000, 10_000, models.WorkloadReadHeavy, models.FrequencyLow, true},
		{"medium volume", 500_000, 0, models.WorkloadReadOnly, models.FrequencyMedium, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ClassifyWorkload(models.TableSnapshot{ReadCount: tt.reads, WriteCount: tt.writes})
			assert.Equal(t, tt.workload, p.Type)
			assert.Equal(t, tt.frequency, p.AccessFrequency)
			assert.Equal(t, tt.archival, p.IsArchivalCandidate)
			assert.Equal(t, tt.reads+tt.writes, p.TotalOperations)
			assert.InDelta(t, 1.0, p.ReadRatio+p.WriteRatio, 1e-9)
		})
	}
}

func TestClassifyWorkloadUsesDMLCounters(t *testing.T) {
	// WriteCount unset: inserts/updates/deletes are summed
	p := ClassifyWorkload(models.TableSnapshot{ReadCount: 10, Inserts: 150_000, Updates: 75_000})
	assert.Equal(t, models.WorkloadWriteHeavy, p.Type)
	assert.Equal(t, int64(225_010), p.TotalOperations)
}

func TestSchemaClassifier(t *testing.T) {
	c := NewSchemaClassifier([]string{"sys", "SYSTEM"}, []string{"tmp_", "BIN$"})

	assert.True(t, c.IsSystemSchema("SYS"))
	assert.True(t, c.IsSystemSchema("system"))
	assert.True(t, c.IsSystemSchema("APEX_230100"))
	assert.False(t, c.IsSystemSchema("APP"))

	prefix, ok := c.ExcludedPrefix("tmp_orders")
	assert.True(t, ok)
	assert.Equal(t, "TMP_", prefix)
	_, ok = c.ExcludedPrefix("ORDERS_TMP")
	assert.False(t, ok)

	assert.Equal(t, []string{"SYS", "SYSTEM"}, c.SystemSchemas())
}
