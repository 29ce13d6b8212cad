package analyzer

import (
	"testing"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEstimateRatio(t *testing.T) {
	tests := []struct {
		name        string
		avgRowLen   int64
		cardinality float64
		want        float64
	}{
		{"unknown cardinality", 100, 0, 2.5},
		{"repetitive wide rows", 400, 0.1, 1 + 1.8 + 3.6},
		{"unique narrow rows", 20, 1, 1},
		{"row width is capped", 4000, 0.5, 1 + 1 + 2},
		{"highly repetitive", 400, 0.0001, 1 + 2*0.9999 + 4*0.9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateRatio(models.TableSnapshot{AvgRowLen: tt.avgRowLen, Cardinality: tt.cardinality})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreIsPure(t *testing.T) {
	cfg := testConfig()
	s := table("APP", "SALES", 10*config.GiB)
	s.CapturedAt = captured

	first, b1 := Score(s, 4, cfg, PreferNone)
	second, b2 := Score(s, 4, cfg, PreferNone)
	assert.Equal(t, first, second)
	assert.Equal(t, b1, b2)
}

func TestScoreMultipliers(t *testing.T) {
	cfg := testConfig()
	base := table("APP", "SALES", 10*config.GiB)
	base.CapturedAt = captured
	base.LastAnalyzed = captured.Add(-30 * 24 * time.Hour)

	plain, b := Score(base, 4, cfg, PreferNone)
	assert.Equal(t, 1.0, b.CompressionPenalty)
	assert.Equal(t, 1.0, b.PartitionPenalty)
	assert.Equal(t, 1.0, b.FreshnessBonus)
	assert.InDelta(t, b.Weighted, plain, 0.02)

	compressed := base
	compressed.Compression = models.SchemeOLTP
	score, _ := Score(compressed, 4, cfg, PreferNone)
	assert.InDelta(t, plain*0.5, score, 0.02)

	partitioned := base
	partitioned.Partitioned = true
	score, _ = Score(partitioned, 4, cfg, PreferNone)
	assert.InDelta(t, plain*0.9, score, 0.02)

	fresh := base
	fresh.LastAnalyzed = captured.Add(-6 * 24 * time.Hour)
	score, b = Score(fresh, 4, cfg, PreferNone)
	assert.Equal(t, 1.1, b.FreshnessBonus)
	assert.InDelta(t, plain*1.1, score, 0.02)
}

func TestScoreFactors(t *testing.T) {
	cfg := testConfig()

	idle := table("APP", "IDLE", 1024*1024*config.MiB)
	idle.ReadCount, idle.WriteCount = 0, 0
	_, b := Score(idle, 10, cfg, PreferNone)
	assert.InDelta(t, 1.0, b.SizeFactor, 1e-9)
	assert.InDelta(t, 1.0, b.RatioFactor, 1e-9)
	assert.Equal(t, 1.0, b.IOFactor)
	assert.InDelta(t, 100, b.Weighted, 1e-6)

	writer := table("APP", "WRITER", 1*config.GiB)
	writer.ReadCount, writer.WriteCount = 250, 750
	_, b = Score(writer, 1, cfg, PreferNone)
	assert.Equal(t, 0.25, b.IOFactor)
	assert.Equal(t, 0.0, b.RatioFactor)
	assert.Greater(t, b.SizeFactor, 0.0)
	assert.Less(t, b.SizeFactor, 1.0)
}

func TestLargerTablesScoreHigher(t *testing.T) {
	cfg := testConfig()
	small, _ := Score(table("APP", "S", 1*config.GiB), 4, cfg, PreferNone)
	large, _ := Score(table("APP", "L", 100*config.GiB), 4, cfg, PreferNone)
	assert.Greater(t, large, small)
}
