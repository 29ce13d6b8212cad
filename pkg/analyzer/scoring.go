package analyzer

import (
	"math"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

const (
	// Tables at or above this size get the full size factor
	sizeFactorCeilingMB = 1024 * 1024

	maxRowLenCredit = 400

	compressedPenalty   = 0.5
	partitionedPenalty  = 0.9
	freshStatsBonus     = 1.1
	preferredTableBonus = 1.2
)

// EstimateRatio is the cheap pre-filter estimate of how well a table
// compresses. It rewards wide rows and repeated values; the database-side
// estimate is only requested for tables that survive this filter.
func EstimateRatio(s models.TableSnapshot) float64 {
	redundancy := 0.5
	if s.Cardinality > 0 {
		redundancy = 1 - clamp01(s.Cardinality)
	}
	rowLen := math.Min(float64(s.AvgRowLen), maxRowLenCredit)
	return 1 + 2*redundancy + rowLen/100*redundancy
}

// Score computes the candidate score from the snapshot, its estimated
// ratio and the configured weights. It reads no clock: freshness is
// judged against the snapshot's capture time.
func Score(s models.TableSnapshot, ratio float64, cfg config.AnalysisConfig, pref WorkloadPreference) (float64, models.ScoreBreakdown) {
	sizeMB := float64(s.SizeBytes) / float64(config.MiB)
	b := models.ScoreBreakdown{
		SizeFactor:         clamp01(math.Log10(1+sizeMB) / math.Log10(1+sizeFactorCeilingMB)),
		RatioFactor:        clamp01((ratio - 1) / 9),
		IOFactor:           ioFactor(s),
		CompressionPenalty: 1,
		PartitionPenalty:   1,
		FreshnessBonus:     1,
		PreferenceBonus:    1,
	}
	b.Weighted = 100 * (cfg.SizeWeight*b.SizeFactor + cfg.RatioWeight*b.RatioFactor + cfg.IOWeight*b.IOFactor)

	if s.Compression.IsCompressed() {
		b.CompressionPenalty = compressedPenalty
	}
	if s.Partitioned {
		b.PartitionPenalty = partitionedPenalty
	}
	if statsFresh(s, cfg.StatsFreshDays) {
		b.FreshnessBonus = freshStatsBonus
	}
	if matchesPreference(s, pref) {
		b.PreferenceBonus = preferredTableBonus
	}

	score := b.Weighted * b.CompressionPenalty * b.PartitionPenalty * b.FreshnessBonus * b.PreferenceBonus
	return math.Round(score*100) / 100, b
}

func ioFactor(s models.TableSnapshot) float64 {
	reads := s.ReadCount
	total := reads + s.Writes()
	if total == 0 {
		return 1
	}
	return float64(reads) / float64(total)
}

func statsFresh(s models.TableSnapshot, days int) bool {
	if s.LastAnalyzed.IsZero() || s.CapturedAt.IsZero() || days <= 0 {
		return false
	}
	return s.CapturedAt.Sub(s.LastAnalyzed) <= time.Duration(days)*24*time.Hour
}

func matchesPreference(s models.TableSnapshot, pref WorkloadPreference) bool {
	switch pref {
	case PreferReadHeavy:
		return ClassifyWorkload(s).IsReadMostly()
	case PreferArchival:
		return ClassifyWorkload(s).IsArchivalCandidate
	}
	return false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
