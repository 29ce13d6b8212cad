package models

// ScoreBreakdown records how each factor contributed to a candidate score
type ScoreBreakdown struct {
	SizeFactor  float64 // 0-1, logarithmic in table size
	RatioFactor float64 // 0-1, from the estimated ratio
	IOFactor    float64 // 0-1, read share of activity

	Weighted float64 // weighted sum before multipliers, scaled to 0-100

	CompressionPenalty float64 // multiplier, 1 when uncompressed
	PartitionPenalty   float64 // multiplier, 1 when not partitioned
	FreshnessBonus     float64 // multiplier, 1 when statistics are stale
	PreferenceBonus    float64 // multiplier, 1 unless the caller's workload preference matched
}

// Candidate is a table scored for compression potential
type Candidate struct {
	Snapshot       TableSnapshot
	EstimatedRatio float64
	Score          float64
	Breakdown      ScoreBreakdown
}

// Ref returns the table identity of the candidate
func (c *Candidate) Ref() TableRef {
	return c.Snapshot.Ref()
}
