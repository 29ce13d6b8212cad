package history

import (
	"math"
	"sort"
	"time"
)

// durationStats summarises execution durations
type durationStats struct {
	Average time.Duration
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
}

func calculateDurationStats(samples []time.Duration) durationStats {
	if len(samples) == 0 {
		return durationStats{}
	}

	values := make([]float64, len(samples))
	for i, d := range samples {
		values[i] = float64(d)
	}
	sort.Float64s(values)

	return durationStats{
		Average: time.Duration(calculateAverage(values)),
		P50:     time.Duration(calculatePercentile(values, 50)),
		P95:     time.Duration(calculatePercentile(values, 95)),
		Max:     time.Duration(values[len(values)-1]),
	}
}

// calculatePercentile computes the Nth percentile using linear interpolation
func calculatePercentile(sortedValues []float64, percentile float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	rank := (percentile / 100.0) * float64(len(sortedValues)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sortedValues[lower]
	}

	fraction := rank - float64(lower)
	return sortedValues[lower] + (sortedValues[upper]-sortedValues[lower])*fraction
}

func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
