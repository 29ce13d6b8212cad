package analyzer

import "github.com/opscart/table-compression-advisor/pkg/models"

// Read-ratio thresholds, checked from the top
var workloadThresholds = []struct {
	minReadRatio float64
	workload     models.WorkloadType
}{
	{0.9, models.WorkloadReadOnly},
	{0.7, models.WorkloadReadHeavy},
	{0.3, models.WorkloadMixed},
	{0, models.WorkloadWriteHeavy},
}

// Total operation volume over the provider's observation window
var frequencyThresholds = []struct {
	below     int64
	frequency models.AccessFrequency
}{
	{1_000, models.FrequencyVeryLow},
	{100_000, models.FrequencyLow},
	{1_000_000, models.FrequencyMedium},
}

// ClassifyWorkload derives the workload profile of a snapshot. A table
// with no recorded activity counts as read-only.
func ClassifyWorkload(s models.TableSnapshot) models.WorkloadProfile {
	reads := s.ReadCount
	writes := s.Writes()
	total := reads + writes

	readRatio := 1.0
	if total > 0 {
		readRatio = float64(reads) / float64(total)
	}

	profile := models.WorkloadProfile{
		ReadRatio:       readRatio,
		WriteRatio:      1 - readRatio,
		TotalOperations: total,
		AccessFrequency: models.FrequencyHigh,
	}

	for _, t := range workloadThresholds {
		if readRatio >= t.minReadRatio {
			profile.Type = t.workload
			break
		}
	}

	for _, t := range frequencyThresholds {
		if total < t.below {
			profile.AccessFrequency = t.frequency
			break
		}
	}

	profile.IsArchivalCandidate = profile.AccessFrequency == models.FrequencyLow ||
		profile.AccessFrequency == models.FrequencyVeryLow

	return profile
}
