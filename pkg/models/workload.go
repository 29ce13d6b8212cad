package models

// WorkloadType classifies the read/write mix of a table
type WorkloadType string

const (
	WorkloadReadOnly   WorkloadType = "READ_ONLY"
	WorkloadReadHeavy  WorkloadType = "READ_HEAVY"
	WorkloadMixed      WorkloadType = "MIXED"
	WorkloadWriteHeavy WorkloadType = "WRITE_HEAVY"
)

// AccessFrequency buckets the total operation volume of a table
type AccessFrequency string

const (
	FrequencyVeryLow AccessFrequency = "VERY_LOW"
	FrequencyLow     AccessFrequency = "LOW"
	FrequencyMedium  AccessFrequency = "MEDIUM"
	FrequencyHigh    AccessFrequency = "HIGH"
)

// WorkloadProfile is derived from a snapshot and never stored on its own
type WorkloadProfile struct {
	Type                WorkloadType
	ReadRatio           float64
	WriteRatio          float64
	TotalOperations     int64
	AccessFrequency     AccessFrequency
	IsArchivalCandidate bool
}

// IsReadMostly reports READ_ONLY or READ_HEAVY workloads
func (w WorkloadProfile) IsReadMostly() bool {
	return w.Type == WorkloadReadOnly || w.Type == WorkloadReadHeavy
}
