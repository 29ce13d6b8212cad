package models

import (
	"encoding/json"
	"time"
)

// RecordType discriminates history entries
type RecordType string

const (
	RecordRecommendation RecordType = "RECOMMENDATION"
	RecordExecution      RecordType = "EXECUTION"
)

// HistoryEntry is an append-only audit record. The typed columns are the
// source of truth for reporting; Payload is kept for forensic replay.
type HistoryEntry struct {
	ID            string
	Type          RecordType
	ExecutionID   string
	Schema        string
	Table         string
	OperationTime time.Time
	Status        string

	RecommendedScheme Scheme
	AppliedScheme     Scheme
	ExpectedRatio     float64
	ActualRatio       float64
	ExpectedSavings   int64
	ActualSavings     int64
	SizeBefore        int64
	SizeAfter         int64
	Duration          time.Duration
	Priority          Priority
	RiskLevel         RiskLevel
	ExpectedPercent   float64

	Payload json.RawMessage
}

// HistoryQuery filters history reads. Zero values mean "no filter".
type HistoryQuery struct {
	Schema string
	Table  string
	Type   RecordType
	Scheme Scheme
	Since  time.Time
	Until  time.Time
	Limit  int
}

// SchemeSavings aggregates executions that applied one scheme
type SchemeSavings struct {
	Scheme     Scheme
	Executions int
	SavedBytes int64
	AvgRatio   float64
}

// StatisticsSummary aggregates history over a trailing window
type StatisticsSummary struct {
	Since time.Time
	Until time.Time

	TotalRecommendations int
	TotalExecutions      int
	Completed            int
	Failed               int
	RolledBack           int
	UniqueTables         int

	ExpectedSavingsBytes int64
	ActualSavingsBytes   int64
	AvgActualRatio       float64
	AvgDuration          time.Duration
	DurationP50          time.Duration
	DurationP95          time.Duration
	MaxDuration          time.Duration

	ByScheme map[Scheme]*SchemeSavings
}
