package models

import "time"

// RiskLevel represents the risk of applying a recommendation
type RiskLevel string

const (
	RiskNone   RiskLevel = "NONE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Priority orders recommendations for the operator
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank returns 0 for HIGH, 1 for MEDIUM and 2 for LOW
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// StepAction names one kind of implementation step
type StepAction string

const (
	ActionGatherStats  StepAction = "GATHER_STATS"
	ActionCompress     StepAction = "COMPRESS_TABLE"
	ActionCompressPart StepAction = "COMPRESS_PARTITION"
	ActionRebuildIndex StepAction = "REBUILD_INDEX"
	ActionVerify       StepAction = "VERIFY"
	ActionRestoreTable StepAction = "RESTORE_TABLE"
	ActionRestoreIndex StepAction = "RESTORE_INDEX"
)

// Approach distinguishes full-table from partition-wise rewrites
type Approach string

const (
	ApproachFullTable     Approach = "FULL_TABLE"
	ApproachPartitionWise Approach = "PARTITION_BY_PARTITION"
	ApproachNoChange      Approach = "NO_CHANGE"
)

// Step is one ordered action of an implementation strategy
type Step struct {
	Order       int
	Action      StepAction
	Target      string // partition or index name, empty for table-level steps
	Description string
	Critical    bool
}

// ImplementationStrategy is the ordered plan for applying a scheme
type ImplementationStrategy struct {
	Approach Approach
	Steps    []Step
}

// Savings is the expected outcome of applying a scheme
type Savings struct {
	CurrentBytes    int64
	CompressedBytes int64
	SavedBytes      int64
	Ratio           float64
	Percent         float64

	// Range derived from the scheme's ratio bounds
	MinSavedBytes int64
	MaxSavedBytes int64
	MinPercent    float64
	MaxPercent    float64
}

// RiskAssessment lists what can go wrong and what must be in place
type RiskAssessment struct {
	Level              RiskLevel
	Risks              []string
	Prerequisites      []string
	RecommendPilotTest bool
}

// Recommendation is the durable decision for one table. It is never
// edited; a changed situation produces a new recommendation.
type Recommendation struct {
	Schema string
	Table  string

	Scheme         Scheme
	CurrentScheme  Scheme
	Workload       WorkloadProfile
	Savings        Savings
	Strategy       ImplementationStrategy
	Risk           RiskAssessment
	Priority       Priority
	Score          float64
	EstimatedRatio float64

	Reason   string
	Warnings []string

	GeneratedAt time.Time
}

// Ref returns the table identity of the recommendation
func (r *Recommendation) Ref() TableRef {
	return TableRef{Schema: r.Schema, Name: r.Table}
}

// IsNoOp reports a recommendation that carries the no-compression sentinel
func (r *Recommendation) IsNoOp() bool {
	return r.Scheme == SchemeNone
}
