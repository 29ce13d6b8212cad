package models

import (
	"fmt"
	"time"
)

// ExecutionStatus is the lifecycle state of an execution
type ExecutionStatus string

const (
	StatusPending    ExecutionStatus = "PENDING"
	StatusInProgress ExecutionStatus = "IN_PROGRESS"
	StatusCompleted  ExecutionStatus = "COMPLETED"
	StatusFailed     ExecutionStatus = "FAILED"
	StatusRolledBack ExecutionStatus = "ROLLED_BACK"
)

var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusRolledBack},
}

// CanTransition reports whether from -> to is a legal lifecycle move
func CanTransition(from, to ExecutionStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsActive reports PENDING and IN_PROGRESS
func (s ExecutionStatus) IsActive() bool {
	return s == StatusPending || s == StatusInProgress
}

// IsTerminal reports states from which no further move happens.
// FAILED counts as terminal once rollback has been attempted.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRolledBack || s == StatusFailed
}

// ExecutionOptions controls how a recommendation is applied
type ExecutionOptions struct {
	DryRun          bool
	Online          bool
	ParallelDegree  int
	StepTimeout     time.Duration
	ApproveHighRisk bool
	ExecutedBy      string
}

// StepResult records the outcome of one executed statement
type StepResult struct {
	Order        int
	Action       StepAction
	Target       string
	Statement    string
	Critical     bool
	Success      bool
	RowsAffected int64
	Error        string
	ErrorCode    string
	StartedAt    time.Time
	Duration     time.Duration
}

// ActualSavings is measured from before/after readings, not estimated
type ActualSavings struct {
	SavedBytes int64
	Ratio      float64
	Percent    float64
}

// ExecutionRecord tracks one attempt to apply a recommendation. It is
// owned by the executing worker until it reaches a terminal state.
type ExecutionRecord struct {
	ID             string
	Recommendation Recommendation
	Options        ExecutionOptions
	Status         ExecutionStatus
	DryRun         bool

	Plan     []string
	Steps    []StepResult
	Rollback []StepResult
	Warnings []string

	Before        *Measurement
	After         *Measurement
	ActualSavings ActualSavings

	Error             string
	ErrorCode         string
	FailedStep        string
	RollbackAttempted bool
	RollbackError     string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// Ref returns the table identity of the execution
func (e *ExecutionRecord) Ref() TableRef {
	return e.Recommendation.Ref()
}

// Transition moves the record to a new status, enforcing the lifecycle
func (e *ExecutionRecord) Transition(to ExecutionStatus) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("illegal execution transition %s -> %s", e.Status, to)
	}
	e.Status = to
	return nil
}

// NeedsAttention reports a failure whose rollback did not succeed
func (e *ExecutionRecord) NeedsAttention() bool {
	return e.Status == StatusFailed && e.RollbackError != ""
}

// Clone returns a deep copy safe to hand to other goroutines
func (e *ExecutionRecord) Clone() *ExecutionRecord {
	if e == nil {
		return nil
	}
	c := *e
	c.Plan = append([]string(nil), e.Plan...)
	c.Steps = append([]StepResult(nil), e.Steps...)
	c.Rollback = append([]StepResult(nil), e.Rollback...)
	c.Warnings = append([]string(nil), e.Warnings...)
	if e.Before != nil {
		b := *e.Before
		c.Before = &b
	}
	if e.After != nil {
		a := *e.After
		c.After = &a
	}
	return &c
}
