package analyzer

import "github.com/opscart/table-compression-advisor/pkg/models"

// WorkloadPreference biases scoring towards a kind of table
type WorkloadPreference string

const (
	PreferNone      WorkloadPreference = ""
	PreferReadHeavy WorkloadPreference = "READ_HEAVY"
	PreferArchival  WorkloadPreference = "ARCHIVAL"
)

// Filter narrows a candidate search. Zero values fall back to the
// configured analysis thresholds.
type Filter struct {
	Schemas      []string
	MinSizeBytes int64
	MinRatio     float64
	Limit        int
	Preference   WorkloadPreference
}

// Exclusion reasons, also used as metric labels
const (
	ExcludedSystemSchema = "system_schema"
	ExcludedNamePrefix   = "name_prefix"
	ExcludedCompressed   = "already_compressed"
	ExcludedLowRatio     = "low_ratio"
	ExcludedInvalid      = "invalid_snapshot"
)

// Exclusion explains why a table never became a candidate
type Exclusion struct {
	Table  models.TableRef
	Reason string
	Detail string
}

// Result is the output of one identification pass
type Result struct {
	Candidates []models.Candidate
	Excluded   []Exclusion
	Scanned    int
}
