package recommender

import (
	"fmt"
	"strings"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// ruleInput is everything the selection table may look at
type ruleInput struct {
	profile    models.WorkloadProfile
	sizeBytes  int64
	largeBytes int64
}

// schemeRule is one row of the selection table
type schemeRule struct {
	name    string
	matches func(in ruleInput) bool
	scheme  models.Scheme
	reason  func(in ruleInput) string
	warning string
}

// schemeRules is evaluated top to bottom; the first match wins. Archival
// rows come first, so a large idle table is archived rather than given a
// query scheme.
var schemeRules = []schemeRule{
	{
		name: "archival-dormant",
		matches: func(in ruleInput) bool {
			return in.profile.IsArchivalCandidate && in.profile.AccessFrequency == models.FrequencyVeryLow
		},
		scheme: models.SchemeArchiveHigh,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("Dormant table (%d operations in the observation window); maximum archive compression", in.profile.TotalOperations)
		},
	},
	{
		name: "archival",
		matches: func(in ruleInput) bool {
			return in.profile.IsArchivalCandidate
		},
		scheme: models.SchemeArchiveLow,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("Infrequently accessed table (%d operations); archive compression", in.profile.TotalOperations)
		},
	},
	{
		name: "read-mostly-large",
		matches: func(in ruleInput) bool {
			return in.profile.IsReadMostly() && in.sizeBytes >= in.largeBytes
		},
		scheme: models.SchemeQueryHigh,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("Large %s table (%.0f%% reads); high warehouse compression", workloadLabel(in.profile.Type), in.profile.ReadRatio*100)
		},
	},
	{
		name: "read-mostly",
		matches: func(in ruleInput) bool {
			return in.profile.IsReadMostly()
		},
		scheme: models.SchemeQueryLow,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("%s table (%.0f%% reads); low warehouse compression keeps scans fast", capitalize(workloadLabel(in.profile.Type)), in.profile.ReadRatio*100)
		},
	},
	{
		name: "mixed",
		matches: func(in ruleInput) bool {
			return in.profile.Type == models.WorkloadMixed
		},
		scheme: models.SchemeQueryLow,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("Mixed workload (%.0f%% writes); favouring query performance over ratio", in.profile.WriteRatio*100)
		},
	},
	{
		name: "write-heavy",
		matches: func(in ruleInput) bool {
			return true
		},
		scheme: models.SchemeQueryLow,
		reason: func(in ruleInput) string {
			return fmt.Sprintf("Write-heavy workload (%.0f%% writes); lowest-overhead scheme as a safe default", in.profile.WriteRatio*100)
		},
		warning: "Compression is discouraged for write-heavy tables: DML against compressed blocks costs CPU and may degrade performance",
	},
}

// selectScheme returns the first matching row of the selection table
func selectScheme(in ruleInput) schemeRule {
	for _, rule := range schemeRules {
		if rule.matches(in) {
			return rule
		}
	}
	// The last row always matches
	return schemeRules[len(schemeRules)-1]
}

func workloadLabel(t models.WorkloadType) string {
	switch t {
	case models.WorkloadReadOnly:
		return "read-only"
	case models.WorkloadReadHeavy:
		return "read-heavy"
	case models.WorkloadMixed:
		return "mixed"
	}
	return "write-heavy"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
