package recommender

import (
	"github.com/opscart/table-compression-advisor/pkg/analyzer"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// SchemeComparison shows what one scheme would achieve on a table
type SchemeComparison struct {
	Info        models.SchemeInfo
	Savings     models.Savings
	Measured    bool // Savings.Ratio came from the database estimate
	Suitable    bool // affinity fits the table's workload
	Recommended bool
}

// CompareSchemes evaluates every compressing scheme against the table.
// measured holds database-side ratio estimates; schemes without one use
// the catalogue average.
func (r *Recommender) CompareSchemes(s models.TableSnapshot, measured map[models.Scheme]float64) ([]SchemeComparison, error) {
	if err := s.Validate(); err != nil {
		return nil, apperr.Validation("compareSchemes", "%v", err)
	}
	profile := analyzer.ClassifyWorkload(s)
	selected := selectScheme(ruleInput{profile: profile, sizeBytes: s.SizeBytes, largeBytes: r.cfg.LargeTableBytes}).scheme

	var out []SchemeComparison
	for _, info := range models.Schemes() {
		if info.Scheme == models.SchemeNone {
			continue
		}
		cmp := SchemeComparison{
			Info:        info,
			Suitable:    suitable(info, profile),
			Recommended: info.Scheme == selected,
		}
		if ratio, ok := measured[info.Scheme]; ok && ratio > 0 {
			cmp.Savings = savingsForRatio(s.SizeBytes, ratio, ratio, ratio)
			cmp.Measured = true
		} else {
			cmp.Savings = CalculateSavings(s.SizeBytes, info.Scheme)
		}
		out = append(out, cmp)
	}
	return out, nil
}

func suitable(info models.SchemeInfo, profile models.WorkloadProfile) bool {
	switch info.Affinity {
	case models.AffinityArchival:
		return profile.IsArchivalCandidate
	case models.AffinityReadHeavy:
		return profile.IsReadMostly() || profile.Type == models.WorkloadMixed
	case models.AffinityOLTP:
		return !profile.IsArchivalCandidate
	}
	return true
}
