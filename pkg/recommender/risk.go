package recommender

import (
	"fmt"

	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// AssessRisk escalates from LOW as operational hazards are found.
// Prerequisites are informational and never raise the level.
func AssessRisk(s models.TableSnapshot, profile models.WorkloadProfile, scheme models.Scheme, cfg config.AnalysisConfig) models.RiskAssessment {
	risk := models.RiskAssessment{Level: models.RiskLow}
	raise := func(level models.RiskLevel) {
		if riskRank(level) > riskRank(risk.Level) {
			risk.Level = level
		}
	}

	if n := len(s.Indexes); n > 0 {
		raise(models.RiskMedium)
		risk.Risks = append(risk.Risks, fmt.Sprintf("%d index(es) must be rebuilt after the move", n))
	}
	if !s.Partitioned {
		raise(models.RiskHigh)
		risk.Risks = append(risk.Risks, "Table is not partitioned: the whole segment is rewritten in one operation")
	}
	if profile.Type == models.WorkloadWriteHeavy {
		raise(models.RiskHigh)
		risk.Risks = append(risk.Risks, "Write-heavy workload: compressed blocks increase DML cost")
	}
	if s.SizeBytes >= cfg.LargeTableBytes {
		risk.Risks = append(risk.Risks, fmt.Sprintf("Long duration: %.1f GiB must be rewritten", float64(s.SizeBytes)/float64(config.GiB)))
	}

	info := scheme.Info()
	switch {
	case info.Columnar:
		risk.Prerequisites = append(risk.Prerequisites,
			"Hybrid Columnar Compression requires Exadata, ZFS Storage Appliance or Pillar Axiom storage")
	case scheme == models.SchemeOLTP:
		risk.Prerequisites = append(risk.Prerequisites, "Advanced Compression option license")
	case scheme == models.SchemeBasic:
		risk.Prerequisites = append(risk.Prerequisites, "Only direct-path inserts keep BASIC compression")
	}
	risk.Prerequisites = append(risk.Prerequisites,
		fmt.Sprintf("Free space in the tablespace for a copy of the segment (%.1f GiB)", float64(s.SizeBytes)/float64(config.GiB)))

	risk.RecommendPilotTest = risk.Level == models.RiskHigh || s.SizeBytes >= cfg.VeryLargeTableBytes
	return risk
}

// AssignPriority ranks by size first, then by expected savings
func AssignPriority(sizeBytes int64, savingsPercent float64, cfg config.AnalysisConfig) models.Priority {
	switch {
	case sizeBytes >= cfg.VeryLargeTableBytes:
		return models.PriorityHigh
	case sizeBytes >= cfg.LargeTableBytes && savingsPercent >= 50:
		return models.PriorityHigh
	case sizeBytes >= cfg.ModerateTableBytes && savingsPercent >= 30:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

func riskRank(l models.RiskLevel) int {
	switch l {
	case models.RiskLow:
		return 1
	case models.RiskMedium:
		return 2
	case models.RiskHigh:
		return 3
	}
	return 0
}
