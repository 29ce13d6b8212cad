package recommender

import (
	"fmt"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// BuildStrategy lays out the ordered steps for applying scheme. Only the
// rewrite and the final verification are critical.
func BuildStrategy(s models.TableSnapshot, scheme models.Scheme) models.ImplementationStrategy {
	strategy := models.ImplementationStrategy{Approach: models.ApproachFullTable}
	add := func(action models.StepAction, target, description string, critical bool) {
		strategy.Steps = append(strategy.Steps, models.Step{
			Order:       len(strategy.Steps) + 1,
			Action:      action,
			Target:      target,
			Description: description,
			Critical:    critical,
		})
	}

	add(models.ActionGatherStats, "", "Refresh optimizer statistics before the rewrite", false)

	if s.Partitioned && len(s.Partitions) > 0 {
		strategy.Approach = models.ApproachPartitionWise
		for _, p := range s.Partitions {
			add(models.ActionCompressPart, p, fmt.Sprintf("Move partition %s with %s compression", p, scheme), true)
		}
	} else {
		add(models.ActionCompress, "", fmt.Sprintf("Move table with %s compression", scheme), true)
	}

	for _, idx := range s.Indexes {
		add(models.ActionRebuildIndex, idx, fmt.Sprintf("Rebuild index %s invalidated by the move", idx), false)
	}

	add(models.ActionGatherStats, "", "Refresh optimizer statistics after compression", false)
	add(models.ActionVerify, "", fmt.Sprintf("Verify the table reports %s compression", scheme), true)

	return strategy
}
