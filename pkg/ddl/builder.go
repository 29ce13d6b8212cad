package ddl

import (
	"fmt"
	"strings"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

var compressClauses = map[models.Scheme]string{
	models.SchemeNone:        "NOCOMPRESS",
	models.SchemeBasic:       "ROW STORE COMPRESS BASIC",
	models.SchemeOLTP:        "ROW STORE COMPRESS ADVANCED",
	models.SchemeQueryLow:    "COLUMN STORE COMPRESS FOR QUERY LOW",
	models.SchemeQueryHigh:   "COLUMN STORE COMPRESS FOR QUERY HIGH",
	models.SchemeArchiveLow:  "COLUMN STORE COMPRESS FOR ARCHIVE LOW",
	models.SchemeArchiveHigh: "COLUMN STORE COMPRESS FOR ARCHIVE HIGH",
}

// CompressClause returns the allow-listed clause for a scheme
func CompressClause(scheme models.Scheme) (string, error) {
	clause, ok := compressClauses[scheme]
	if !ok {
		return "", apperr.Validation("ddl", "unknown compression scheme %q", scheme)
	}
	return clause, nil
}

// Statement is one executable unit derived from a strategy step
type Statement struct {
	Step models.Step
	SQL  string
	// ReadBack marks verification steps that are answered by a metadata
	// read instead of being sent to the apply interface.
	ReadBack bool
}

// Builder generates statements for one table
type Builder struct {
	Online   bool
	Parallel int
}

// Plan converts every step of the recommendation's strategy into a statement
func (b Builder) Plan(rec *models.Recommendation) ([]Statement, error) {
	if len(rec.Strategy.Steps) == 0 {
		return nil, apperr.Validation("ddl", "recommendation for %s has no implementation steps", rec.Ref())
	}
	out := make([]Statement, 0, len(rec.Strategy.Steps))
	for _, step := range rec.Strategy.Steps {
		sql, err := b.StepSQL(rec.Schema, rec.Table, rec.Scheme, step)
		if err != nil {
			return nil, err
		}
		out = append(out, Statement{Step: step, SQL: sql, ReadBack: step.Action == models.ActionVerify})
	}
	return out, nil
}

// RollbackPlan restores the table to the given scheme and rebuilds its indexes
func (b Builder) RollbackPlan(rec *models.Recommendation, restoreTo models.Scheme) ([]Statement, error) {
	if restoreTo == "" {
		restoreTo = models.SchemeNone
	}
	var steps []models.Step
	order := 1
	if rec.Strategy.Approach == models.ApproachPartitionWise {
		for _, step := range rec.Strategy.Steps {
			if step.Action != models.ActionCompressPart {
				continue
			}
			steps = append(steps, models.Step{
				Order: order, Action: models.ActionRestoreTable, Target: step.Target, Critical: true,
				Description: fmt.Sprintf("Restore partition %s to %s", step.Target, restoreTo),
			})
			order++
		}
	} else {
		steps = append(steps, models.Step{
			Order: order, Action: models.ActionRestoreTable, Critical: true,
			Description: fmt.Sprintf("Restore table to %s", restoreTo),
		})
		order++
	}
	for _, step := range rec.Strategy.Steps {
		if step.Action != models.ActionRebuildIndex {
			continue
		}
		steps = append(steps, models.Step{
			Order: order, Action: models.ActionRestoreIndex, Target: step.Target, Critical: true,
			Description: fmt.Sprintf("Rebuild index %s after restore", step.Target),
		})
		order++
	}

	out := make([]Statement, 0, len(steps))
	for _, step := range steps {
		sql, err := b.StepSQL(rec.Schema, rec.Table, restoreTo, step)
		if err != nil {
			return nil, err
		}
		out = append(out, Statement{Step: step, SQL: sql})
	}
	return out, nil
}

// StepSQL renders a single step
func (b Builder) StepSQL(schema, table string, scheme models.Scheme, step models.Step) (string, error) {
	name, err := QualifiedName(schema, table)
	if err != nil {
		return "", err
	}

	switch step.Action {
	case models.ActionGatherStats:
		owner, err := quoteLiteral(schema)
		if err != nil {
			return "", err
		}
		tab, err := quoteLiteral(table)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("BEGIN DBMS_STATS.GATHER_TABLE_STATS(ownname => %s, tabname => %s, cascade => TRUE); END;", owner, tab), nil

	case models.ActionCompress, models.ActionCompressPart, models.ActionRestoreTable:
		clause, err := CompressClause(scheme)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		sb.WriteString("ALTER TABLE ")
		sb.WriteString(name)
		sb.WriteString(" MOVE")
		if step.Target != "" {
			part, err := QuoteIdentifier(step.Target)
			if err != nil {
				return "", err
			}
			sb.WriteString(" PARTITION ")
			sb.WriteString(part)
		}
		if b.Online {
			sb.WriteString(" ONLINE")
		}
		sb.WriteString(" ")
		sb.WriteString(clause)
		if b.Parallel > 1 {
			fmt.Fprintf(&sb, " PARALLEL %d", b.Parallel)
		}
		if step.Target != "" && !b.Online {
			sb.WriteString(" UPDATE INDEXES")
		}
		return sb.String(), nil

	case models.ActionRebuildIndex, models.ActionRestoreIndex:
		index, err := QualifiedName(schema, step.Target)
		if err != nil {
			return "", err
		}
		stmt := "ALTER INDEX " + index + " REBUILD"
		if b.Online {
			stmt += " ONLINE"
		}
		if b.Parallel > 1 {
			stmt += fmt.Sprintf(" PARALLEL %d", b.Parallel)
		}
		return stmt, nil

	case models.ActionVerify:
		owner, err := quoteLiteral(schema)
		if err != nil {
			return "", err
		}
		tab, err := quoteLiteral(table)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SELECT compression, compress_for FROM all_tables WHERE owner = %s AND table_name = %s", owner, tab), nil
	}

	return "", apperr.Validation("ddl", "unsupported step action %q", step.Action)
}
