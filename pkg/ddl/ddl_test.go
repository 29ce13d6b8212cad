package ddl

import (
	"strings"
	"testing"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	q, err := QuoteIdentifier("ORDERS_2024")
	require.NoError(t, err)
	assert.Equal(t, `"ORDERS_2024"`, q)

	q, err = QualifiedName("SALES", "ORDER$ITEMS")
	require.NoError(t, err)
	assert.Equal(t, `"SALES"."ORDER$ITEMS"`, q)
}

func TestQuoteIdentifierRejectsInjection(t *testing.T) {
	hostile := []string{
		"",
		"ORDERS; DROP TABLE USERS",
		`ORDERS" MOVE NOCOMPRESS --`,
		"ORDERS'--",
		"1ORDERS",
		"ORD ERS",
		"ORDERS/*x*/",
		strings.Repeat("A", 129),
	}
	for _, name := range hostile {
		_, err := QuoteIdentifier(name)
		assert.Error(t, err, "expected %q to be rejected", name)
		assert.True(t, apperr.IsValidation(err))
	}
}

func TestCompressClauseAllowList(t *testing.T) {
	clause, err := CompressClause(models.SchemeQueryHigh)
	require.NoError(t, err)
	assert.Equal(t, "COLUMN STORE COMPRESS FOR QUERY HIGH", clause)

	_, err = CompressClause(models.Scheme("QUERY HIGH; DROP"))
	assert.True(t, apperr.IsValidation(err))
}

func testRecommendation(approach models.Approach, steps ...models.Step) *models.Recommendation {
	return &models.Recommendation{
		Schema:   "SALES",
		Table:    "ORDERS",
		Scheme:   models.SchemeQueryLow,
		Strategy: models.ImplementationStrategy{Approach: approach, Steps: steps},
	}
}

func TestPlanFullTable(t *testing.T) {
	rec := testRecommendation(models.ApproachFullTable,
		models.Step{Order: 1, Action: models.ActionGatherStats},
		models.Step{Order: 2, Action: models.ActionCompress, Critical: true},
		models.Step{Order: 3, Action: models.ActionRebuildIndex, Target: "ORDERS_PK"},
		models.Step{Order: 4, Action: models.ActionGatherStats},
		models.Step{Order: 5, Action: models.ActionVerify, Critical: true},
	)

	stmts, err := Builder{Online: true, Parallel: 4}.Plan(rec)
	require.NoError(t, err)
	require.Len(t, stmts, 5)

	assert.Contains(t, stmts[0].SQL, "DBMS_STATS.GATHER_TABLE_STATS(ownname => 'SALES', tabname => 'ORDERS'")
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" MOVE ONLINE COLUMN STORE COMPRESS FOR QUERY LOW PARALLEL 4`, stmts[1].SQL)
	assert.Equal(t, `ALTER INDEX "SALES"."ORDERS_PK" REBUILD ONLINE PARALLEL 4`, stmts[2].SQL)
	assert.True(t, stmts[4].ReadBack)
	assert.False(t, stmts[1].ReadBack)
}

func TestPlanPartitionOffline(t *testing.T) {
	rec := testRecommendation(models.ApproachPartitionWise,
		models.Step{Order: 1, Action: models.ActionCompressPart, Target: "P2024Q1", Critical: true},
	)

	stmts, err := Builder{Parallel: 1}.Plan(rec)
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" MOVE PARTITION "P2024Q1" COLUMN STORE COMPRESS FOR QUERY LOW UPDATE INDEXES`, stmts[0].SQL)
}

func TestPlanRejectsHostileTargets(t *testing.T) {
	rec := testRecommendation(models.ApproachFullTable,
		models.Step{Order: 1, Action: models.ActionRebuildIndex, Target: "IDX; DROP USER APP CASCADE"},
	)
	_, err := Builder{}.Plan(rec)
	assert.True(t, apperr.IsValidation(err))

	rec = testRecommendation(models.ApproachFullTable, models.Step{Order: 1, Action: models.ActionCompress})
	rec.Table = "ORDERS' OR '1'='1"
	_, err = Builder{}.Plan(rec)
	assert.True(t, apperr.IsValidation(err))
}

func TestPlanRequiresSteps(t *testing.T) {
	_, err := Builder{}.Plan(testRecommendation(models.ApproachFullTable))
	assert.True(t, apperr.IsValidation(err))
}

func TestRollbackPlan(t *testing.T) {
	rec := testRecommendation(models.ApproachFullTable,
		models.Step{Order: 1, Action: models.ActionCompress, Critical: true},
		models.Step{Order: 2, Action: models.ActionRebuildIndex, Target: "ORDERS_PK"},
		models.Step{Order: 3, Action: models.ActionRebuildIndex, Target: "ORDERS_CUST_IX"},
	)

	stmts, err := Builder{}.RollbackPlan(rec, models.SchemeNone)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" MOVE NOCOMPRESS`, stmts[0].SQL)
	assert.Equal(t, `ALTER INDEX "SALES"."ORDERS_PK" REBUILD`, stmts[1].SQL)
	assert.Equal(t, models.ActionRestoreIndex, stmts[2].Step.Action)
}

func TestRollbackPlanPartitionWise(t *testing.T) {
	rec := testRecommendation(models.ApproachPartitionWise,
		models.Step{Order: 1, Action: models.ActionCompressPart, Target: "P1", Critical: true},
		models.Step{Order: 2, Action: models.ActionCompressPart, Target: "P2", Critical: true},
	)

	stmts, err := Builder{Online: true}.RollbackPlan(rec, models.SchemeBasic)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" MOVE PARTITION "P2" ONLINE ROW STORE COMPRESS BASIC`, stmts[1].SQL)
}

// Every generated statement embeds identifiers only in quoted form
func TestGeneratedStatementsQuoteAllIdentifiers(t *testing.T) {
	rec := testRecommendation(models.ApproachPartitionWise,
		models.Step{Order: 1, Action: models.ActionCompressPart, Target: "P1", Critical: true},
		models.Step{Order: 2, Action: models.ActionRebuildIndex, Target: "IX1"},
	)
	stmts, err := Builder{Online: true, Parallel: 2}.Plan(rec)
	require.NoError(t, err)
	for _, s := range stmts {
		assert.NotContains(t, s.SQL, " SALES.", s.SQL)
		assert.NotContains(t, s.SQL, " ORDERS ", s.SQL)
	}
}
