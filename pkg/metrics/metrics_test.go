package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CandidateScored()
	m.CandidateExcluded("ratio")
	m.RecommendationProduced("QUERY HIGH", "HIGH")
	m.ExecutionStarted()
	m.ExecutionFinished("COMPLETED", 10)
	m.StepObserved("VERIFY", true, time.Second)
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CandidateScored()
	m.CandidateScored()
	m.CandidateExcluded("system_schema")
	m.RecommendationProduced("ARCHIVE HIGH", "HIGH")
	m.ExecutionStarted()
	m.ExecutionFinished("COMPLETED", 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.candidatesScored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.candidatesExcluded.WithLabelValues("system_schema")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recommendations.WithLabelValues("ARCHIVE HIGH", "HIGH")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeExecutions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.savedBytes))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Greater(t, count, 0)
}
