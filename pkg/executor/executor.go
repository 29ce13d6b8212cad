// Package executor applies recommendations to the target database with
// before/after measurement and automatic rollback.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/config"
	"github.com/opscart/table-compression-advisor/pkg/datasource"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/metrics"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

// Target is the part of the database the executor touches
type Target interface {
	Measure(ctx context.Context, ref models.TableRef) (*models.Measurement, error)
	datasource.Applier
}

// Journal durably stores execution records as they change
type Journal interface {
	SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error
	GetExecution(ctx context.Context, id string) (*models.ExecutionRecord, error)
}

type Executor struct {
	target   Target
	registry *Registry
	journal  Journal
	slots    chan struct{}
	cfg      config.ExecutionConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates an executor. At most cfg.BatchConcurrency executions run
// their steps at the same time; further ones wait in PENDING.
func New(target Target, registry *Registry, journal Journal, cfg config.ExecutionConfig, logger *slog.Logger) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Executor{
		target:   target,
		registry: registry,
		journal:  journal,
		slots:    make(chan struct{}, max(cfg.BatchConcurrency, 1)),
		cfg:      cfg,
		logger:   logging.OrDefault(logger),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

func (e *Executor) WithMetrics(m *metrics.Metrics) *Executor {
	e.metrics = m
	return e
}

// Execute applies rec. The returned record is a copy and is non-nil
// whenever execution got past validation; err is non-nil for every
// outcome other than COMPLETED and dry runs.
func (e *Executor) Execute(ctx context.Context, rec *models.Recommendation, opts models.ExecutionOptions) (*models.ExecutionRecord, error) {
	if err := validate(rec, opts); err != nil {
		return nil, err
	}
	opts = e.withDefaults(opts)

	builder := ddl.Builder{Online: opts.Online, Parallel: opts.ParallelDegree}
	plan, err := builder.Plan(rec)
	if err != nil {
		return nil, err
	}

	exec := &models.ExecutionRecord{
		ID:             e.newID(),
		Recommendation: *rec,
		Options:        opts,
		Status:         models.StatusPending,
		CreatedAt:      e.now(),
	}
	for _, stmt := range plan {
		exec.Plan = append(exec.Plan, stmt.SQL)
	}

	if opts.DryRun {
		exec.DryRun = true
		e.logger.InfoContext(ctx, "dry run planned",
			"schema", rec.Schema, "table", rec.Table, "scheme", rec.Scheme, "statements", len(plan))
		return exec, nil
	}

	if err := e.registry.Acquire(exec); err != nil {
		return nil, err
	}
	e.metrics.ExecutionStarted()
	defer func() {
		e.registry.Release(exec)
		e.metrics.ExecutionFinished(string(exec.Status), exec.ActualSavings.SavedBytes)
	}()

	log := e.logger.With("execution_id", exec.ID, "schema", rec.Schema, "table", rec.Table)

	// The record must be durable before anything can change the table
	if err := e.save(ctx, exec); err != nil {
		exec.Status = models.StatusFailed
		exec.Error = err.Error()
		return exec.Clone(), err
	}

	if err := e.acquireSlot(ctx); err != nil {
		e.fail(exec, "", err)
		e.finish(ctx, exec)
		return exec.Clone(), err
	}
	defer e.releaseSlot()

	if err := exec.Transition(models.StatusInProgress); err != nil {
		return exec.Clone(), &apperr.Error{Kind: apperr.KindInternal, Op: "execute", Err: err}
	}
	exec.StartedAt = e.now()
	if err := e.save(ctx, exec); err != nil {
		e.fail(exec, "", err)
		e.finish(ctx, exec)
		return exec.Clone(), err
	}
	log.InfoContext(ctx, "execution started", "scheme", rec.Scheme, "steps", len(plan))

	before, err := e.target.Measure(ctx, rec.Ref())
	if err != nil {
		// Nothing has been applied yet, so there is nothing to roll back
		e.fail(exec, "", err)
		e.finish(ctx, exec)
		return exec.Clone(), err
	}
	exec.Before = before
	e.registry.Publish(exec)

	failure := e.runSteps(ctx, exec, plan, opts.StepTimeout, log)
	if failure == nil {
		e.complete(ctx, exec, log)
		e.finish(ctx, exec)
		return exec.Clone(), nil
	}

	e.fail(exec, failure.step, failure.err)
	rbErr := e.rollback(ctx, exec, builder, opts.StepTimeout, log)
	e.finish(ctx, exec)

	return exec.Clone(), &apperr.Error{
		Kind:        apperr.KindCompression,
		Op:          "execute",
		Schema:      rec.Schema,
		Table:       rec.Table,
		Step:        failure.step,
		Code:        datasource.ErrorCode(failure.err),
		Err:         failure.err,
		RollbackErr: rbErr,
	}
}

type stepFailure struct {
	step string
	err  error
}

// runSteps executes the plan in order. A non-critical failure becomes a
// warning; the first critical failure or a cancelled context stops the run.
func (e *Executor) runSteps(ctx context.Context, exec *models.ExecutionRecord, plan []ddl.Statement, timeout time.Duration, log *slog.Logger) *stepFailure {
	for _, stmt := range plan {
		name := stepName(stmt.Step)
		if err := ctx.Err(); err != nil {
			return &stepFailure{step: name, err: fmt.Errorf("cancelled before step: %w", err)}
		}

		result, err := e.runStep(ctx, exec, stmt, timeout)
		exec.Steps = append(exec.Steps, result)
		e.registry.Publish(exec)

		if result.Success {
			log.InfoContext(ctx, "step completed", "step", name, "duration", result.Duration)
			continue
		}
		if !stmt.Step.Critical {
			warning := fmt.Sprintf("non-critical step %s failed: %s", name, result.Error)
			exec.Warnings = append(exec.Warnings, warning)
			log.WarnContext(ctx, "non-critical step failed", "step", name, "error", result.Error, "code", result.ErrorCode)
			continue
		}
		log.ErrorContext(ctx, "critical step failed", "step", name, "error", result.Error, "code", result.ErrorCode)
		return &stepFailure{step: name, err: err}
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, exec *models.ExecutionRecord, stmt ddl.Statement, timeout time.Duration) (models.StepResult, error) {
	result := models.StepResult{
		Order:     stmt.Step.Order,
		Action:    stmt.Step.Action,
		Target:    stmt.Step.Target,
		Statement: stmt.SQL,
		Critical:  stmt.Step.Critical,
		StartedAt: e.now(),
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	if stmt.ReadBack {
		err = e.verify(stepCtx, exec)
	} else {
		var res datasource.ApplyResult
		res, err = e.target.Apply(stepCtx, stmt.SQL)
		result.RowsAffected = res.RowsAffected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("step timed out after %s: %w", timeout, err)
	}

	result.Duration = e.now().Sub(result.StartedAt)
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
		result.ErrorCode = datasource.ErrorCode(err)
	}
	e.metrics.StepObserved(string(stmt.Step.Action), result.Success, result.Duration)
	return result, err
}

// verify reads the compression state back. Partition-wise moves may
// leave the table-level attribute unset, so only the read is required.
func (e *Executor) verify(ctx context.Context, exec *models.ExecutionRecord) error {
	m, err := e.target.Measure(ctx, exec.Ref())
	if err != nil {
		return err
	}
	rec := exec.Recommendation
	if rec.Strategy.Approach == models.ApproachPartitionWise {
		return nil
	}
	if m.Compression != rec.Scheme {
		return fmt.Errorf("table reports %s compression, expected %s", m.Compression, rec.Scheme)
	}
	return nil
}

// complete measures the result and records actual savings
func (e *Executor) complete(ctx context.Context, exec *models.ExecutionRecord, log *slog.Logger) {
	after, err := e.target.Measure(ctx, exec.Ref())
	if err != nil {
		exec.Warnings = append(exec.Warnings, fmt.Sprintf("after measurement unavailable: %v", err))
	} else {
		exec.After = after
		exec.ActualSavings = actualSavings(exec.Before, after)
	}
	_ = exec.Transition(models.StatusCompleted)
	log.InfoContext(ctx, "execution completed",
		"saved_bytes", exec.ActualSavings.SavedBytes,
		"ratio", exec.ActualSavings.Ratio,
		"warnings", len(exec.Warnings))
}

func (e *Executor) fail(exec *models.ExecutionRecord, step string, err error) {
	_ = exec.Transition(models.StatusFailed)
	exec.FailedStep = step
	exec.Error = err.Error()
	exec.ErrorCode = datasource.ErrorCode(err)
}

// rollback restores the compression state captured before the run and
// rebuilds indexes. It runs even if ctx was cancelled.
func (e *Executor) rollback(ctx context.Context, exec *models.ExecutionRecord, builder ddl.Builder, timeout time.Duration, log *slog.Logger) error {
	exec.RollbackAttempted = true
	rbCtx := context.WithoutCancel(ctx)

	plan, err := builder.RollbackPlan(&exec.Recommendation, exec.Before.Compression)
	if err == nil {
		log.WarnContext(ctx, "rolling back", "restore_to", exec.Before.Compression, "statements", len(plan))
		for _, stmt := range plan {
			result, stepErr := e.runStep(rbCtx, exec, stmt, timeout)
			exec.Rollback = append(exec.Rollback, result)
			e.registry.Publish(exec)
			if stepErr != nil {
				err = fmt.Errorf("rollback step %s failed: %w", stepName(stmt.Step), stepErr)
				break
			}
		}
	}

	if after, mErr := e.target.Measure(rbCtx, exec.Ref()); mErr == nil {
		exec.After = after
		exec.ActualSavings = actualSavings(exec.Before, after)
	}

	if err != nil {
		exec.RollbackError = err.Error()
		log.ErrorContext(ctx, "rollback failed, manual intervention required", "error", err)
		return err
	}
	_ = exec.Transition(models.StatusRolledBack)
	log.InfoContext(ctx, "rollback completed")
	return nil
}

// finish stamps timing and persists the terminal record
func (e *Executor) finish(ctx context.Context, exec *models.ExecutionRecord) {
	exec.CompletedAt = e.now()
	if !exec.StartedAt.IsZero() {
		exec.Duration = exec.CompletedAt.Sub(exec.StartedAt)
	}
	if err := e.save(context.WithoutCancel(ctx), exec); err != nil {
		exec.Warnings = append(exec.Warnings, fmt.Sprintf("final journal write failed: %v", err))
		e.logger.ErrorContext(ctx, "failed to persist execution", "execution_id", exec.ID, "error", err)
	}
	e.registry.Publish(exec)
}

func (e *Executor) save(ctx context.Context, exec *models.ExecutionRecord) error {
	e.registry.Publish(exec)
	if e.journal == nil {
		return nil
	}
	if err := e.journal.SaveExecution(ctx, exec.Clone()); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.DataAccess("saveExecution", err, false)
	}
	return nil
}

func (e *Executor) acquireSlot(ctx context.Context) error {
	select {
	case e.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperr.Resource("execute", fmt.Errorf("waiting for an execution slot: %w", ctx.Err()))
	}
}

func (e *Executor) releaseSlot() {
	<-e.slots
}

// GetExecutionStatus returns an in-flight record or, failing that, the
// journalled one.
func (e *Executor) GetExecutionStatus(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	if rec, ok := e.registry.Get(id); ok {
		return rec, nil
	}
	if e.journal != nil {
		return e.journal.GetExecution(ctx, id)
	}
	return nil, apperr.NotFound("getExecutionStatus", "execution %s not found", id)
}

// ListActiveExecutions returns PENDING and IN_PROGRESS executions
func (e *Executor) ListActiveExecutions() []*models.ExecutionRecord {
	var out []*models.ExecutionRecord
	for _, rec := range e.registry.Active() {
		if rec.Status.IsActive() {
			out = append(out, rec)
		}
	}
	return out
}

func (e *Executor) withDefaults(opts models.ExecutionOptions) models.ExecutionOptions {
	if opts.ParallelDegree <= 0 {
		opts.ParallelDegree = e.cfg.ParallelDegree
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = e.cfg.StepTimeout
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Hour
	}
	return opts
}

func validate(rec *models.Recommendation, opts models.ExecutionOptions) error {
	if rec == nil {
		return apperr.Validation("execute", "recommendation is required")
	}
	if err := ddl.ValidateIdentifier(rec.Schema); err != nil {
		return err
	}
	if err := ddl.ValidateIdentifier(rec.Table); err != nil {
		return err
	}
	if rec.Scheme == "" || !rec.Scheme.Valid() {
		return apperr.Validation("execute", "unknown compression scheme %q", rec.Scheme)
	}
	if rec.IsNoOp() {
		return apperr.Validation("execute", "recommendation for %s does not compress anything", rec.Ref())
	}
	if rec.Risk.Level == models.RiskHigh && !opts.ApproveHighRisk {
		return apperr.Validation("execute", "recommendation for %s is HIGH risk and needs explicit approval", rec.Ref())
	}
	if opts.ParallelDegree < 0 {
		return apperr.Validation("execute", "parallel degree must not be negative")
	}
	return nil
}

func actualSavings(before, after *models.Measurement) models.ActualSavings {
	if before == nil || after == nil {
		return models.ActualSavings{}
	}
	s := models.ActualSavings{SavedBytes: before.SizeBytes - after.SizeBytes}
	if after.SizeBytes > 0 {
		s.Ratio = math.Round(float64(before.SizeBytes)/float64(after.SizeBytes)*100) / 100
	}
	if before.SizeBytes > 0 {
		s.Percent = math.Round(float64(s.SavedBytes)/float64(before.SizeBytes)*10000) / 100
	}
	return s
}

func stepName(s models.Step) string {
	if s.Target != "" {
		return fmt.Sprintf("%d:%s(%s)", s.Order, s.Action, s.Target)
	}
	return fmt.Sprintf("%d:%s", s.Order, s.Action)
}
