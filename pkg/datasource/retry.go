package datasource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	"k8s.io/apimachinery/pkg/util/wait"
)

// RetryPolicy bounds retries of transient failures
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Retry runs fn until it succeeds, fails permanently, or the attempts
// run out. Only errors reported by apperr.IsRetryable are retried.
func Retry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 100 * time.Millisecond
	}
	logger = logging.OrDefault(logger)

	backoff := wait.Backoff{
		Duration: policy.Backoff,
		Factor:   2.0,
		Jitter:   0.1,
		Steps:    policy.Attempts,
		Cap:      30 * time.Second,
	}

	var lastErr error
	attempt := 0
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		lastErr = fn(ctx)
		if lastErr == nil {
			return true, nil
		}
		if !apperr.IsRetryable(lastErr) {
			return false, lastErr
		}
		logger.WarnContext(ctx, "retrying after transient failure",
			"op", op, "attempt", attempt, "max_attempts", policy.Attempts, "error", lastErr)
		return false, nil
	})
	if err == nil {
		return nil
	}
	if lastErr != nil && errors.Is(err, lastErr) {
		return lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if lastErr != nil {
			return lastErr
		}
		return ctxErr
	}
	// Attempts exhausted on a retryable error
	kind := apperr.KindOf(lastErr)
	return &apperr.Error{Kind: kind, Op: op, Err: errors.Join(errors.New("retries exhausted"), lastErr), Code: ErrorCode(lastErr)}
}

// RetryingProvider decorates a provider with bounded retries
type RetryingProvider struct {
	next   MetadataProvider
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetryingProvider wraps p with the given policy
func NewRetryingProvider(p MetadataProvider, policy RetryPolicy, logger *slog.Logger) *RetryingProvider {
	return &RetryingProvider{next: p, policy: policy, logger: logger}
}

func (r *RetryingProvider) ListTables(ctx context.Context, filter TableFilter) ([]models.TableSnapshot, error) {
	var out []models.TableSnapshot
	err := Retry(ctx, r.policy, r.logger, "listTables", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListTables(ctx, filter)
		return err
	})
	return out, err
}

func (r *RetryingProvider) DescribeTable(ctx context.Context, ref models.TableRef) (*models.TableSnapshot, error) {
	var out *models.TableSnapshot
	err := Retry(ctx, r.policy, r.logger, "describeTable", func(ctx context.Context) error {
		var err error
		out, err = r.next.DescribeTable(ctx, ref)
		return err
	})
	return out, err
}

func (r *RetryingProvider) GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error) {
	var out *models.ActivityStats
	err := Retry(ctx, r.policy, r.logger, "getActivityStats", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetActivityStats(ctx, ref)
		return err
	})
	return out, err
}

func (r *RetryingProvider) EstimateCompressionRatio(ctx context.Context, ref models.TableRef, scheme models.Scheme, sampleSize int64) (float64, error) {
	var out float64
	err := Retry(ctx, r.policy, r.logger, "estimateCompressionRatio", func(ctx context.Context) error {
		var err error
		out, err = r.next.EstimateCompressionRatio(ctx, ref, scheme, sampleSize)
		return err
	})
	return out, err
}

func (r *RetryingProvider) Measure(ctx context.Context, ref models.TableRef) (*models.Measurement, error) {
	var out *models.Measurement
	err := Retry(ctx, r.policy, r.logger, "measure", func(ctx context.Context) error {
		var err error
		out, err = r.next.Measure(ctx, ref)
		return err
	})
	return out, err
}

// RetryingApplier retries only resource errors, which are raised before
// the statement reaches the database.
type RetryingApplier struct {
	next   Applier
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetryingApplier wraps a with the given policy
func NewRetryingApplier(a Applier, policy RetryPolicy, logger *slog.Logger) *RetryingApplier {
	return &RetryingApplier{next: a, policy: policy, logger: logger}
}

func (r *RetryingApplier) Apply(ctx context.Context, statement string) (ApplyResult, error) {
	var out ApplyResult
	err := Retry(ctx, r.policy, r.logger, "apply", func(ctx context.Context) error {
		var err error
		out, err = r.next.Apply(ctx, statement)
		return err
	})
	return out, err
}
