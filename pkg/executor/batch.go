package executor

import (
	"context"
	"errors"

	"github.com/opscart/table-compression-advisor/pkg/models"
	"golang.org/x/sync/errgroup"
)

// BatchResult pairs each recommendation with its outcome, in input order
type BatchResult struct {
	Recommendation *models.Recommendation
	Record         *models.ExecutionRecord
	Err            error
}

// ExecuteBatch runs recommendations for distinct tables concurrently,
// bounded by the executor's slot count. One failure does not stop the
// others; the joined error lists every failure.
func (e *Executor) ExecuteBatch(ctx context.Context, recs []*models.Recommendation, opts models.ExecutionOptions) ([]BatchResult, error) {
	results := make([]BatchResult, len(recs))

	var g errgroup.Group
	g.SetLimit(cap(e.slots))
	for i, rec := range recs {
		results[i].Recommendation = rec
		g.Go(func() error {
			results[i].Record, results[i].Err = e.Execute(ctx, rec, opts)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}
