package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

const (
	defaultBatchSize   = 50
	defaultMaxBatches  = 20
	defaultConcurrency = 4
)

// BackfillInput is the input for the geocode backfill workflow.
// Concurrency caps the GeocodeListing activities in flight at once.
type BackfillInput struct {
	BatchSize   int
	MaxBatches  int
	Concurrency int
}

// BackfillResult summarises a backfill run.
type BackfillResult struct {
	Batches  int
	Resolved int
	Failed   int
}

// GeocodeBackfillWorkflow geocodes stored listings that have an address but
// no coordinates, one batch at a time. It stops after MaxBatches, when no
// listings remain, or when a whole batch resolves nothing (the remaining
// addresses are unresolvable).
func GeocodeBackfillWorkflow(ctx workflow.Context, input BackfillInput) (BackfillResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.BatchSize <= 0 {
		input.BatchSize = defaultBatchSize
	}
	if input.MaxBatches <= 0 {
		input.MaxBatches = defaultMaxBatches
	}
	if input.Concurrency <= 0 {
		input.Concurrency = defaultConcurrency
	}
	logger.Info("Starting geocode backfill", "batchSize", input.BatchSize,
		"maxBatches", input.MaxBatches, "concurrency", input.Concurrency)

	// Throttled geocodes fail the attempt; the backoff gives the provider
	// limiter time to refill.
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var res BackfillResult
	for res.Batches < input.MaxBatches {
		var batch []ListingRef
		if err := workflow.ExecuteActivity(ctx, "ListListingsMissingCoordinates", input.BatchSize).Get(ctx, &batch); err != nil {
			return res, err
		}
		if len(batch) == 0 {
			break
		}
		res.Batches++

		progress := 0
		for start := 0; start < len(batch); start += input.Concurrency {
			window := batch[start:min(start+input.Concurrency, len(batch))]
			futures := make([]workflow.Future, len(window))
			for i, l := range window {
				futures[i] = workflow.ExecuteActivity(ctx, "GeocodeListing", l)
			}

			for i, f := range futures {
				l := window[i]
				var p *domain.Point
				if err := f.Get(ctx, &p); err != nil {
					// Retries exhausted: leave the listing for a later run.
					logger.Warn("geocode activity failed", "listing", l.ID, "error", err)
					res.Failed++
					continue
				}
				if p == nil {
					res.Failed++
					if err := workflow.ExecuteActivity(ctx, "MarkListingGeocodeFailed", l).Get(ctx, nil); err != nil {
						logger.Warn("mark failed activity failed", "listing", l.ID, "error", err)
					}
					continue
				}
				if err := workflow.ExecuteActivity(ctx, "SaveListingCoordinates", l.ID, *p).Get(ctx, nil); err != nil {
					logger.Warn("save coordinates failed", "listing", l.ID, "error", err)
					res.Failed++
					continue
				}
				res.Resolved++
				progress++
			}
		}

		if progress == 0 {
			logger.Info("Backfill batch made no progress, stopping", "batch", res.Batches)
			break
		}
	}

	logger.Info("Geocode backfill finished", "batches", res.Batches, "resolved", res.Resolved, "failed", res.Failed)
	return res, nil
}
