package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/casahunt/internal/adapters/nats"
	"github.com/samirrijal/casahunt/internal/adapters/postgres"
	"github.com/samirrijal/casahunt/internal/adapters/valkey"
	"github.com/samirrijal/casahunt/internal/bootstrap"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/config"
	"github.com/samirrijal/casahunt/internal/pkg/logging"
	"github.com/samirrijal/casahunt/internal/workflows"
)

// backfill runs the Temporal worker for GeocodeBackfillWorkflow. With
// -start it instead starts one workflow run and waits for its result.
func main() {
	start := flag.Bool("start", false, "start a backfill run instead of running the worker")
	batchSize := flag.Int("batch-size", 50, "listings per batch")
	maxBatches := flag.Int("max-batches", 20, "maximum batches per run")
	concurrency := flag.Int("concurrency", 4, "geocode activities in flight at once")
	flag.Parse()

	cfg, err := config.Load("casahunt-backfill")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *start {
		runOnce(c, cfg.Temporal.TaskQueue, workflows.BackfillInput{
			BatchSize:   *batchSize,
			MaxBatches:  *maxBatches,
			Concurrency: *concurrency,
		})
		return
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cache *valkey.Cache
	if cfg.Valkey.Enabled {
		if cache, err = valkey.New(cfg.Valkey.Addr); err != nil {
			slog.Warn("valkey unavailable, using in-process geocode cache only", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Events are best effort here: without NATS the backfill still stores
	// coordinates.
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, backfill will not publish events", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.GeocodeBackfillWorkflow)
	w.RegisterActivity(&workflows.GeocodeActivities{
		Enrichment: usecases.NewEnrichmentService(
			postgres.NewListingRepo(db),
			bootstrap.NewGeocodeService(cfg.Geocoding, cache),
			events,
		),
	})

	slog.Info("backfill worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func runOnce(c client.Client, taskQueue string, input workflows.BackfillInput) {
	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "geocode-backfill-" + time.Now().UTC().Format("20060102T150405"),
		TaskQueue: taskQueue,
	}, workflows.GeocodeBackfillWorkflow, input)
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	slog.Info("backfill started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.BackfillResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
	slog.Info("backfill finished", "batches", res.Batches, "resolved", res.Resolved, "failed", res.Failed)
}
