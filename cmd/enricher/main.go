package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/casahunt/internal/adapters/nats"
	"github.com/samirrijal/casahunt/internal/adapters/postgres"
	"github.com/samirrijal/casahunt/internal/adapters/valkey"
	"github.com/samirrijal/casahunt/internal/bootstrap"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/config"
	"github.com/samirrijal/casahunt/internal/pkg/logging"
	"github.com/samirrijal/casahunt/internal/pkg/telemetry"
)

// enricher consumes listings.created and attaches coordinates to each new
// listing, publishing listings.geocoded or listings.geocode_failed.
func main() {
	cfg, err := config.Load("casahunt-enricher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

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

	// The publisher declares the LISTINGS stream, so it must exist before
	// the durable consumer binds to it.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	enrichment := usecases.NewEnrichmentService(
		postgres.NewListingRepo(db),
		bootstrap.NewGeocodeService(cfg.Geocoding, cache),
		pub,
	)

	if err := sub.SubscribeListingCreated(ctx, enrichment.HandleListingCreated); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("enricher started", "subject", natsadapter.SubjectListingCreated)
	<-ctx.Done()
	slog.Info("enricher stopping")
}
