package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/casahunt/internal/adapters/nats"
	"github.com/samirrijal/casahunt/internal/adapters/postgres"
	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/pkg/config"
	"github.com/samirrijal/casahunt/internal/pkg/logging"
)

// importer stores listings and announces the ones that still need a location.
type importer struct {
	repo      *postgres.ListingRepo
	publisher *natsadapter.Publisher
	client    *http.Client

	imported  atomic.Int64
	announced atomic.Int64
}

func main() {
	cfg, err := config.Load("casahunt-ingestor")
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	imp := &importer{
		repo:   postgres.NewListingRepo(db),
		client: &http.Client{Timeout: 120 * time.Second},
	}

	// Without NATS the backfill workflow picks up ungeocoded listings later.
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, listings will not be announced", "error", err)
	} else {
		imp.publisher = pub
		defer pub.Close()
	}

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		slog.Error("read manifest", "path", manifestPath, "error", err)
		os.Exit(1)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		slog.Error("parse manifest", "path", manifestPath, "error", err)
		os.Exit(1)
	}

	slog.Info("listing import starting", "feeds", len(manifest.Feeds), "source", manifest.Source)

	// Optional second argument: comma-separated feed slugs.
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent feeds

	for _, feed := range manifest.Feeds {
		if len(slugFilter) > 0 && !slugFilter[feed.Slug] {
			continue
		}

		wg.Add(1)
		go func(f FeedEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := imp.ingestFeed(ctx, f); err != nil {
				slog.Error("feed import failed", "feed", f.Slug, "error", err)
			}
		}(feed)
	}

	wg.Wait()
	slog.Info("listing import complete",
		"imported", imp.imported.Load(),
		"announced", imp.announced.Load(),
	)
}

func (imp *importer) ingestFeed(ctx context.Context, feed FeedEntry) error {
	log := slog.With("feed", feed.Slug)
	log.Info("reading feed", "url", feed.URL)

	body, err := imp.open(ctx, feed.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	listings, skipped, err := parseListingsCSV(body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", feed.URL, err)
	}
	if skipped > 0 {
		log.Warn("skipped incomplete rows", "count", skipped)
	}

	var failed int
	for i := range listings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l := &listings[i]
		if err := imp.repo.Create(ctx, l); err != nil {
			log.Warn("insert failed", "title", l.Title, "error", err)
			failed++
			continue
		}
		imp.imported.Add(1)

		if l.Latitude != nil || imp.publisher == nil {
			continue
		}
		ev := &domain.ListingCreatedEvent{ID: l.ID, Address: l.Address}
		if err := imp.publisher.PublishListingCreated(ctx, ev); err != nil {
			log.Warn("announce failed", "listing_id", l.ID, "error", err)
			continue
		}
		imp.announced.Add(1)
	}

	log.Info("feed imported", "listings", len(listings)-failed, "failed", failed)
	return nil
}

// open returns the feed body from an http(s) URL or a local path.
func (imp *importer) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := imp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}
	return resp.Body, nil
}
