package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// Subjects on the LISTINGS stream.
const (
	StreamListings           = "LISTINGS"
	SubjectListingCreated    = "listings.created"
	SubjectListingGeocoded   = "listings.geocoded"
	SubjectListingGeoFailed  = "listings.geocode_failed"
	SubjectAllGeocodedEvents = SubjectListingGeocoded + ".>"
)

// ListingsStream is the JetStream configuration for listing events.
var ListingsStream = nats.StreamConfig{
	Name:       StreamListings,
	Subjects:   []string{"listings.>"},
	Retention:  nats.LimitsPolicy,
	MaxAge:     7 * 24 * time.Hour,
	Storage:    nats.FileStorage,
	Duplicates: 10 * time.Minute,
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p, err := NewPublisherFromConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// NewPublisherFromConn reuses an existing connection and ensures the
// listings stream exists.
func NewPublisherFromConn(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := ListingsStream
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishListingCreated announces a listing that needs geocoding.
func (p *Publisher) PublishListingCreated(ctx context.Context, ev *domain.ListingCreatedEvent) error {
	return p.publish(ctx, SubjectListingCreated, "", ev)
}

// PublishListingGeocoded announces resolved coordinates for a listing.
func (p *Publisher) PublishListingGeocoded(ctx context.Context, ev *domain.ListingGeocodedEvent) error {
	return p.publish(ctx, SubjectListingGeocoded+"."+ev.ID, ev.EventID, ev)
}

// PublishListingGeocodeFailed announces an unresolvable listing address.
func (p *Publisher) PublishListingGeocodeFailed(ctx context.Context, ev *domain.ListingGeocodeFailedEvent) error {
	return p.publish(ctx, SubjectListingGeoFailed+"."+ev.ID, ev.EventID, ev)
}

func (p *Publisher) publish(ctx context.Context, subject, msgID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}
	if _, err := p.js.Publish(subject, data, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection (e.g. for the WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
