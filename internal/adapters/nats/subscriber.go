package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeListingCreated delivers listings.created events to handler.
// Malformed payloads are terminated; handler errors are redelivered up to
// three times.
func (s *Subscriber) SubscribeListingCreated(ctx context.Context, handler func(ctx context.Context, ev *domain.ListingCreatedEvent) error) error {
	sub, err := s.js.Subscribe(SubjectListingCreated, func(msg *nats.Msg) {
		var ev domain.ListingCreatedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("drop malformed listing event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &ev); err != nil {
			slog.Warn("listing event handler failed", "listing_id", ev.ID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("listing-enricher"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.BindStream(StreamListings),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
