package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routemap/internal/core/domain"
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
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSelections delivers selection events to handler. Events that fail to decode
// or target an unknown surface are terminated; other handler failures are redelivered,
// up to three deliveries in total.
func (s *Subscriber) SubscribeSelections(ctx context.Context, handler func(ctx context.Context, event *domain.SelectionEvent) error) error {
	sub, err := s.js.Subscribe(selectionSubjectPrefix+">", func(msg *nats.Msg) {
		var event domain.SelectionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Term()
			return
		}
		_ = settle(msg, handler(ctx, &event))
	},
		nats.Durable("selection-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
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

// acker is the subset of *nats.Msg used to settle a delivery.
type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// settle acknowledges a handled delivery. Errors that no redelivery can fix end it.
func settle(msg acker, err error) error {
	switch {
	case err == nil:
		return msg.Ack()
	case errors.Is(err, domain.ErrSurfaceNotFound),
		errors.Is(err, domain.ErrUnknownChannel):
		return msg.Term()
	default:
		return msg.Nak()
	}
}
