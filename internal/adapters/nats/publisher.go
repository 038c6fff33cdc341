package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routemap/internal/core/domain"
)

const (
	commandSubjectPrefix   = "overlay.surface."
	selectionSubjectPrefix = "overlay.selection."
)

// CommandSubject is the subject carrying command batches for one surface.
func CommandSubject(surfaceID string) string { return commandSubjectPrefix + surfaceID }

// SelectionSubject is the subject carrying selection events for one surface.
func SelectionSubject(surfaceID string) string { return selectionSubjectPrefix + surfaceID }

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

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "OVERLAY_COMMANDS",
			Subjects:  []string{commandSubjectPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    15 * time.Minute,
			Storage:   nats.MemoryStorage,
		},
		{
			Name:      "OVERLAY_SELECTIONS",
			Subjects:  []string{selectionSubjectPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishCommands(ctx context.Context, batch *domain.CommandBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CommandSubject(batch.SurfaceID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishSelection(ctx context.Context, event *domain.SelectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SelectionSubject(event.SurfaceID), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
