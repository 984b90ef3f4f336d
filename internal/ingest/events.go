package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
)

// EventPublisher sends run events to a subject. It implements
// orchestrator.EventSink.
type EventPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(nc *nats.Conn, subject string) (*EventPublisher, error) {
	if nc == nil || subject == "" {
		return nil, errors.New("ingest: connection and subject are required")
	}
	return &EventPublisher{nc: nc, subject: subject}, nil
}

// RunCompleted publishes ev as JSON.
func (p *EventPublisher) RunCompleted(ctx context.Context, ev orchestrator.RunCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	eventsPublished.Inc()
	return nil
}

var _ orchestrator.EventSink = (*EventPublisher)(nil)
