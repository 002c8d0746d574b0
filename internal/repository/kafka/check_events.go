package kafka

import (
	"context"

	"github.com/NordCoder/checkengine/internal/domain/kafka"
)

// CheckEventsKafka publishes check events keyed by monitor id, so consumers
// see the events of one monitor in order.
type CheckEventsKafka struct {
	p *Producer
}

func NewCheckEventsKafka(p *Producer) *CheckEventsKafka { return &CheckEventsKafka{p: p} }

var _ kafka.CheckEvents = (*CheckEventsKafka)(nil)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e *CheckEventsKafka) PublishCheckCompleted(ctx context.Context, ev kafka.CheckCompleted) error {
	return e.p.PublishJSON(ctx, ev.MonitorID, envelope{Type: "check.completed", Data: ev})
}

func (e *CheckEventsKafka) PublishStatusChanged(ctx context.Context, ev kafka.StatusChanged) error {
	return e.p.PublishJSON(ctx, ev.MonitorID, envelope{Type: "status.changed", Data: ev})
}
