package kafka

import (
	"context"
	"time"
)

type CheckCompleted struct {
	CheckID        string    `json:"check_id"`
	MonitorID      string    `json:"monitor_id"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	ResponseTimeMs *int64    `json:"response_time_ms,omitempty"`
	UptimePercent  float64   `json:"uptime_percent"`
	CheckedAt      time.Time `json:"checked_at"`
}

type StatusChanged struct {
	MonitorID string    `json:"monitor_id"`
	Old       string    `json:"old"`
	New       string    `json:"new"`
	At        time.Time `json:"at"`
}

type CheckEvents interface {
	PublishCheckCompleted(ctx context.Context, ev CheckCompleted) error
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

type LifecycleEvent string

const (
	MonitorCreated LifecycleEvent = "created"
	MonitorUpdated LifecycleEvent = "updated"
	MonitorDeleted LifecycleEvent = "deleted"
)

// MonitorLifecycle is published by the API layer whenever a monitor is
// created, edited or deleted.
type MonitorLifecycle struct {
	Event     LifecycleEvent `json:"event"`
	MonitorID string         `json:"monitor_id"`
}
