package logentry

import (
	"context"
	"time"
)

type Store interface {
	// Append stores e unless an entry with the same CheckID exists.
	// inserted is false for a duplicate.
	Append(ctx context.Context, e *Entry) (inserted bool, err error)
	Window(ctx context.Context, monitorID string, limit int) (Window, error)
	ListByMonitor(ctx context.Context, monitorID string, limit int) ([]*Entry, error)
	Prune(ctx context.Context, keepPerMonitor int, olderThan time.Time) (int64, error)
}
