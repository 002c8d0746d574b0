package monitor

import (
	"context"
	"time"
)

// Registry is the durable store of monitor definitions.
type Registry interface {
	ListActive(ctx context.Context) ([]*Monitor, error)
	Get(ctx context.Context, id string) (*Monitor, error)
	// UpdateHealth writes the health fields of an existing, active monitor and
	// returns the status it replaced. It fails with ErrNotFound when the
	// monitor was deleted or deactivated.
	UpdateHealth(ctx context.Context, id string, status Status, checkedAt time.Time, uptimePercent float64) (Status, error)
}
