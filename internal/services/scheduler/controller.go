package scheduler

import (
	"context"
	"fmt"

	"github.com/NordCoder/checkengine/internal/domain/kafka"
	kafkax "github.com/NordCoder/checkengine/internal/repository/kafka"
	"go.uber.org/zap"
)

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

// Controller feeds monitor lifecycle events from the API layer into the
// scheduler. Events only carry the id; the definition is re-read from the
// registry so a stale or reordered event cannot resurrect old settings.
type Controller struct {
	Log   *zap.Logger
	Sub   Subscriber
	Sched *Scheduler
}

func (c *Controller) Run(ctx context.Context) error {
	return c.Sub.Consume(ctx, kafkax.JSONHandler(c.handle))
}

func (c *Controller) handle(ctx context.Context, _ []byte, ev kafka.MonitorLifecycle) error {
	if ev.MonitorID == "" {
		return fmt.Errorf("%w: lifecycle event without monitor id", kafkax.ErrPoison)
	}
	c.Log.Debug("monitor lifecycle", zap.String("event", string(ev.Event)), zap.String("monitor_id", ev.MonitorID))

	switch ev.Event {
	case kafka.MonitorDeleted:
		c.Sched.OnMonitorDeleted(ev.MonitorID)
		return nil
	case kafka.MonitorCreated, kafka.MonitorUpdated:
		return c.Sched.Refresh(ctx, ev.MonitorID)
	default:
		return fmt.Errorf("%w: unknown lifecycle event %q", kafkax.ErrPoison, ev.Event)
	}
}
