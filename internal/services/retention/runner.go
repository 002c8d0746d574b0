// Package retention bounds the check log: it periodically drops entries
// beyond the per-monitor cap and entries older than the maximum age.
package retention

import (
	"context"
	"time"

	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	mPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retention_pruned_entries_total", Help: "Log entries removed by retention.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retention_errors_total", Help: "Failed retention passes.",
	})
)

type Pruner interface {
	Prune(ctx context.Context, keepPerMonitor int, olderThan time.Time) (int64, error)
}

type Config struct {
	Interval   time.Duration
	MaxEntries int
	MaxAge     time.Duration
}

type Runner struct {
	log   *zap.Logger
	store Pruner
	cfg   Config
	now   func() time.Time
}

func NewRunner(log *zap.Logger, store Pruner, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Runner{log: log.With(zap.String("component", "retention")), store: store, cfg: cfg, now: time.Now}
}

func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.MaxEntries <= 0 && r.cfg.MaxAge <= 0 {
		r.log.Info("retention disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.Prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Prune(ctx)
		}
	}
}

// Prune runs one retention pass and returns the number of removed entries.
func (r *Runner) Prune(ctx context.Context) int64 {
	ctx, span := otel.Tracer("retention").Start(ctx, "retention.prune")
	defer span.End()

	var cutoff time.Time
	if r.cfg.MaxAge > 0 {
		cutoff = r.now().Add(-r.cfg.MaxAge)
	}
	n, err := r.store.Prune(ctx, r.cfg.MaxEntries, cutoff)
	if err != nil {
		obs.FailSpan(span, err)
		mErr.Inc()
		r.log.Warn("prune failed", zap.Error(err))
		return 0
	}
	span.SetAttributes(attribute.Int64("retention.pruned", n))
	mPruned.Add(float64(n))
	if n > 0 {
		r.log.Info("log entries pruned", zap.Int64("count", n), zap.Int("max_entries", r.cfg.MaxEntries), zap.Time("cutoff", cutoff))
	}
	return n
}
