package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	mDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_dispatched_total", Help: "Checks handed to the worker pool.",
	})
	mCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_checks_completed_total", Help: "Checks whose result was applied, by status.",
	}, []string{"status"})
	mOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_overruns_total", Help: "Due times skipped because the previous check was still running.",
	})
	mDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_results_dropped_total", Help: "Check results discarded instead of applied.",
	}, []string{"reason"})
	mApplyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_apply_errors_total", Help: "Results lost after exhausting store retries.",
	})
	mQueueFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_queue_full_total", Help: "Ticks that stopped early because the dispatch queue was full.",
	})
	mInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_in_flight", Help: "Probes currently running.",
	})
	mRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_registered", Help: "Monitors known to the scheduler.",
	})
	mQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_queued", Help: "Checks waiting for a worker.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_tick_duration_seconds", Help: "Scheduler tick duration.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})
	mResyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_resync_errors_total", Help: "Failed reconciliations with the registry.",
	})
)

// Run loads the active monitors, starts the pool and ticks until ctx is
// done. On return every in-flight check has been applied or dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Resync(ctx); err != nil {
		mResyncErrors.Inc()
		s.log.Warn("initial load failed, retrying on resync", zap.Error(err))
	}

	stopPool := s.startPool(ctx)
	defer stopPool()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	var resync <-chan time.Time
	if s.cfg.Resync > 0 {
		rt := time.NewTicker(s.cfg.Resync)
		defer rt.Stop()
		resync = rt.C
	}

	s.log.Info("scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("appliers", s.cfg.Appliers),
		zap.Duration("tick", s.cfg.Tick),
		zap.Int("registered", s.Stats().Registered),
	)
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping, draining in-flight checks")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		case <-resync:
			if err := s.Resync(ctx); err != nil {
				mResyncErrors.Inc()
				s.log.Warn("resync failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	start := time.Now()
	_, span := otel.Tracer("scheduler").Start(ctx, "scheduler.tick")
	defer span.End()

	dispatched, overruns := s.tick()
	mDispatched.Add(float64(dispatched))
	mOverruns.Add(float64(overruns))

	st := s.Stats()
	mRegistered.Set(float64(st.Registered))
	mQueued.Set(float64(st.Queued))

	span.SetAttributes(
		attribute.Int("tick.dispatched", dispatched),
		attribute.Int("tick.overruns", overruns),
	)
	if dispatched > 0 {
		s.log.Debug("tick", zap.Int("dispatched", dispatched), zap.Int("overruns", overruns))
	}
	mTickDur.Observe(time.Since(start).Seconds())
}
