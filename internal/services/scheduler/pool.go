package scheduler

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/NordCoder/checkengine/internal/health"
	"github.com/NordCoder/checkengine/internal/interpret"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/internal/obs/retry"
	"github.com/NordCoder/checkengine/internal/probe"
	"go.uber.org/zap"
)

// completion carries one probed and classified check to the applier stage.
type completion struct {
	job     job
	result  probe.Result
	outcome interpret.Outcome
}

type pool struct {
	stop     chan struct{}
	workers  sync.WaitGroup
	appliers sync.WaitGroup
	results  []chan completion
}

// startPool launches the worker and applier goroutines. The returned func
// stops dispatching new jobs, waits for in-flight checks to be probed and
// applied, and returns.
func (s *Scheduler) startPool(ctx context.Context) func() {
	p := &pool{stop: make(chan struct{})}

	// probes and applies outlive ctx so shutdown does not turn in-flight
	// checks into failures; both are bounded by their own timeouts
	base := context.WithoutCancel(ctx)

	perApplier := s.cfg.QueueSize / s.cfg.Appliers
	for i := 0; i < s.cfg.Appliers; i++ {
		ch := make(chan completion, perApplier)
		p.results = append(p.results, ch)
		p.appliers.Add(1)
		go s.applier(base, ch, &p.appliers)
	}

	stopCtx, cancel := context.WithCancel(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		p.workers.Add(1)
		go s.worker(stopCtx, base, p, &p.workers)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(p.stop)
			cancel()
			p.workers.Wait()
			for _, ch := range p.results {
				close(ch)
			}
			p.appliers.Wait()
		})
	}
}

func (s *Scheduler) worker(stopCtx, base context.Context, p *pool, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case j := <-s.jobs:
			if s.limiter != nil {
				if err := s.limiter.Wait(stopCtx); err != nil {
					s.requeue(j)
					return
				}
			}
			if !s.begin(&j) {
				mDropped.WithLabelValues("unregistered").Inc()
				continue
			}
			mInFlight.Inc()
			c := s.probe(base, j)
			mInFlight.Dec()
			p.results[partition(j.mon.ID, len(p.results))] <- c
		}
	}
}

// requeue returns a job that was dequeued but never started during shutdown.
func (s *Scheduler) requeue(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[j.mon.ID]; ok && e.gen == j.gen {
		e.state = StateScheduled
		e.busySince = time.Time{}
		return
	}
	s.releaseLocked(j, false)
}

func (s *Scheduler) probe(ctx context.Context, j job) completion {
	obs.WithTrace(ctx, s.log).Debug("check dispatched",
		zap.String("monitor_id", j.mon.ID),
		zap.String("check_id", j.checkID),
		zap.String("type", string(j.mon.Type)),
	)
	res := s.exec.Execute(ctx, j.mon)
	return completion{job: j, result: res, outcome: s.rules.Classify(j.mon, res)}
}

func (s *Scheduler) applier(base context.Context, ch <-chan completion, wg *sync.WaitGroup) {
	defer wg.Done()
	for c := range ch {
		s.apply(base, c)
	}
}

// apply persists exactly one completion and then re-arms its monitor.
func (s *Scheduler) apply(base context.Context, c completion) {
	j := c.job
	log := s.log.With(zap.String("monitor_id", j.mon.ID), zap.String("check_id", j.checkID))

	if !s.current(j) {
		s.release(j, true)
		mDropped.WithLabelValues("unregistered").Inc()
		log.Debug("result dropped, monitor unregistered")
		return
	}
	defer s.complete(j)

	ctx, cancel := context.WithTimeout(base, s.cfg.ApplyTimeout)
	defer cancel()

	var applied health.Applied
	err := retry.Do(ctx, func() error {
		var err error
		applied, err = s.updater.Apply(ctx, health.Check{
			ID:        j.checkID,
			Monitor:   j.mon,
			CheckedAt: j.startedAt,
			Result:    c.result,
			Outcome:   c.outcome,
		})
		return err
	}, s.applyPol)

	switch {
	case err == nil:
		mCompleted.WithLabelValues(string(applied.Status)).Inc()
		log.Debug("check applied",
			zap.String("status", string(applied.Status)),
			zap.Float64("uptime_percent", applied.UptimePercent),
		)
	case errors.Is(err, health.ErrMonitorGone):
		mDropped.WithLabelValues("gone").Inc()
		log.Debug("result dropped, monitor deleted or inactive")
		s.Unregister(j.mon.ID)
	case errors.Is(err, health.ErrDuplicate):
		mDropped.WithLabelValues("duplicate").Inc()
		log.Debug("result already applied")
	default:
		mApplyErrors.Inc()
		log.Error("apply failed, result lost", zap.Error(err))
	}
}

func partition(id string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}
