// Package scheduler decides when every registered monitor is checked. It is
// the single scheduling authority: due monitors are queued in due-time order,
// probed by a bounded worker pool and re-armed only after their result has
// been applied.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/health"
	"github.com/NordCoder/checkengine/internal/interpret"
	"github.com/NordCoder/checkengine/internal/obs/retry"
	"github.com/NordCoder/checkengine/internal/probe"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Registry interface {
	ListActive(ctx context.Context) ([]*monitor.Monitor, error)
	Get(ctx context.Context, id string) (*monitor.Monitor, error)
}

type Executor interface {
	Execute(ctx context.Context, m *monitor.Monitor) probe.Result
}

type Classifier interface {
	Classify(m *monitor.Monitor, res probe.Result) interpret.Outcome
}

type Applier interface {
	Apply(ctx context.Context, c health.Check) (health.Applied, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Tick         time.Duration
	Workers      int
	Appliers     int
	QueueSize    int
	Resync       time.Duration
	DispatchRate float64 // checks per second, 0 = unlimited
	ApplyTimeout time.Duration
	ApplyRetries int
}

func (c *Config) setDefaults() {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Appliers <= 0 {
		c.Appliers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.ApplyTimeout <= 0 {
		c.ApplyTimeout = 10 * time.Second
	}
	if c.ApplyRetries <= 0 {
		c.ApplyRetries = 5
	}
}

type State string

const (
	StateScheduled State = "scheduled"
	StateQueued    State = "queued"
	StateInFlight  State = "in_flight"

	// StateDraining is a fresh registration whose predecessor still has a job
	// queued or running. It is not dispatched until that job ends.
	StateDraining State = "draining"
)

type entry struct {
	mon   *monitor.Monitor
	gen   uint64
	state State
	due   time.Time
	index int

	// anchor is when the last check finished, or the last known check time
	// for monitors loaded from the registry.
	anchor    time.Time
	busySince time.Time
	touched   uint64
}

// job is one dispatched check. gen pins the registration it belongs to; a
// job whose entry was unregistered or replaced is discarded.
type job struct {
	checkID   string
	mon       *monitor.Monitor
	gen       uint64
	startedAt time.Time
}

// drain records the job still outstanding for a monitor whose entry was
// removed.
type drain struct {
	gen   uint64
	since time.Time
}

type Scheduler struct {
	cfg      Config
	log      *zap.Logger
	clock    Clock
	registry Registry
	exec     Executor
	rules    Classifier
	updater  Applier
	limiter  *rate.Limiter
	applyPol retry.Policy
	regPol   retry.Policy

	mu       sync.Mutex
	entries  map[string]*entry
	draining map[string]drain
	queue    dueHeap
	nextGen  uint64
	seq      uint64

	jobs chan job
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func New(cfg Config, registry Registry, exec Executor, rules Classifier, updater Applier, log *zap.Logger, opts ...Option) *Scheduler {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cfg:      cfg,
		log:      log.With(zap.String("component", "scheduler")),
		clock:    realClock{},
		registry: registry,
		exec:     exec,
		rules:    rules,
		updater:  updater,
		entries:  make(map[string]*entry),
		draining: make(map[string]drain),
		jobs:     make(chan job, cfg.QueueSize),
	}
	if cfg.DispatchRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRate), cfg.Workers)
	}
	s.applyPol = retry.StorePolicy(s.log, cfg.ApplyRetries, health.ErrMonitorGone, health.ErrDuplicate)
	s.regPol = retry.RegistryPolicy(s.log)
	for _, o := range opts {
		o(s)
	}
	return s
}

var ErrInvalidMonitor = errors.New("monitor cannot be scheduled")

// Register adds a monitor or replaces the definition of a registered one.
// Inactive monitors are unregistered. A replaced definition keeps its
// schedule unless the interval changed. A monitor re-registered while a job
// of its previous registration is still out is not dispatched until that job
// ends.
func (s *Scheduler) Register(m *monitor.Monitor) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidMonitor)
	}
	if !m.Active {
		s.Unregister(m.ID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(m.Clone(), s.clock.Now())
	return nil
}

func (s *Scheduler) registerLocked(m *monitor.Monitor, now time.Time) {
	s.seq++
	if e, ok := s.entries[m.ID]; ok {
		intervalChanged := e.mon.IntervalMinutes != m.IntervalMinutes
		e.mon = m
		e.touched = s.seq
		if intervalChanged && e.state == StateScheduled {
			e.due = dueAfter(e.anchor, m.Interval(), now)
			heap.Fix(&s.queue, e.index)
		}
		return
	}

	s.nextGen++
	e := &entry{mon: m, gen: s.nextGen, state: StateScheduled, touched: s.seq}
	if m.LastCheckedAt != nil {
		e.anchor = *m.LastCheckedAt
	}
	e.due = dueAfter(e.anchor, m.Interval(), now)
	if d, ok := s.draining[m.ID]; ok {
		e.state = StateDraining
		e.busySince = d.since
	}
	s.entries[m.ID] = e
	heap.Push(&s.queue, e)
}

// dueAfter is max(now, anchor+interval); a zero anchor is due now.
func dueAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	if anchor.IsZero() {
		return now
	}
	if due := anchor.Add(interval); due.After(now) {
		return due
	}
	return now
}

// Unregister stops future scheduling. An in-flight check for the monitor
// finishes but its result is discarded.
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.removeLocked(e)
	return true
}

// removeLocked drops e from the schedule. A job of e that is queued or
// running is remembered so a later registration of the same id waits for it.
func (s *Scheduler) removeLocked(e *entry) {
	heap.Remove(&s.queue, e.index)
	delete(s.entries, e.mon.ID)
	if e.state == StateQueued || e.state == StateInFlight {
		s.draining[e.mon.ID] = drain{gen: e.gen, since: e.busySince}
	}
}

// releaseLocked ends the outstanding job j of a removed entry. ran reports
// whether the job was probed; the successor is then re-armed one interval
// from now.
func (s *Scheduler) releaseLocked(j job, ran bool) {
	d, ok := s.draining[j.mon.ID]
	if !ok || d.gen != j.gen {
		return
	}
	delete(s.draining, j.mon.ID)

	e, ok := s.entries[j.mon.ID]
	if !ok || e.state != StateDraining {
		return
	}
	now := s.clock.Now()
	if ran {
		e.anchor = now
	}
	e.state = StateScheduled
	e.busySince = time.Time{}
	e.due = dueAfter(e.anchor, e.mon.Interval(), now)
	heap.Fix(&s.queue, e.index)
}

func (s *Scheduler) release(j job, ran bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(j, ran)
}

func (s *Scheduler) OnMonitorCreated(m *monitor.Monitor) error { return s.Register(m) }

func (s *Scheduler) OnMonitorUpdated(m *monitor.Monitor) error { return s.Register(m) }

func (s *Scheduler) OnMonitorDeleted(id string) { s.Unregister(id) }

// Refresh re-reads one monitor from the registry and registers or
// unregisters it accordingly.
func (s *Scheduler) Refresh(ctx context.Context, id string) error {
	m, err := s.registry.Get(ctx, id)
	if errors.Is(err, monitor.ErrNotFound) {
		s.Unregister(id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get monitor %s: %w", id, err)
	}
	return s.Register(m)
}

// Resync reconciles the schedule with the active monitors in the registry.
// Entries touched while the registry was being read are kept.
func (s *Scheduler) Resync(ctx context.Context) error {
	s.mu.Lock()
	started := s.seq
	s.mu.Unlock()

	list, err := retry.DoValue(ctx, func() ([]*monitor.Monitor, error) {
		return s.registry.ListActive(ctx)
	}, s.regPol)
	if err != nil {
		return fmt.Errorf("list active monitors: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	seen := make(map[string]struct{}, len(list))
	for _, m := range list {
		if m.ID == "" || !m.Active {
			continue
		}
		seen[m.ID] = struct{}{}
		s.registerLocked(m.Clone(), now)
	}

	removed := 0
	for id, e := range s.entries {
		if _, ok := seen[id]; ok || e.touched > started {
			continue
		}
		s.removeLocked(e)
		removed++
	}
	s.log.Debug("resync done", zap.Int("active", len(seen)), zap.Int("removed", removed))
	return nil
}

// tick queues every due, idle monitor in due-time order. Monitors still
// queued or in flight at their due time are skipped for this round. When the
// queue is full the remaining due monitors wait for the next tick.
func (s *Scheduler) tick() (dispatched, overruns int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for s.queue.Len() > 0 {
		e := s.queue[0]
		if e.due.After(now) {
			break
		}
		interval := e.mon.Interval()

		if e.state != StateScheduled {
			overruns++
			s.log.Warn("check overrun",
				zap.String("monitor_id", e.mon.ID),
				zap.String("state", string(e.state)),
				zap.Duration("in_flight_for", now.Sub(e.busySince)),
			)
			e.due = now.Add(interval)
			heap.Fix(&s.queue, 0)
			continue
		}

		j := job{checkID: uuid.NewString(), mon: e.mon.Clone(), gen: e.gen}
		select {
		case s.jobs <- j:
		default:
			mQueueFull.Inc()
			return dispatched, overruns
		}
		dispatched++
		e.state = StateQueued
		e.busySince = now
		// provisional; complete() re-arms from the completion time
		e.due = now.Add(interval)
		heap.Fix(&s.queue, 0)
	}
	return dispatched, overruns
}

// begin marks a queued job as running. It reports false for stale jobs,
// which are released without being probed.
func (s *Scheduler) begin(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[j.mon.ID]
	if !ok || e.gen != j.gen {
		s.releaseLocked(*j, false)
		return false
	}
	now := s.clock.Now()
	e.state = StateInFlight
	e.busySince = now
	j.startedAt = now
	return true
}

func (s *Scheduler) current(j job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[j.mon.ID]
	return ok && e.gen == j.gen
}

// complete re-arms the monitor one interval after its result was applied.
func (s *Scheduler) complete(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[j.mon.ID]
	if !ok || e.gen != j.gen {
		s.releaseLocked(j, true)
		return
	}
	now := s.clock.Now()
	e.state = StateScheduled
	e.anchor = now
	e.busySince = time.Time{}
	e.due = now.Add(e.mon.Interval())
	heap.Fix(&s.queue, e.index)
}

type EntryView struct {
	MonitorID  string     `json:"monitor_id"`
	Type       string     `json:"type"`
	State      State      `json:"state"`
	Interval   string     `json:"interval"`
	NextDue    time.Time  `json:"next_due"`
	BusySince  *time.Time `json:"busy_since,omitempty"`
	LastFinish *time.Time `json:"last_finish,omitempty"`
}

type Stats struct {
	Registered int `json:"registered"`
	Scheduled  int `json:"scheduled"`
	Queued     int `json:"queued"`
	InFlight   int `json:"in_flight"`
}

func (s *Scheduler) Entry(id string) (EntryView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return EntryView{}, false
	}
	return e.view(), true
}

func (e *entry) view() EntryView {
	v := EntryView{
		MonitorID: e.mon.ID,
		Type:      string(e.mon.Type),
		State:     e.state,
		Interval:  e.mon.Interval().String(),
		NextDue:   e.due,
	}
	if !e.busySince.IsZero() {
		t := e.busySince
		v.BusySince = &t
	}
	if !e.anchor.IsZero() {
		t := e.anchor
		v.LastFinish = &t
	}
	return v
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Registered: len(s.entries)}
	for _, e := range s.entries {
		switch e.state {
		case StateScheduled:
			st.Scheduled++
		case StateQueued:
			st.Queued++
		case StateInFlight, StateDraining:
			st.InFlight++
		}
	}
	return st
}
