// Package health applies classified check results to the monitor registry
// and the log store.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/NordCoder/checkengine/internal/domain/kafka"
	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/domain/outbox"
	"github.com/NordCoder/checkengine/internal/interpret"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/internal/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrDuplicate means the check was already applied; nothing changed.
	ErrDuplicate = errors.New("check already applied")
	// ErrMonitorGone means the monitor was deleted or deactivated while the
	// check ran; the result was discarded.
	ErrMonitorGone = errors.New("monitor gone")
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error
}

type Config struct {
	UptimeWindow int
	LogBodyBytes int
}

// Check is one finished, classified check ready to be persisted.
type Check struct {
	ID        string
	Monitor   *monitor.Monitor
	CheckedAt time.Time
	Result    probe.Result
	Outcome   interpret.Outcome
}

type Applied struct {
	Status        monitor.Status
	Previous      monitor.Status
	UptimePercent float64
}

func (a Applied) Changed() bool { return a.Previous != a.Status }

const stripes = 64

type Updater struct {
	registry monitor.Registry
	logs     logentry.Store
	tx       Transactor
	events   Enqueuer
	cfg      Config
	log      *zap.Logger

	locks [stripes]sync.Mutex
}

// NewUpdater wires the updater. events may be nil, in which case no check
// events are recorded.
func NewUpdater(registry monitor.Registry, logs logentry.Store, tx Transactor, events Enqueuer, cfg Config, log *zap.Logger) *Updater {
	if cfg.UptimeWindow <= 0 {
		cfg.UptimeWindow = 100
	}
	if cfg.LogBodyBytes < 0 {
		cfg.LogBodyBytes = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{registry: registry, logs: logs, tx: tx, events: events, cfg: cfg, log: log}
}

// Apply appends the log entry, recomputes uptime over the window and writes
// the health fields in one transaction. Updates for the same monitor are
// serialized; updates for different monitors run in parallel.
func (u *Updater) Apply(ctx context.Context, c Check) (Applied, error) {
	id := c.Monitor.ID
	ctx, span := otel.Tracer("health").Start(ctx, "health.apply",
		trace.WithAttributes(
			attribute.String("monitor.id", id),
			attribute.String("check.id", c.ID),
			attribute.String("check.status", string(c.Outcome.Status)),
		),
	)
	defer span.End()

	mu := &u.locks[stripe(id)]
	mu.Lock()
	defer mu.Unlock()

	entry := u.entry(c)
	var out Applied

	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		inserted, err := u.logs.Append(ctx, entry)
		if errors.Is(err, monitor.ErrNotFound) {
			return ErrMonitorGone
		}
		if err != nil {
			return fmt.Errorf("append log entry: %w", err)
		}
		if !inserted {
			return ErrDuplicate
		}

		w, err := u.logs.Window(ctx, id, u.cfg.UptimeWindow)
		if err != nil {
			return fmt.Errorf("uptime window: %w", err)
		}
		uptime := Uptime(w)

		prev, err := u.registry.UpdateHealth(ctx, id, c.Outcome.Status, c.CheckedAt, uptime)
		if errors.Is(err, monitor.ErrNotFound) {
			return ErrMonitorGone
		}
		if err != nil {
			return fmt.Errorf("update health: %w", err)
		}
		out = Applied{Status: c.Outcome.Status, Previous: prev, UptimePercent: uptime}

		return u.enqueueEvents(ctx, c, entry, out)
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicate) && !errors.Is(err, ErrMonitorGone) {
			obs.FailSpan(span, err)
		}
		return Applied{}, err
	}

	if out.Changed() {
		obs.WithTrace(ctx, u.log).Info("monitor status changed",
			zap.String("monitor_id", id),
			zap.String("old", string(out.Previous)),
			zap.String("new", string(out.Status)),
		)
	}
	return out, nil
}

func (u *Updater) enqueueEvents(ctx context.Context, c Check, e *logentry.Entry, a Applied) error {
	if u.events == nil {
		return nil
	}
	completed, err := json.Marshal(kafka.CheckCompleted{
		CheckID:        c.ID,
		MonitorID:      c.Monitor.ID,
		Status:         string(a.Status),
		Message:        e.Message,
		ResponseTimeMs: e.ResponseTimeMs,
		UptimePercent:  a.UptimePercent,
		CheckedAt:      c.CheckedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal check completed: %w", err)
	}
	if err := u.events.Enqueue(ctx, "check:"+c.ID, outbox.KindCheckCompleted, completed); err != nil {
		return fmt.Errorf("enqueue check completed: %w", err)
	}

	if !a.Changed() {
		return nil
	}
	changed, err := json.Marshal(kafka.StatusChanged{
		MonitorID: c.Monitor.ID,
		Old:       string(a.Previous),
		New:       string(a.Status),
		At:        c.CheckedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal status changed: %w", err)
	}
	if err := u.events.Enqueue(ctx, "status:"+c.ID, outbox.KindStatusChanged, changed); err != nil {
		return fmt.Errorf("enqueue status changed: %w", err)
	}
	return nil
}

func (u *Updater) entry(c Check) *logentry.Entry {
	e := &logentry.Entry{
		CheckID:   c.ID,
		MonitorID: c.Monitor.ID,
		Timestamp: c.CheckedAt,
		Status:    c.Outcome.Status,
		Message:   c.Outcome.Message,
	}
	if c.Result.Elapsed > 0 {
		ms := c.Result.ElapsedMs()
		e.ResponseTimeMs = &ms
	}
	if c.Monitor.Type == monitor.TypeHTTP && c.Result.Succeeded && len(c.Result.Body) > 0 && u.cfg.LogBodyBytes > 0 {
		body := truncateUTF8(c.Result.Body, u.cfg.LogBodyBytes)
		e.ResponseBody = &body
	}
	return e
}

// Uptime is successes/total as a percentage rounded to one decimal place.
// It describes the retained window only.
func Uptime(w logentry.Window) float64 {
	if w.Total <= 0 {
		return 0
	}
	return math.Round(1000*float64(w.Successes)/float64(w.Total)) / 10
}

func truncateUTF8(b []byte, limit int) string {
	if len(b) > limit {
		b = b[:limit]
		// drop a rune cut in half by the limit
		for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
			if r, size := utf8.DecodeLastRune(b); r != utf8.RuneError || size != 1 {
				break
			}
			b = b[:len(b)-1]
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}

func stripe(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % stripes
}
