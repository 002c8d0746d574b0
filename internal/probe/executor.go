package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var probeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "probe_duration_seconds",
	Help:    "Probe duration by monitor type and transport outcome.",
	Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
}, []string{"type", "outcome"})

// Executor is the one place that maps a monitor type to its probe.
type Executor struct {
	probes         map[monitor.Type]Probe
	defaultTimeout time.Duration
}

// NewExecutor returns an executor with no probes; defaultTimeout bounds
// probes of types that carry no timeout of their own.
func NewExecutor(defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	return &Executor{probes: make(map[monitor.Type]Probe), defaultTimeout: defaultTimeout}
}

func (e *Executor) Register(t monitor.Type, p Probe) *Executor {
	e.probes[t] = p
	return e
}

// Execute runs one bounded probe attempt. It never returns an error and never
// panics: every failure is reported inside the Result.
func (e *Executor) Execute(ctx context.Context, m *monitor.Monitor) (res Result) {
	start := time.Now()

	ctx, span := otel.Tracer("probe").Start(ctx, "probe.execute",
		trace.WithAttributes(
			attribute.String("monitor.id", m.ID),
			attribute.String("monitor.type", string(m.Type)),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			res = failed(ErrorKindInternal, fmt.Errorf("probe panicked: %v", r), time.Since(start))
		}
		outcome := "ok"
		if !res.Succeeded {
			outcome = string(res.ErrorKind)
			span.SetAttributes(attribute.String("probe.error_kind", outcome))
		}
		probeLatency.WithLabelValues(string(m.Type), outcome).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if err := m.Validate(); err != nil {
		return failed(ErrorKindInvalidConfig, err, 0)
	}
	p, ok := e.probes[m.Type]
	if !ok {
		return failed(ErrorKindInvalidConfig, fmt.Errorf("no probe for type %q", m.Type), 0)
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout(e.defaultTimeout))
	defer cancel()

	res = p.Run(ctx, m)
	if !res.Succeeded && res.ErrorKind == ErrorKindNone {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ErrorKind = ErrorKindTimeout
		} else {
			res.ErrorKind = ErrorKindNetwork
		}
		if res.Error == "" {
			res.Error = string(res.ErrorKind)
		}
	}
	return res
}
