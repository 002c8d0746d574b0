package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/kafka"
	"github.com/NordCoder/checkengine/internal/domain/outbox"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(k outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	kind := k.String()
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle "+kind)
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			obs.FailSpan(span, err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

func decode[T any](publish func(context.Context, T) error) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("unmarshal %T payload: %w", ev, err)
		}
		return publish(ctx, ev)
	}
}

// MakeGlobalOutboxHandler routes outbox kinds to the check events publisher.
func MakeGlobalOutboxHandler(pub kafka.CheckEvents, pol retry.Policy) outbox.GlobalHandler {
	completed := instrument(outbox.KindCheckCompleted, decode(pub.PublishCheckCompleted), pol)
	changed := instrument(outbox.KindStatusChanged, decode(pub.PublishStatusChanged), pol)

	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindCheckCompleted:
			return completed, nil
		case outbox.KindStatusChanged:
			return changed, nil
		default:
			return nil, fmt.Errorf("%w: %s", outbox.ErrUnknownKind, kind)
		}
	}
}
