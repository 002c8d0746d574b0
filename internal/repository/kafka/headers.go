package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headers adapts message headers to the otel text map carrier. Set replaces
// an existing key so re-injecting never duplicates traceparent.
type headers struct{ hs *[]kafka.Header }

func (h headers) Get(k string) string {
	for _, x := range *h.hs {
		if x.Key == k {
			return string(x.Value)
		}
	}
	return ""
}

func (h headers) Set(k, v string) {
	for i, x := range *h.hs {
		if x.Key == k {
			(*h.hs)[i].Value = []byte(v)
			return
		}
	}
	*h.hs = append(*h.hs, kafka.Header{Key: k, Value: []byte(v)})
}

func (h headers) Keys() []string {
	ks := make([]string, 0, len(*h.hs))
	for _, x := range *h.hs {
		ks = append(ks, x.Key)
	}
	return ks
}

func injectTrace(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, headers{hs: &msg.Headers})
}

func extractTrace(ctx context.Context, msg *kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headers{hs: &msg.Headers})
}
