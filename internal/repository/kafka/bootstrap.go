package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const bootstrapWait = 5 * time.Second

// BootstrapConsumer creates the control topic if needed. A broker that is not
// ready yet is only logged: the reader retries on its own.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	ensureOrWarn(ctx, cfg.Brokers, TopicSpec{Name: cfg.Topic, NumPartitions: 1}, logger)
	return NewConsumer(cfg)
}

// BootstrapProducer creates the events topic with the given partition count so
// per-monitor ordering holds with several consumers.
func BootstrapProducer(ctx context.Context, brokers []string, topic string, partitions int, logger *zap.Logger) *Producer {
	ensureOrWarn(ctx, brokers, TopicSpec{Name: topic, NumPartitions: partitions}, logger)
	return NewProducer(brokers, topic).WithLogger(logger)
}

func ensureOrWarn(ctx context.Context, brokers []string, spec TopicSpec, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec.MaxWait = bootstrapWait
	if err := EnsureTopic(ctx, brokers, spec, logger); err != nil {
		logger.Warn("topic not ready", zap.String("topic", spec.Name), zap.Error(err))
	}
}
