package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

func (s *TopicSpec) normalize() {
	if s.NumPartitions <= 0 {
		s.NumPartitions = 1
	}
	if s.ReplicationFactor <= 0 {
		s.ReplicationFactor = 1
	}
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
}

// EnsureTopic is EnsureTopics for a single topic.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	return EnsureTopics(ctx, brokers, log, spec)
}

// EnsureTopics creates missing topics through the cluster controller and
// waits until every topic has partitions with a leader. Existing topics are
// left as they are, partition counts included.
func EnsureTopics(ctx context.Context, brokers []string, log *zap.Logger, specs ...TopicSpec) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "kafka.admin"))

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Warn("kafka dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Warn("kafka controller", zap.Error(err))
		return err
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Warn("kafka dial controller", zap.Error(err))
		return err
	}
	defer cc.Close()

	configs := make([]kafka.TopicConfig, 0, len(specs))
	for i := range specs {
		specs[i].normalize()
		configs = append(configs, kafka.TopicConfig{
			Topic:             specs[i].Name,
			NumPartitions:     specs[i].NumPartitions,
			ReplicationFactor: specs[i].ReplicationFactor,
		})
	}
	if err := cc.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		log.Debug("create topics", zap.Error(err))
	}

	for _, s := range specs {
		if err := waitReady(ctx, conn, s); err != nil {
			log.Warn("topic not confirmed ready", zap.String("topic", s.Name), zap.Error(err))
			return err
		}
		log.Info("topic ready", zap.String("topic", s.Name), zap.Int("partitions", s.NumPartitions))
	}
	return nil
}

func waitReady(ctx context.Context, conn *kafka.Conn, s TopicSpec) error {
	deadline := time.Now().Add(s.MaxWait)
	for {
		ps, err := conn.ReadPartitions(s.Name)
		if err == nil && len(ps) > 0 && allHaveLeader(ps) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("topic %s not ready after %s", s.Name, s.MaxWait)
		}
		if !sleep(ctx, 200*time.Millisecond) {
			return ctx.Err()
		}
	}
}

func allHaveLeader(ps []kafka.Partition) bool {
	for _, p := range ps {
		if p.Leader.ID == -1 {
			return false
		}
	}
	return true
}
