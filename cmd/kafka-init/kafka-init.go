package main

import (
	"context"
	"log"
	"os"
	"time"

	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/internal/repository/kafka"
	"go.uber.org/zap"
)

// kafka-init creates the lifecycle and events topics before the engine and
// the API layer start.
func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/engine.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, App: "checkengine/kafka-init", Env: cfg.App.Env})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err = kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, l,
		kafka.TopicSpec{Name: cfg.Kafka.ControlTopic, NumPartitions: 1, MaxWait: 30 * time.Second},
		kafka.TopicSpec{Name: cfg.Kafka.EventsTopic, NumPartitions: cfg.Kafka.EventPartitions, MaxWait: 30 * time.Second},
	)
	if err != nil {
		l.Fatal("ensure topics", zap.Error(err))
	}
	l.Info("kafka-init ok")
}
