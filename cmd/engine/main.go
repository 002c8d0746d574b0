package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/repository/kafka"
	"github.com/NordCoder/checkengine/internal/services/scheduler"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/engine.yaml"
}

func main() {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting checkengine",
		zap.String("env", cfg.App.Env),
		zap.Int("workers", cfg.Sched.Workers),
		zap.Duration("tick", cfg.Sched.Tick),
		zap.Bool("kafka", cfg.Kafka.Enable),
	)

	// otel
	otelShutdown, err := initOTel(root, cfg)
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// db
	db, err := initDB(root, cfg, l)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// kafka
	var (
		events *kafka.CheckEventsKafka
		prod   *kafka.Producer
		cons   *kafka.Consumer
	)
	if cfg.Kafka.Enable {
		prod = kafka.BootstrapProducer(root, cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.EventPartitions, l)
		defer func() { _ = prod.Close() }()
		events = kafka.NewCheckEventsKafka(prod)

		cons = kafka.BootstrapConsumer(root, &kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ControlGroup,
			Topic:   cfg.Kafka.ControlTopic,
			Logger:  l,
		}, l)
		defer func() { _ = cons.Close() }()
	}

	// wiring
	eng := wire(cfg, db, events, l)

	grpcServer, grpcHealth, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		l.Fatal("build grpc", zap.Error(err))
	}
	httpSrv := buildHTTPServer(cfg.Server.HTTPAddr, db, eng.control, l)

	// run
	g, gctx := errgroup.WithContext(root)
	g.Go(func() error { return eng.sched.Run(gctx) })
	g.Go(func() error { return eng.retention.Run(gctx) })
	if eng.outbox != nil {
		g.Go(func() error { return eng.outbox.Run(gctx) })
	}
	if cons != nil {
		ctrl := &scheduler.Controller{Log: l.Named("lifecycle"), Sub: cons, Sched: eng.sched}
		g.Go(func() error { return ctrl.Run(gctx) })
	}
	g.Go(func() error { return serveGRPC(grpcServer, grpcLn, cfg, l) })
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down")
		setServing(grpcHealth, false)

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shCtx)

		done := make(chan struct{})
		go func() { grpcServer.GracefulStop(); close(done) }()
		select {
		case <-done:
		case <-shCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	setServing(grpcHealth, true)
	l.Info("checkengine started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("engine stopped with error", zap.Error(err))
	}

	time.Sleep(100 * time.Millisecond)
	l.Info("bye")
}
