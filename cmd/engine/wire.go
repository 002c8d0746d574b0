package main

import (
	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/health"
	"github.com/NordCoder/checkengine/internal/interpret"
	"github.com/NordCoder/checkengine/internal/obs/retry"
	"github.com/NordCoder/checkengine/internal/outbox"
	"github.com/NordCoder/checkengine/internal/probe"
	"github.com/NordCoder/checkengine/internal/repository/kafka"
	pg "github.com/NordCoder/checkengine/internal/repository/postgres"
	"github.com/NordCoder/checkengine/internal/services/control"
	"github.com/NordCoder/checkengine/internal/services/retention"
	"github.com/NordCoder/checkengine/internal/services/scheduler"
	"go.uber.org/zap"
)

type engine struct {
	sched     *scheduler.Scheduler
	control   *control.Handler
	retention *retention.Runner
	outbox    *outbox.Runner // nil when kafka is disabled
}

func newExecutor(cfg *config.Config) *probe.Executor {
	return probe.NewExecutor(cfg.Probe.HTTPTimeout).
		Register(monitor.TypeHTTP, probe.NewHTTPProbe(probe.HTTPOptions{
			UserAgent:    cfg.Probe.UserAgent,
			MaxRedirects: cfg.Probe.MaxRedirects,
			MaxBodyBytes: cfg.Probe.MaxBodyBytes,
			VerifyTLS:    cfg.Probe.VerifyTLS,
		})).
		Register(monitor.TypeTCP, probe.NewTCPProbe()).
		Register(monitor.TypePing, probe.NewPingProbe(cfg.Probe.PingPrivileged))
}

// wire builds the engine over postgres. events is nil when kafka is
// disabled; check events are then not recorded at all.
func wire(cfg *config.Config, db *pg.DB, events *kafka.CheckEventsKafka, l *zap.Logger) *engine {
	monitors := pg.NewMonitorRepo(db)
	logs := pg.NewLogRepo(db)
	transactor := pg.NewTransactor(db, l)

	var enq health.Enqueuer
	var outboxRunner *outbox.Runner
	if events != nil {
		outboxRepo := pg.NewOutboxRepo(db)
		enq = outboxRepo
		dispatch := outbox.MakeGlobalOutboxHandler(events, retry.DefaultKafkaPolicy(l))
		outboxRunner = outbox.NewOutboxRunner(
			l.Named("outbox"),
			outboxRepo,
			dispatch,
			cfg.Outbox.Workers,
			cfg.Outbox.Batch,
			cfg.Outbox.Wait,
			cfg.Outbox.InProgressTTL,
		)
	}

	updater := health.NewUpdater(monitors, logs, transactor, enq, health.Config{
		UptimeWindow: cfg.Health.UptimeWindow,
		LogBodyBytes: cfg.Health.LogBodyBytes,
	}, l.Named("health"))

	rules := interpret.Rules{
		HTTPSuccessBelow:   cfg.Interpret.HTTPSuccessBelow,
		PingMaxLossPercent: cfg.Interpret.PingMaxLossPercent,
	}

	sched := scheduler.New(scheduler.Config{
		Tick:         cfg.Sched.Tick,
		Workers:      cfg.Sched.Workers,
		Appliers:     cfg.Sched.Appliers,
		QueueSize:    cfg.Sched.QueueSize,
		Resync:       cfg.Sched.Resync,
		DispatchRate: cfg.Sched.DispatchRate,
		ApplyTimeout: cfg.Sched.ApplyTimeout,
		ApplyRetries: cfg.Sched.ApplyRetries,
	}, monitors, newExecutor(cfg), rules, updater, l.Named("scheduler"))

	return &engine{
		sched:   sched,
		control: control.New(sched, logs, l.Named("control"), control.WithSecret([]byte(cfg.Server.ControlSecret))),
		retention: retention.NewRunner(l.Named("retention"), logs, retention.Config{
			Interval:   cfg.Retention.Interval,
			MaxEntries: cfg.Retention.MaxEntries,
			MaxAge:     cfg.Retention.MaxAge,
		}),
		outbox: outboxRunner,
	}
}
