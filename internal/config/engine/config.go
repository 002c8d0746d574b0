package engine_config

import (
	"time"

	"github.com/NordCoder/checkengine/internal/obs"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type DB struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	SlowQuery         time.Duration `mapstructure:"slow_query"`
}

type Sched struct {
	Tick         time.Duration `mapstructure:"tick"`
	Workers      int           `mapstructure:"workers"`
	Appliers     int           `mapstructure:"appliers"`
	QueueSize    int           `mapstructure:"queue_size"`
	Resync       time.Duration `mapstructure:"resync"`
	DispatchRate float64       `mapstructure:"dispatch_rate"`
	ApplyTimeout time.Duration `mapstructure:"apply_timeout"`
	ApplyRetries int           `mapstructure:"apply_retries"`
}

type Probe struct {
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	VerifyTLS      bool          `mapstructure:"verify_tls"`
	PingPrivileged bool          `mapstructure:"ping_privileged"`
}

type Interpret struct {
	HTTPSuccessBelow   int     `mapstructure:"http_success_below"`
	PingMaxLossPercent float64 `mapstructure:"ping_max_loss_percent"`
}

type Health struct {
	UptimeWindow int `mapstructure:"uptime_window"`
	LogBodyBytes int `mapstructure:"log_body_bytes"`
}

type Retention struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxEntries int           `mapstructure:"max_entries"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

type Kafka struct {
	Enable          bool     `mapstructure:"enable"`
	Brokers         []string `mapstructure:"brokers"`
	ControlTopic    string   `mapstructure:"control_topic"`
	ControlGroup    string   `mapstructure:"control_group"`
	EventsTopic     string   `mapstructure:"events_topic"`
	EventPartitions int      `mapstructure:"event_partitions"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	Batch         int           `mapstructure:"batch"`
	Wait          time.Duration `mapstructure:"wait"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	// ControlSecret signs the service tokens accepted by the control API.
	// Empty leaves the control API open.
	ControlSecret   string        `mapstructure:"control_secret"`
}

type Config struct {
	App       App       `mapstructure:"app"`
	Log       Log       `mapstructure:"log"`
	OTEL      OTEL      `mapstructure:"otel"`
	DB        DB        `mapstructure:"db"`
	Sched     Sched     `mapstructure:"sched"`
	Probe     Probe     `mapstructure:"probe"`
	Interpret Interpret `mapstructure:"interpret"`
	Health    Health    `mapstructure:"health"`
	Retention Retention `mapstructure:"retention"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Outbox    Outbox    `mapstructure:"outbox"`
	Server    Server    `mapstructure:"server"`
}

func (c *Config) OTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		Env:         c.App.Env,
		Version:     c.App.Version,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
		File:   c.Log.File,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
