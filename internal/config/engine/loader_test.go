package engine_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Sched.Tick)
	assert.Equal(t, 32, cfg.Sched.Workers)
	assert.Equal(t, 8, cfg.Sched.Appliers)
	assert.Equal(t, 1024, cfg.Sched.QueueSize)
	assert.Equal(t, time.Minute, cfg.Sched.Resync)
	assert.Equal(t, 400, cfg.Interpret.HTTPSuccessBelow)
	assert.Equal(t, 100, cfg.Health.UptimeWindow)
	assert.Equal(t, int64(65536), cfg.Probe.MaxBodyBytes)
	assert.True(t, cfg.Probe.VerifyTLS)
	assert.Equal(t, 720*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, []string{"localhost:9094"}, cfg.Kafka.Brokers)
	assert.Equal(t, "checkengine", cfg.LoggerConfig().App)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sched:
  tick: 250ms
  workers: 4
probe:
  user_agent: probe-test
kafka:
  enable: false
`), 0o600))

	t.Setenv("SCHED_WORKERS", "6")
	t.Setenv("HEALTH_UPTIME_WINDOW", "20")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Sched.Tick)
	assert.Equal(t, 6, cfg.Sched.Workers, "env wins over file")
	assert.Equal(t, 20, cfg.Health.UptimeWindow)
	assert.Equal(t, "probe-test", cfg.Probe.UserAgent)
	assert.False(t, cfg.Kafka.Enable)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Sched.Workers)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"zero workers":        func(c *Config) { c.Sched.Workers = 0 },
		"zero appliers":       func(c *Config) { c.Sched.Appliers = 0 },
		"zero tick":           func(c *Config) { c.Sched.Tick = 0 },
		"empty uptime window": func(c *Config) { c.Health.UptimeWindow = 0 },
		"success below 200":   func(c *Config) { c.Interpret.HTTPSuccessBelow = 200 },
		"success above 600":   func(c *Config) { c.Interpret.HTTPSuccessBelow = 601 },
		"no brokers":          func(c *Config) { c.Kafka.Brokers = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			var ce ErrConfig
			assert.ErrorAs(t, c.Validate(), &ce)
		})
	}

	ok := *base
	ok.Interpret.HTTPSuccessBelow = 600
	assert.NoError(t, ok.Validate())
}
