package probe

import (
	"context"
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpMonitor(target string) *monitor.Monitor {
	return &monitor.Monitor{
		ID:              "m-1",
		Type:            monitor.TypeHTTP,
		Target:          target,
		IntervalMinutes: 1,
		Active:          true,
	}
}

func TestExecutor_UnknownType(t *testing.T) {
	m := httpMonitor("http://example.test")
	m.Type = "smtp"

	res := NewExecutor(time.Second).Execute(context.Background(), m)

	assert.False(t, res.Succeeded)
	assert.Equal(t, ErrorKindInvalidConfig, res.ErrorKind)
	assert.NotEmpty(t, res.Error)
}

func TestExecutor_InvalidConfigNeverProbes(t *testing.T) {
	called := false
	ex := NewExecutor(time.Second).Register(monitor.TypeTCP, Func(func(context.Context, *monitor.Monitor) Result {
		called = true
		return Result{Succeeded: true}
	}))
	m := &monitor.Monitor{ID: "m-2", Type: monitor.TypeTCP, Target: "db.local", IntervalMinutes: 1,
		Settings: monitor.Settings{TCP: &monitor.TCPConfig{Port: 70000, TimeoutSec: 5}}}

	res := ex.Execute(context.Background(), m)

	assert.False(t, called)
	assert.Equal(t, ErrorKindInvalidConfig, res.ErrorKind)
}

func TestExecutor_RecoversPanic(t *testing.T) {
	ex := NewExecutor(time.Second).Register(monitor.TypeHTTP, Func(func(context.Context, *monitor.Monitor) Result {
		panic("nil map")
	}))

	res := ex.Execute(context.Background(), httpMonitor("http://example.test"))

	assert.False(t, res.Succeeded)
	assert.Equal(t, ErrorKindInternal, res.ErrorKind)
	assert.Contains(t, res.Error, "nil map")
}

func TestExecutor_BoundsProbeByTimeout(t *testing.T) {
	ex := NewExecutor(50 * time.Millisecond).Register(monitor.TypeHTTP, Func(func(ctx context.Context, _ *monitor.Monitor) Result {
		<-ctx.Done()
		return Result{}
	}))

	start := time.Now()
	res := ex.Execute(context.Background(), httpMonitor("http://example.test"))

	require.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Succeeded)
	assert.Equal(t, ErrorKindTimeout, res.ErrorKind)
	assert.Equal(t, "timeout", res.Error)
}

func TestExecutor_UsesMonitorTimeout(t *testing.T) {
	var got time.Duration
	ex := NewExecutor(time.Hour).Register(monitor.TypeTCP, Func(func(ctx context.Context, _ *monitor.Monitor) Result {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		got = time.Until(dl)
		return Result{Succeeded: true}
	}))
	m := &monitor.Monitor{ID: "m-3", Type: monitor.TypeTCP, Target: "db.local", IntervalMinutes: 1,
		Settings: monitor.Settings{TCP: &monitor.TCPConfig{Port: 5432, TimeoutSec: 3}}}

	res := ex.Execute(context.Background(), m)

	require.True(t, res.Succeeded)
	assert.LessOrEqual(t, got, 3*time.Second)
	assert.Greater(t, got, 2*time.Second)
}
