package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/kafka"
	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/domain/outbox"
	"github.com/NordCoder/checkengine/internal/interpret"
	"github.com/NordCoder/checkengine/internal/probe"
	"github.com/NordCoder/checkengine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg  *memory.Registry
	logs *memory.LogStore
	ob   *memory.Outbox
	upd  *Updater
}

func newFixture(t *testing.T, window int, ids ...string) *fixture {
	t.Helper()
	f := &fixture{reg: memory.NewRegistry(), logs: memory.NewLogStore(), ob: memory.NewOutbox()}
	for _, id := range ids {
		require.NoError(t, f.reg.Put(context.Background(), &monitor.Monitor{
			ID: id, Type: monitor.TypeHTTP, Target: "https://" + id + ".test", IntervalMinutes: 1, Active: true,
		}))
	}
	f.upd = NewUpdater(f.reg, f.logs, memory.NewTransactor(), f.ob, Config{UptimeWindow: window, LogBodyBytes: 8}, nil)
	return f
}

func (f *fixture) check(t *testing.T, id, checkID string, st monitor.Status, at time.Time) Check {
	t.Helper()
	m, err := f.reg.Get(context.Background(), id)
	require.NoError(t, err)
	return Check{
		ID:        checkID,
		Monitor:   m,
		CheckedAt: at,
		Result:    probe.Result{Succeeded: true, StatusCode: 200, Elapsed: 42 * time.Millisecond, Body: []byte("hello world")},
		Outcome:   interpret.Outcome{Status: st, Message: "HTTP 200"},
	}
}

func TestApply_WritesEntryAndHealth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, "a")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := f.upd.Apply(ctx, f.check(t, "a", "c1", monitor.StatusSuccess, at))
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusSuccess, got.Status)
	assert.Equal(t, monitor.StatusUnknown, got.Previous)
	assert.True(t, got.Changed())
	assert.Equal(t, 100.0, got.UptimePercent)

	m, err := f.reg.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusSuccess, m.LastStatus)
	require.NotNil(t, m.LastCheckedAt)
	assert.True(t, at.Equal(*m.LastCheckedAt))

	list, err := f.logs.ListByMonitor(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "HTTP 200", list[0].Message)
	require.NotNil(t, list[0].ResponseTimeMs)
	assert.Equal(t, int64(42), *list[0].ResponseTimeMs)
	require.NotNil(t, list[0].ResponseBody)
	assert.Equal(t, "hello wo", *list[0].ResponseBody)
}

func TestApply_DuplicateDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, "a")
	now := time.Now()

	_, err := f.upd.Apply(ctx, f.check(t, "a", "c1", monitor.StatusSuccess, now))
	require.NoError(t, err)
	_, err = f.upd.Apply(ctx, f.check(t, "a", "c2", monitor.StatusError, now.Add(time.Minute)))
	require.NoError(t, err)

	_, err = f.upd.Apply(ctx, f.check(t, "a", "c2", monitor.StatusError, now.Add(time.Minute)))
	require.ErrorIs(t, err, ErrDuplicate)

	m, err := f.reg.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 50.0, m.UptimePercent)
	w, err := f.logs.Window(ctx, "a", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Total)
	assert.Len(t, f.ob.Pending(), 4) // two completions, two status changes
}

func TestApply_AfterDeleteIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, "a")
	c := f.check(t, "a", "c1", monitor.StatusError, time.Now())
	require.NoError(t, f.reg.Delete(ctx, "a"))

	_, err := f.upd.Apply(ctx, c)
	require.ErrorIs(t, err, ErrMonitorGone)

	w, err := f.logs.Window(ctx, "a", 100)
	require.NoError(t, err)
	assert.Zero(t, w.Total, "log entry must be rolled back")
	assert.Empty(t, f.ob.Pending())
}

func TestApply_AfterDeactivateIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, "a")
	c := f.check(t, "a", "c1", monitor.StatusSuccess, time.Now())
	require.NoError(t, f.reg.SetActive(ctx, "a", false))

	_, err := f.upd.Apply(ctx, c)
	assert.ErrorIs(t, err, ErrMonitorGone)
}

func TestApply_UptimeOverWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3, "a")
	base := time.Now()
	seq := []monitor.Status{monitor.StatusError, monitor.StatusSuccess, monitor.StatusSuccess, monitor.StatusError}

	var last Applied
	for i, st := range seq {
		var err error
		last, err = f.upd.Apply(ctx, f.check(t, "a", fmt.Sprintf("c%d", i), st, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	// window holds success, success, error
	assert.Equal(t, 66.7, last.UptimePercent)
}

func TestApply_EnqueuesEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, "a")
	now := time.Now().UTC()

	_, err := f.upd.Apply(ctx, f.check(t, "a", "c1", monitor.StatusError, now))
	require.NoError(t, err)
	_, err = f.upd.Apply(ctx, f.check(t, "a", "c2", monitor.StatusError, now.Add(time.Minute)))
	require.NoError(t, err)

	pending := f.ob.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "check:c1", pending[0].IdempotencyKey)
	assert.Equal(t, outbox.KindCheckCompleted, pending[0].Kind)
	assert.Equal(t, "status:c1", pending[1].IdempotencyKey)
	assert.Equal(t, outbox.KindStatusChanged, pending[1].Kind)
	assert.Equal(t, "check:c2", pending[2].IdempotencyKey)

	var sc kafka.StatusChanged
	require.NoError(t, json.Unmarshal(pending[1].Data, &sc))
	assert.Equal(t, "unknown", sc.Old)
	assert.Equal(t, "error", sc.New)
}

type failingLogs struct {
	logentry.Store
	calls int
}

func (f *failingLogs) Append(ctx context.Context, e *logentry.Entry) (bool, error) {
	f.calls++
	return false, errors.New("connection reset")
}

func TestApply_PropagatesInfrastructureErrors(t *testing.T) {
	f := newFixture(t, 100, "a")
	logs := &failingLogs{Store: f.logs}
	upd := NewUpdater(f.reg, logs, memory.NewTransactor(), nil, Config{}, nil)

	_, err := upd.Apply(context.Background(), f.check(t, "a", "c1", monitor.StatusSuccess, time.Now()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrMonitorGone)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestApply_ConcurrentMonitors(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	f := newFixture(t, 100, ids...)
	base := time.Now()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				st := monitor.StatusSuccess
				if i%4 == 0 {
					st = monitor.StatusError
				}
				_, err := f.upd.Apply(context.Background(), f.check(t, id, fmt.Sprintf("%s-%d", id, i), st, base.Add(time.Duration(i)*time.Second)))
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		m, err := f.reg.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 75.0, m.UptimePercent)
	}
}

func TestUptime(t *testing.T) {
	tests := []struct {
		k, n int
		want float64
	}{
		{0, 0, 0},
		{1, 1, 100},
		{0, 5, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{99, 100, 99},
		{999, 1000, 99.9},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Uptime(logentry.Window{Successes: tt.k, Total: tt.n}), "%d/%d", tt.k, tt.n)
	}
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "héllo", truncateUTF8([]byte("héllo"), 100))
	assert.Equal(t, "h", truncateUTF8([]byte("héllo"), 2))
	assert.True(t, strings.HasPrefix(truncateUTF8([]byte{0xff, 'a'}, 10), "�"))
}
