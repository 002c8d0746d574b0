package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(check, mon string, at time.Time, st monitor.Status) *logentry.Entry {
	return &logentry.Entry{CheckID: check, MonitorID: mon, Timestamp: at, Status: st, Message: string(st)}
}

func TestRegistry_PutKeepsHealth(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	m := &monitor.Monitor{ID: "a", Type: monitor.TypeHTTP, Target: "https://a.test", IntervalMinutes: 1, Active: true}
	require.NoError(t, r.Put(ctx, m))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusUnknown, got.LastStatus)

	prev, err := r.UpdateHealth(ctx, "a", monitor.StatusSuccess, time.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusUnknown, prev)

	m.IntervalMinutes = 5
	require.NoError(t, r.Put(ctx, m))
	got, err = r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 5, got.IntervalMinutes)
	assert.Equal(t, monitor.StatusSuccess, got.LastStatus)
	assert.Equal(t, 100.0, got.UptimePercent)
}

func TestRegistry_UpdateHealthInactiveOrMissing(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Put(ctx, &monitor.Monitor{ID: "a", Active: true}))
	require.NoError(t, r.SetActive(ctx, "a", false))

	_, err := r.UpdateHealth(ctx, "a", monitor.StatusError, time.Now(), 0)
	assert.ErrorIs(t, err, monitor.ErrNotFound)

	_, err = r.UpdateHealth(ctx, "missing", monitor.StatusError, time.Now(), 0)
	assert.ErrorIs(t, err, monitor.ErrNotFound)

	active, err := r.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRegistry_DeleteAndSetActiveMissing(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	assert.ErrorIs(t, r.Delete(ctx, "missing"), monitor.ErrNotFound)
	assert.ErrorIs(t, r.SetActive(ctx, "missing", true), monitor.ErrNotFound)

	require.NoError(t, r.Put(ctx, &monitor.Monitor{ID: "a", Active: true}))
	require.NoError(t, r.Delete(ctx, "a"))
	_, err := r.Get(ctx, "a")
	assert.ErrorIs(t, err, monitor.ErrNotFound)
}

func TestLogStore_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLogStore()
	now := time.Now()

	ok, err := s.Append(ctx, entry("c1", "a", now, monitor.StatusSuccess))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Append(ctx, entry("c1", "a", now, monitor.StatusSuccess))
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := s.Window(ctx, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, logentry.Window{Successes: 1, Total: 1}, w)
}

func TestLogStore_WindowUsesNewestEntries(t *testing.T) {
	ctx := context.Background()
	s := NewLogStore()
	base := time.Now()
	statuses := []monitor.Status{
		monitor.StatusError, monitor.StatusError, monitor.StatusSuccess, monitor.StatusSuccess, monitor.StatusError,
	}
	for i, st := range statuses {
		_, err := s.Append(ctx, entry(string(rune('a'+i)), "m", base.Add(time.Duration(i)*time.Minute), st))
		require.NoError(t, err)
	}

	w, err := s.Window(ctx, "m", 3)
	require.NoError(t, err)
	assert.Equal(t, logentry.Window{Successes: 2, Total: 3}, w)

	list, err := s.ListByMonitor(ctx, "m", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e", list[0].CheckID)
	assert.Equal(t, "d", list[1].CheckID)
}

func TestLogStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := NewLogStore()
	now := time.Now()
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, entry(string(rune('a'+i)), "m", now.Add(-time.Duration(5-i)*time.Hour), monitor.StatusSuccess))
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, entry("old", "other", now.Add(-48*time.Hour), monitor.StatusError))
	require.NoError(t, err)

	removed, err := s.Prune(ctx, 3, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	w, err := s.Window(ctx, "m", 100)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Total)
	w, err = s.Window(ctx, "other", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Total)

	// pruned check ids may be reused
	ok, err := s.Append(ctx, entry("a", "m", now, monitor.StatusSuccess))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransactor_RollsBackAllStores(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	logs := NewLogStore()
	ob := NewOutbox()
	require.NoError(t, r.Put(ctx, &monitor.Monitor{ID: "a", Active: true}))

	boom := errors.New("boom")
	err := NewTransactor().WithTx(ctx, func(ctx context.Context) error {
		_, err := logs.Append(ctx, entry("c1", "a", time.Now(), monitor.StatusError))
		require.NoError(t, err)
		_, err = r.UpdateHealth(ctx, "a", monitor.StatusError, time.Now(), 0)
		require.NoError(t, err)
		require.NoError(t, ob.Enqueue(ctx, "k1", outbox.KindCheckCompleted, []byte(`{}`)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	w, err := logs.Window(ctx, "a", 10)
	require.NoError(t, err)
	assert.Zero(t, w.Total)
	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusUnknown, got.LastStatus)
	assert.Nil(t, got.LastCheckedAt)
	assert.Empty(t, ob.Pending())
}

func TestOutbox_PickAndMark(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox()
	require.NoError(t, ob.Enqueue(ctx, "k1", outbox.KindCheckCompleted, []byte(`1`)))
	require.NoError(t, ob.Enqueue(ctx, "k2", outbox.KindStatusChanged, []byte(`2`)))
	require.NoError(t, ob.Enqueue(ctx, "k1", outbox.KindCheckCompleted, []byte(`dup`)))

	batch, err := ob.PickBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "k1", batch[0].IdempotencyKey)
	assert.Equal(t, []byte(`1`), batch[0].Data)

	again, err := ob.PickBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, ob.MarkSuccess(ctx, []string{"k1", "k2"}))
	assert.Empty(t, ob.Pending())
}
