package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_PrunesByCountAndAge(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLogStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := store.Append(ctx, &logentry.Entry{
			CheckID: fmt.Sprintf("a-%d", i), MonitorID: "a",
			Timestamp: now.Add(-time.Duration(i) * time.Hour), Status: monitor.StatusSuccess, Message: "ok",
		})
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, &logentry.Entry{
		CheckID: "b-old", MonitorID: "b", Timestamp: now.Add(-72 * time.Hour), Status: monitor.StatusError, Message: "down",
	})
	require.NoError(t, err)

	r := NewRunner(zap.NewNop(), store, Config{MaxEntries: 5, MaxAge: 48 * time.Hour})
	r.now = func() time.Time { return now }

	assert.Equal(t, int64(6), r.Prune(ctx))

	w, err := store.Window(ctx, "a", 100)
	require.NoError(t, err)
	assert.Equal(t, 5, w.Total)
	w, err = store.Window(ctx, "b", 100)
	require.NoError(t, err)
	assert.Zero(t, w.Total)
}

type brokenStore struct{}

func (brokenStore) Prune(context.Context, int, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestRunner_PruneErrorIsContained(t *testing.T) {
	r := NewRunner(zap.NewNop(), brokenStore{}, Config{MaxEntries: 1})
	assert.Zero(t, r.Prune(context.Background()))
}

func TestRunner_DisabledWaitsForCancel(t *testing.T) {
	r := NewRunner(zap.NewNop(), brokenStore{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx))
}
