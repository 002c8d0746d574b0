package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/outbox"
)

var _ outbox.Repository = (*Outbox)(nil)

type Outbox struct {
	mu    sync.Mutex
	msgs  map[string]*outbox.Message
	order []string
}

func NewOutbox() *Outbox { return &Outbox{msgs: make(map[string]*outbox.Message)} }

func (o *Outbox) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.msgs[key]; ok {
		return nil
	}
	now := time.Now()
	o.msgs[key] = &outbox.Message{
		IdempotencyKey: key, Kind: kind, Data: append([]byte(nil), data...),
		Status: outbox.StatusCreated, CreatedAt: now, UpdatedAt: now,
	}
	o.order = append(o.order, key)
	onRollback(ctx, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.msgs, key)
	})
	return nil
}

func (o *Outbox) PickBatch(_ context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	var out []outbox.Message
	for _, k := range o.order {
		if len(out) == batch {
			break
		}
		m, ok := o.msgs[k]
		if !ok {
			continue
		}
		if m.Status == outbox.StatusCreated ||
			(m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))) {
			m.Status = outbox.StatusInProgress
			m.UpdatedAt = now
			out = append(out, *m)
		}
	}
	return out, nil
}

func (o *Outbox) MarkSuccess(_ context.Context, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range keys {
		if m, ok := o.msgs[k]; ok {
			m.Status = outbox.StatusSuccess
			m.UpdatedAt = time.Now()
		}
	}
	return nil
}

// Pending returns messages not yet published, oldest first.
func (o *Outbox) Pending() []outbox.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []outbox.Message
	for _, k := range o.order {
		if m, ok := o.msgs[k]; ok && m.Status != outbox.StatusSuccess {
			out = append(out, *m)
		}
	}
	return out
}
