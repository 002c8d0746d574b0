// Package memory holds in-process implementations of the registry, log store,
// outbox and transactor ports. The scheduler and health tests run on them.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

var _ monitor.Registry = (*Registry)(nil)

type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*monitor.Monitor
}

func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]*monitor.Monitor)}
}

// Put inserts or replaces a monitor definition, keeping existing health fields.
func (r *Registry) Put(_ context.Context, m *monitor.Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := m.Clone()
	now := time.Now().UTC()
	if cur, ok := r.monitors[m.ID]; ok {
		cp.Health = cur.Health
		cp.CreatedAt = cur.CreatedAt
	} else {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		if cp.LastStatus == "" {
			cp.LastStatus = monitor.StatusUnknown
		}
	}
	cp.UpdatedAt = now
	r.monitors[m.ID] = cp
	return nil
}

func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[id]; !ok {
		return monitor.ErrNotFound
	}
	delete(r.monitors, id)
	return nil
}

func (r *Registry) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[id]
	if !ok {
		return monitor.ErrNotFound
	}
	m.Active = active
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Registry) ListActive(_ context.Context) ([]*monitor.Monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*monitor.Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		if m.Active {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Registry) Get(_ context.Context, id string) (*monitor.Monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[id]
	if !ok {
		return nil, monitor.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *Registry) UpdateHealth(ctx context.Context, id string, status monitor.Status, checkedAt time.Time, uptime float64) (monitor.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[id]
	if !ok || !m.Active {
		return "", monitor.ErrNotFound
	}
	prev := m.Health
	at := checkedAt
	m.LastStatus = status
	m.LastCheckedAt = &at
	m.UptimePercent = uptime

	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.monitors[id]; ok {
			cur.Health = prev
		}
	})
	return prev.LastStatus, nil
}
