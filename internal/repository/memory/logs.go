package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

var _ logentry.Store = (*LogStore)(nil)

type LogStore struct {
	mu      sync.RWMutex
	seq     int64
	byCheck map[string]struct{}
	entries map[string][]*logentry.Entry // oldest first
}

func NewLogStore() *LogStore {
	return &LogStore{
		byCheck: make(map[string]struct{}),
		entries: make(map[string][]*logentry.Entry),
	}
}

func (s *LogStore) Append(ctx context.Context, e *logentry.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byCheck[e.CheckID]; dup {
		return false, nil
	}
	s.seq++
	cp := *e
	cp.ID = s.seq
	e.ID = cp.ID

	list := s.entries[e.MonitorID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Timestamp.After(cp.Timestamp) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &cp
	s.entries[e.MonitorID] = list
	s.byCheck[e.CheckID] = struct{}{}

	onRollback(ctx, func() { s.remove(cp.MonitorID, cp.CheckID) })
	return true, nil
}

func (s *LogStore) remove(monitorID, checkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[monitorID]
	for i, e := range list {
		if e.CheckID == checkID {
			s.entries[monitorID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	delete(s.byCheck, checkID)
}

func (s *LogStore) Window(_ context.Context, monitorID string, limit int) (logentry.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[monitorID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	var w logentry.Window
	for _, e := range list {
		w.Total++
		if e.Status == monitor.StatusSuccess {
			w.Successes++
		}
	}
	return w, nil
}

// ListByMonitor returns the newest entries first.
func (s *LogStore) ListByMonitor(_ context.Context, monitorID string, limit int) ([]*logentry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[monitorID]
	out := make([]*logentry.Entry, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Prune drops entries beyond keepPerMonitor per monitor and entries older
// than olderThan. A zero bound is ignored.
func (s *LogStore) Prune(_ context.Context, keepPerMonitor int, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, list := range s.entries {
		cut := 0
		if keepPerMonitor > 0 && len(list) > keepPerMonitor {
			cut = len(list) - keepPerMonitor
		}
		if !olderThan.IsZero() {
			for cut < len(list) && list[cut].Timestamp.Before(olderThan) {
				cut++
			}
		}
		for _, e := range list[:cut] {
			delete(s.byCheck, e.CheckID)
		}
		removed += int64(cut)
		if cut == len(list) {
			delete(s.entries, id)
			continue
		}
		s.entries[id] = append([]*logentry.Entry(nil), list[cut:]...)
	}
	return removed, nil
}
