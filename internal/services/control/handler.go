// Package control is the HTTP surface through which the API layer tells the
// engine about monitor lifecycle changes, plus read-only schedule views.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NordCoder/checkengine/internal/auth"
	"github.com/NordCoder/checkengine/internal/domain/logentry"
	"github.com/NordCoder/checkengine/internal/obs"
	"github.com/NordCoder/checkengine/internal/services/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Scheduler interface {
	Refresh(ctx context.Context, id string) error
	OnMonitorDeleted(id string)
	Entry(id string) (scheduler.EntryView, bool)
	Stats() scheduler.Stats
}

type Handler struct {
	sched  Scheduler
	logs   logentry.Store
	log    *zap.Logger
	secret []byte
}

type Option func(*Handler)

// WithSecret requires a service token signed with secret on every /v1 route.
func WithSecret(secret []byte) Option { return func(h *Handler) { h.secret = secret } }

func New(sched Scheduler, logs logentry.Store, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{sched: sched, logs: logs, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(h.secret))
		r.Get("/schedule", h.stats)
		r.Route("/monitors/{id}", func(r chi.Router) {
			r.Put("/", h.refresh)
			r.Delete("/", h.delete)
			r.Get("/schedule", h.entry)
			r.Get("/logs", h.listLogs)
		})
	})
	return r
}

// refresh re-reads the monitor from the registry; it covers both create and
// update notifications.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sched.Refresh(r.Context(), id); err != nil {
		obs.WithTrace(r.Context(), h.log).Warn("refresh failed", zap.String("monitor_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	v, ok := h.sched.Entry(id)
	writeJSON(w, http.StatusOK, map[string]any{"registered": ok, "schedule": entryOrNil(v, ok)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.sched.OnMonitorDeleted(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) {
	v, ok := h.sched.Entry(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("monitor not scheduled"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Stats())
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	list, err := h.logs.ListByMonitor(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Error("list logs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("log store unavailable"))
		return
	}
	if list == nil {
		list = []*logentry.Entry{}
	}
	writeJSON(w, http.StatusOK, list)
}

func entryOrNil(v scheduler.EntryView, ok bool) *scheduler.EntryView {
	if !ok {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
