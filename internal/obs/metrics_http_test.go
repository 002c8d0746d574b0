package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOpsRouter(t *testing.T) {
	healthy := true
	h := OpsRouter(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("db down")
	}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)

	healthy = false
	rec := get(h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")

	assert.Equal(t, http.StatusTeapot, get(h, "/v1/schedule").Code)
	assert.Equal(t, http.StatusOK, get(h, "/metrics").Code)
}

func TestOpsRouter_NoAPI(t *testing.T) {
	h := OpsRouter(nil, nil)
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/v1/schedule").Code)
}
