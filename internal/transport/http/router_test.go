package httptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"attestor/pkg/requestcontext"
)

type pingModule struct{}

func (pingModule) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.RequestID(r.Context())))
	})
}

func TestHealth(t *testing.T) {
	t.Run("ok without checks", func(t *testing.T) {
		h := NewRouter(Options{Info: func() map[string]any { return map[string]any{"ocr_ready": false} }})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"ok"`)
		assert.Contains(t, rr.Body.String(), `"ocr_ready":false`)
	})

	t.Run("failing check degrades", func(t *testing.T) {
		h := NewRouter(Options{Checks: map[string]Check{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "connection refused")
	})
}

func TestModulesSeeRequestID(t *testing.T) {
	h := NewRouter(Options{}, pingModule{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}
