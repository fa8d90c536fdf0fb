package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attestor/internal/platform/metrics"
	"attestor/internal/platform/middleware"
	"attestor/pkg/platform/httputil"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Options configures the router.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.HTTP
	// Checks are run by /health; any failure reports 503.
	Checks map[string]Check
	// Info is echoed by /health, e.g. whether the recognizer is warm.
	Info func() map[string]any
}

// NewRouter wires the middleware stack, operational endpoints and module routes.
func NewRouter(opts Options, modules ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimw.RealIP)
	if opts.Logger != nil {
		r.Use(middleware.AccessLog(opts.Logger))
	}
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Get("/health", healthHandler(opts))
	r.Handle("/metrics", promhttp.Handler())

	for _, m := range modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Info   map[string]any    `json:"info,omitempty"`
}

func healthHandler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(opts.Checks) > 0 {
			resp.Checks = make(map[string]string, len(opts.Checks))
		}
		for name, check := range opts.Checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		if opts.Info != nil {
			resp.Info = opts.Info()
		}
		httputil.WriteJSON(w, status, resp)
	}
}
