// Package admin serves the operator HTTP endpoints: liveness, readiness and
// Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Options configure the router. Nil checks and a nil Metrics handler are skipped.
type Options struct {
	Log     *zap.Logger
	Metrics http.Handler
	Checks  map[string]Checker
	Timeout time.Duration // per readiness probe, default 2s
}

// NewRouter builds the admin router.
func NewRouter(o Options) http.Handler {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(o))
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}
	return r
}

func readiness(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		out := make(map[string]string, len(o.Checks))
		code := http.StatusOK
		for name, check := range o.Checks {
			if check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(req.Context(), o.Timeout)
			err := check(ctx)
			cancel()
			if err != nil {
				o.Log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
				out[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		writeJSON(w, code, out)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
