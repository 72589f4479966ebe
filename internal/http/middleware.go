package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fusionguard/recommender/internal/metrics"
)

// NewRouter builds the service router with the API mounted at the root.
func NewRouter(api *API) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	api.Register(r)
	return r
}

// instrument records request counts and latency keyed by route pattern so
// path parameters do not explode label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.APIRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.APILatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
