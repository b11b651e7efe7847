package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sentinelproxy/sentinel/internal/metrics"
)

// Metrics records request counts and latency histograms for every request,
// keyed by route pattern rather than raw path so high-cardinality paths
// (session IDs) don't blow up the label set.
func Metrics(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := NewStreamingResponseWriter(w)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.StatusCode())).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
