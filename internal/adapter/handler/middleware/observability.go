package middleware

import (
	"net/http"
	"time"

	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
)

// knownRoutes is the fixed route set exposed by the router. Anything
// else collapses to "other" so scanner noise cannot blow up the
// http.route label cardinality.
var knownRoutes = map[string]bool{
	"/webhook/slack/events": true,
	"/health":               true,
	"/ready":                true,
	"/stats":                true,
	"/metrics":              true,
	"/-/reload":             true,
	"/":                     true,
}

// Observability records HTTP metrics for requests.
func Observability(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			metrics.HTTPRequestsActive.Add(r.Context(), 1)
			defer metrics.HTTPRequestsActive.Add(r.Context(), -1)

			// Wrap response writer to capture status code
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if !knownRoutes[route] {
				route = "other"
			}

			metrics.RecordHTTPRequest(
				r.Context(),
				r.Method,
				route,
				rw.statusCode,
				time.Since(start),
			)
		})
	}
}
