// Package exporters turns the collected feed metrics into outbound
// surfaces: the Prometheus scrape endpoint and the periodic telemetry
// events behind the SSE stream.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the handler for GET /metrics. All promauto-registered
// collectors are picked up automatically.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
