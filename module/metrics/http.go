package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
)

// NewHTTPMiddleware measures request durations, response sizes and inflight requests of the handlers it
// wraps, labelled with the given service.
func NewHTTPMiddleware(registerer prometheus.Registerer, service string) middleware.Middleware {
	return middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{
			Prefix:   namespaceLocalnet,
			Registry: registerer,
		}),
		Service: service,
	})
}
