// Package metrics records outbound API calls with Prometheus collectors.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeClientError    = "client_error"
	OutcomeServerError    = "server_error"
	OutcomeTransportError = "transport_error"
)

// Client holds the collectors of the API client.
type Client struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewClient creates the collectors and registers them with reg.
func NewClient(reg prometheus.Registerer) (*Client, error) {
	c := &Client{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dnavault",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dnavault",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return c, nil
}

// Observe records one finished request.
func (c *Client) Observe(operation, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// OutcomeFor maps a response status, or a transport error, to an outcome label.
func OutcomeFor(status int, err error) string {
	switch {
	case err != nil:
		return OutcomeTransportError
	case status >= http.StatusInternalServerError:
		return OutcomeServerError
	case status >= http.StatusBadRequest:
		return OutcomeClientError
	default:
		return OutcomeOK
	}
}

// WriteTextfile writes every metric of g to path in the text exposition format,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
