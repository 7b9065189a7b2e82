package middleware

import (
	"net/http"
	"time"

	apictx "github.com/dtroode/dnavault-client/internal/api/http/context"
	"github.com/dtroode/dnavault-client/internal/metrics"
)

// Instrument returns a middleware recording each request in m.
func Instrument(m *metrics.Client) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			m.Observe(apictx.Operation(req.Context()), metrics.OutcomeFor(status, err), time.Since(start))

			return resp, err
		})
	}
}
