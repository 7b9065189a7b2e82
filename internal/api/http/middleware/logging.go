package middleware

import (
	"net/http"
	"time"

	apictx "github.com/dtroode/dnavault-client/internal/api/http/context"
	"github.com/dtroode/dnavault-client/internal/logger"
)

// Logging logs outbound requests and their results.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Wrap logs operation, method, path, duration and status for each request.
func (l *Logging) Wrap(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		op := apictx.Operation(req.Context())

		l.logger.Debug("API request started",
			"operation", op,
			"method", req.Method,
			"path", req.URL.Path)

		resp, err := next.RoundTrip(req)
		duration := time.Since(start)

		if err != nil {
			l.logger.Warn("API request failed",
				"operation", op,
				"method", req.Method,
				"path", req.URL.Path,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error())
			return nil, err
		}

		l.logger.Debug("API request completed",
			"operation", op,
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", duration.Milliseconds(),
			"status", resp.StatusCode)

		return resp, nil
	})
}
