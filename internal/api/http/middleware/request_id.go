package middleware

import (
	"net/http"

	apictx "github.com/dtroode/dnavault-client/internal/api/http/context"
)

// RequestID stamps every request with an X-Request-ID taken from the context
// or freshly generated.
func RequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(RequestIDHeader) != "" {
			return next.RoundTrip(req)
		}

		ctx, id := apictx.EnsureRequestID(req.Context())
		stamped := req.Clone(ctx)
		stamped.Header.Set(RequestIDHeader, id.String())
		return next.RoundTrip(stamped)
	})
}
