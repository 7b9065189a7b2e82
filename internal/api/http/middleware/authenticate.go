package middleware

import (
	"errors"
	"net/http"

	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
)

// Authenticate attaches the stored credential as a bearer token.
type Authenticate struct {
	store  model.CredentialStore
	logger *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware.
func NewAuthenticate(store model.CredentialStore, logger *logger.Logger) *Authenticate {
	return &Authenticate{store: store, logger: logger}
}

// Wrap sets the Authorization header unless the request already carries one.
// Requests go out anonymous when no credential is stored or it cannot be read.
func (m *Authenticate) Wrap(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "" {
			return next.RoundTrip(req)
		}

		token, err := m.store.Load(req.Context())
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				m.logger.Warn("Authenticate middleware: failed to load credential",
					"error", err.Error())
			}
			return next.RoundTrip(req)
		}
		if token == "" {
			return next.RoundTrip(req)
		}

		authed := req.Clone(req.Context())
		authed.Header.Set("Authorization", "Bearer "+token)
		return next.RoundTrip(authed)
	})
}
