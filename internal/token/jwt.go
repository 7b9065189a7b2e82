package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/dnavault-client/internal/model"
)

// ErrOpaque is returned for credentials that are not JWTs.
var ErrOpaque = errors.New("credential is not a jwt")

// Claims represents the claims the dnavault server puts in its session tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Inspector decodes credential claims without verifying the signature.
// The client does not hold the server's key; the server remains the authority.
type Inspector struct {
	parser *jwt.Parser
}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{parser: jwt.NewParser()}
}

// Status describes token without trusting it.
func (i *Inspector) Status(token string) (model.CredentialStatus, error) {
	if token == "" {
		return model.CredentialStatus{}, nil
	}

	status := model.CredentialStatus{Stored: true}
	if strings.Count(token, ".") != 2 {
		status.Opaque = true
		return status, ErrOpaque
	}

	claims := &Claims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		status.Opaque = true
		return status, fmt.Errorf("%w: %w", ErrOpaque, err)
	}

	status.Subject = subject(claims)
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		status.ExpiresAt = &exp
	}

	return status, nil
}

// Expired reports whether token is a JWT whose expiry has passed at now.
// Opaque tokens never count as expired.
func (i *Inspector) Expired(token string, now time.Time) bool {
	status, err := i.Status(token)
	if err != nil {
		return false
	}
	return status.Expired(now)
}

func subject(c *Claims) string {
	switch {
	case c.Username != "":
		return c.Username
	case c.Subject != "":
		return c.Subject
	default:
		return c.UserID
	}
}
