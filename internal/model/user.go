package model

import (
	"context"
	"encoding/json"
)

// DefaultCredentialKey names the durable slot holding the authentication credential.
const DefaultCredentialKey = "dnavault.credential"

// User is the payload returned by the session endpoint. Raw is the payload
// exactly as received; the typed fields are filled when they decode.
type User struct {
	ID        Scalar          `json:"id"`
	Username  string          `json:"username"`
	CreatedAt Scalar          `json:"createdAt"`
	Raw       json.RawMessage `json:"-"`
}

// CredentialStore persists the single authentication credential across restarts.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
