// Package memory keeps the credential in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/dtroode/dnavault-client/internal/model"
)

var _ model.CredentialStore = (*CredentialRepository)(nil)

type CredentialRepository struct {
	mu    sync.RWMutex
	value string
	set   bool
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{}
}

func (r *CredentialRepository) Load(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.set {
		return "", model.ErrNotFound
	}
	return r.value, nil
}

func (r *CredentialRepository) Save(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value, r.set = token, true
	return nil
}

func (r *CredentialRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value, r.set = "", false
	return nil
}
