package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/dnavault-client/internal/model"
)

// Ensure CredentialRepository implements the model.CredentialStore interface.
var _ model.CredentialStore = (*CredentialRepository)(nil)

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialRepository keeps the credential in a shared postgres table, so
// several machines of the same operator can share one session.
type CredentialRepository struct {
	db  querier
	key string
}

func NewCredentialRepository(db *Connection, key string) *CredentialRepository {
	return &CredentialRepository{db: db, key: key}
}

// WithKey returns a repository for another slot of the same table.
func (r *CredentialRepository) WithKey(key string) *CredentialRepository {
	return &CredentialRepository{db: r.db, key: key}
}

func (r *CredentialRepository) Load(ctx context.Context) (string, error) {
	const query = `
        SELECT value
        FROM credentials
        WHERE name = $1
    `
	var value string
	if err := r.db.QueryRow(ctx, query, r.key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return value, nil
}

func (r *CredentialRepository) Save(ctx context.Context, token string) error {
	const query = `
        INSERT INTO credentials (name, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `
	if _, err := r.db.Exec(ctx, query, r.key, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	const query = `
        DELETE FROM credentials
        WHERE name = $1
    `
	if _, err := r.db.Exec(ctx, query, r.key); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
