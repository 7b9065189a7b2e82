// Package sqlite stores the credential in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dtroode/dnavault-client/database"
	"github.com/dtroode/dnavault-client/internal/model"
)

// Ensure CredentialRepository implements the model.CredentialStore interface.
var _ model.CredentialStore = (*CredentialRepository)(nil)

type CredentialRepository struct {
	db        *sql.DB
	key       string
	writeLock *sync.Mutex // sqlite does not support concurrent writes
}

// Open opens (creating when needed) the database at path and applies migrations.
func Open(ctx context.Context, path, key string) (*CredentialRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := database.Migrate(ctx, db, database.DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return NewCredentialRepository(db, key), nil
}

func NewCredentialRepository(db *sql.DB, key string) *CredentialRepository {
	return &CredentialRepository{db: db, key: key, writeLock: new(sync.Mutex)}
}

// WithKey returns a repository for another slot of the same database.
func (r *CredentialRepository) WithKey(key string) *CredentialRepository {
	return &CredentialRepository{db: r.db, key: key, writeLock: r.writeLock}
}

func (r *CredentialRepository) Load(ctx context.Context) (string, error) {
	const query = `SELECT value FROM credentials WHERE name = ?`

	var value string
	if err := r.db.QueryRowContext(ctx, query, r.key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return value, nil
}

func (r *CredentialRepository) Save(ctx context.Context, token string) error {
	const query = `
        INSERT INTO credentials (name, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, query, r.key, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE name = ?`

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, query, r.key); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Close() error {
	return r.db.Close()
}
