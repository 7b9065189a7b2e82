// Package redis stores the credential under a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/dnavault-client/internal/model"
)

var _ model.CredentialStore = (*CredentialRepository)(nil)

// redisAPI is the part of *redis.Client the repository uses.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type CredentialRepository struct {
	client redisAPI
	key    string
	closer func() error
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options, key string) (*CredentialRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	repo := NewCredentialRepository(client, key)
	repo.closer = client.Close
	return repo, nil
}

func NewCredentialRepository(client redisAPI, key string) *CredentialRepository {
	return &CredentialRepository{client: client, key: key}
}

// WithKey returns a repository for another key on the same connection.
// Closing it does not close the connection.
func (r *CredentialRepository) WithKey(key string) *CredentialRepository {
	return &CredentialRepository{client: r.client, key: key}
}

func (r *CredentialRepository) Load(ctx context.Context) (string, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return value, nil
}

// Save stores the token without expiry; the server decides when it stops being valid.
func (r *CredentialRepository) Save(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
