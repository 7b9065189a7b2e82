package main

import (
	"context"
	"fmt"

	"github.com/dtroode/dnavault-client/internal/config"
	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/repository/memory"
	"github.com/dtroode/dnavault-client/internal/repository/postgres"
	"github.com/dtroode/dnavault-client/internal/repository/redis"
	"github.com/dtroode/dnavault-client/internal/repository/sqlite"
)

// credentialStores are the durable slots of one backend: the bearer
// credential and the API host's session cookies.
type credentialStores struct {
	token   model.CredentialStore
	cookies model.CredentialStore
	close   func() error
}

// openCredentialStores opens the configured credential backend. close
// releases its connections.
func openCredentialStores(ctx context.Context, cfg config.Credential) (credentialStores, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.Key)
		if err != nil {
			return credentialStores{}, fmt.Errorf("failed to open sqlite credential store: %w", err)
		}
		return credentialStores{token: repo, cookies: repo.WithKey(cfg.CookieKey), close: repo.Close}, nil

	case config.BackendPostgres:
		db, err := postgres.NewConection(ctx, cfg.PostgresDSN)
		if err != nil {
			return credentialStores{}, fmt.Errorf("failed to open postgres credential store: %w", err)
		}
		repo := postgres.NewCredentialRepository(db, cfg.Key)
		return credentialStores{token: repo, cookies: repo.WithKey(cfg.CookieKey), close: db.Close}, nil

	case config.BackendRedis:
		repo, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.Key)
		if err != nil {
			return credentialStores{}, fmt.Errorf("failed to open redis credential store: %w", err)
		}
		return credentialStores{token: repo, cookies: repo.WithKey(cfg.CookieKey), close: repo.Close}, nil

	case config.BackendMemory:
		return credentialStores{
			token:   memory.NewCredentialRepository(),
			cookies: memory.NewCredentialRepository(),
			close:   func() error { return nil },
		}, nil

	default:
		return credentialStores{}, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}
