// Package backend opens the store selected by STORE_BACKEND.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/tickersense/config"
	"github.com/spacesedan/tickersense/internal/clients"
	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/db/dynamodb"
	"github.com/spacesedan/tickersense/internal/db/memory"
	"github.com/spacesedan/tickersense/internal/db/postgres"
)

const (
	Postgres = "postgres"
	DynamoDB = "dynamodb"
	Memory   = "memory"
)

// Open returns a ready store. Schema migration or table creation runs when
// cfg.Migrate is set.
func Open(ctx context.Context, cfg config.StoreConfig) (db.Store, error) {
	switch cfg.Backend {
	case Postgres:
		store, err := postgres.Open(ctx, postgres.Options{
			DSN:      cfg.DatabaseURL,
			MaxConns: cfg.MaxConns,
			Migrate:  cfg.Migrate,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case DynamoDB:
		client, err := clients.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			return nil, err
		}
		store := dynamodb.New(client, cfg.TablePrefix)
		if cfg.Migrate {
			if err := store.EnsureTables(ctx); err != nil {
				return nil, err
			}
		}
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case Memory:
		slog.Warn("[Store] Using in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("[Store] unknown backend %q", cfg.Backend)
}
