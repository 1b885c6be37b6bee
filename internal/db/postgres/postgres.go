// Package postgres is the authoritative Store, backed by a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spacesedan/tickersense/internal/db"
)

//go:embed schema.sql
var schema string

var _ db.Store = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	now  func() time.Time
}

type Options struct {
	DSN      string
	MaxConns int32
	// Migrate applies the embedded schema after connecting.
	Migrate bool
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] unable to connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[Postgres] failed to ping: %w", err)
	}

	s := New(pool)
	if opts.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	slog.Info("[Postgres] Connected to PostgreSQL successfully",
		slog.Int("max_conns", int(cfg.MaxConns)))
	return s, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool, now: time.Now}
}

// Migrate creates tables, unique constraints and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("[Postgres] apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WithTx runs fn inside one database transaction. Calls made on a view that
// is already transactional join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx db.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{q: tx, now: s.now})
	})
}
