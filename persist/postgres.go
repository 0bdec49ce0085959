package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps blobs in a single key/blob table.
type PostgresStore struct {
	db    pgQuerier
	table string
}

func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	return newPostgresStore(pool, table)
}

func newPostgresStore(db pgQuerier, table string) *PostgresStore {
	if table == "" {
		table = "auction_snapshots"
	}
	return &PostgresStore{db: db, table: table}
}

// NewPostgresPool connects to dsn and pings the server.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			blob       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pgx.Identifier{p.table}.Sanitize())
	if _, err := p.db.Exec(ctx, q); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT blob FROM %s WHERE key = $1`, pgx.Identifier{p.table}.Sanitize())
	var blob []byte
	if err := p.db.QueryRow(ctx, q, key).Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("select snapshot %s: %w", key, err)
	}
	return blob, nil
}

func (p *PostgresStore) Put(ctx context.Context, key string, blob []byte) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (key, blob, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		pgx.Identifier{p.table}.Sanitize())
	if _, err := p.db.Exec(ctx, q, key, blob); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, pgx.Identifier{p.table}.Sanitize())
	if _, err := p.db.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}
