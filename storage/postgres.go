package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	*repo
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	conn := &pgConn{pool: pool}
	store := &PostgresStore{repo: &repo{q: conn, begin: conn}, pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'active',
		listings_count INTEGER NOT NULL DEFAULT 0,
		requests_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		seller_id UUID NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL,
		listing_type TEXT NOT NULL,
		province TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL,
		attributes JSONB,
		features JSONB,
		ownership_type TEXT NOT NULL DEFAULT '',
		contact JSONB,
		photos JSONB,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		review_notes TEXT NOT NULL DEFAULT '',
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS property_requests (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		purpose TEXT NOT NULL,
		property_type TEXT NOT NULL,
		criteria JSONB,
		ranges JSONB,
		status TEXT NOT NULL DEFAULT 'pending',
		matches INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inquiries (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		request_id UUID NOT NULL REFERENCES property_requests(id),
		match_id UUID,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		has_matches BOOLEAN NOT NULL DEFAULT FALSE,
		matches_locked BOOLEAN NOT NULL DEFAULT FALSE,
		match_details JSONB,
		rejection_reason TEXT NOT NULL DEFAULT '',
		delivered_at TIMESTAMPTZ,
		last_event_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matched_properties (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES property_requests(id),
		property_id UUID NOT NULL REFERENCES listings(id),
		match_score INTEGER NOT NULL,
		breakdown JSONB,
		status TEXT NOT NULL DEFAULT 'locked',
		unlock_fee DOUBLE PRECISION,
		provider_ref TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ,
		approved_at TIMESTAMPTZ,
		unlocked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (request_id, property_id)
	);

	CREATE TABLE IF NOT EXISTS request_payments (
		request_id UUID PRIMARY KEY REFERENCES property_requests(id),
		status TEXT NOT NULL DEFAULT 'locked',
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		provider_ref TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ,
		approved_at TIMESTAMPTZ,
		unlocked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commands (
		id BIGSERIAL PRIMARY KEY,
		command TEXT,
		params JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		logged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		level TEXT,
		source TEXT,
		message TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_fingerprint ON listings(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, property_type, listing_type);
	CREATE INDEX IF NOT EXISTS idx_requests_user ON property_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON property_requests(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_inquiries_request ON inquiries(request_id) WHERE type = 'property_request';
	CREATE INDEX IF NOT EXISTS idx_inquiries_status ON inquiries(status);
	CREATE INDEX IF NOT EXISTS idx_matches_provider_ref ON matched_properties(provider_ref) WHERE provider_ref <> '';
	CREATE INDEX IF NOT EXISTS idx_payments_provider_ref ON request_payments(provider_ref) WHERE provider_ref <> '';
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_logged_at ON activity_logs(logged_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// rebind rewrites ? placeholders to $n
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgConn adapts the pool and pgx.Tx to the shared query layer
type pgConn struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (c *pgConn) target() pgExecutor {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

func (c *pgConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.target().Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return c.target().QueryRow(ctx, rebind(query), args...)
}

func (c *pgConn) query(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	rows, err := c.target().Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *pgConn) beginTx(ctx context.Context) (txQuerier, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgConn{pool: c.pool, tx: tx}, nil
}

func (c *pgConn) commit(ctx context.Context) error {
	return c.tx.Commit(ctx)
}

func (c *pgConn) rollback(ctx context.Context) error {
	return c.tx.Rollback(ctx)
}
