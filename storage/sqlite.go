package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	*repo
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	conn := &sqliteConn{db: db}
	store := &SQLiteStore{repo: &repo{q: conn, begin: conn}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'active',
		listings_count INTEGER NOT NULL DEFAULT 0,
		requests_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL,
		listing_type TEXT NOT NULL,
		province TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL,
		attributes JSON,
		features JSON,
		ownership_type TEXT NOT NULL DEFAULT '',
		contact JSON,
		photos JSON,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		review_notes TEXT NOT NULL DEFAULT '',
		reviewed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS property_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		purpose TEXT NOT NULL,
		property_type TEXT NOT NULL,
		criteria JSON,
		ranges JSON,
		status TEXT NOT NULL DEFAULT 'pending',
		matches INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inquiries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		request_id TEXT NOT NULL REFERENCES property_requests(id),
		match_id TEXT,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		has_matches BOOLEAN NOT NULL DEFAULT FALSE,
		matches_locked BOOLEAN NOT NULL DEFAULT FALSE,
		match_details JSON,
		rejection_reason TEXT NOT NULL DEFAULT '',
		delivered_at DATETIME,
		last_event_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matched_properties (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES property_requests(id),
		property_id TEXT NOT NULL REFERENCES listings(id),
		match_score INTEGER NOT NULL,
		breakdown JSON,
		status TEXT NOT NULL DEFAULT 'locked',
		unlock_fee REAL,
		provider_ref TEXT NOT NULL DEFAULT '',
		paid_at DATETIME,
		approved_at DATETIME,
		unlocked_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(request_id, property_id)
	);

	CREATE TABLE IF NOT EXISTS request_payments (
		request_id TEXT PRIMARY KEY REFERENCES property_requests(id),
		status TEXT NOT NULL DEFAULT 'locked',
		amount REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		provider_ref TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		paid_at DATETIME,
		approved_at DATETIME,
		unlocked_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY,
		logged_at DATETIME,
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
	CREATE INDEX IF NOT EXISTS idx_matches_provider_ref ON matched_properties(provider_ref) WHERE provider_ref != '';
	CREATE INDEX IF NOT EXISTS idx_payments_provider_ref ON request_payments(provider_ref) WHERE provider_ref != '';
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON activity_logs(logged_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// sqliteConn adapts *sql.DB and *sql.Tx to the shared query layer
type sqliteConn struct {
	db *sql.DB
	tx *sql.Tx
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *sqliteConn) target() execQuerier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

func (c *sqliteConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.target().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (c *sqliteConn) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return c.target().QueryRowContext(ctx, query, args...)
}

func (c *sqliteConn) query(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	rows, err := c.target().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c *sqliteConn) beginTx(ctx context.Context) (txQuerier, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteConn{db: c.db, tx: tx}, nil
}

func (c *sqliteConn) commit(context.Context) error {
	return c.tx.Commit()
}

func (c *sqliteConn) rollback(context.Context) error {
	return c.tx.Rollback()
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	r.Rows.Close()
}
