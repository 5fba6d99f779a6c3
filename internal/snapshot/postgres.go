package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	defaultDSN     = "postgres://localhost/modelcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore implements Store on a PostgreSQL server.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPostgres opens a Postgres-backed snapshot store using the given DSN
// (falls back to a localhost default) and ensures the snapshot table.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("snapshot: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		digest TEXT NOT NULL,
		payload BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (name, version)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: create table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Driver returns the driver identifier.
func (s *PostgresStore) Driver() Driver { return DriverPostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Save(ctx context.Context, name string, payload []byte) (Record, error) {
	if name == "" {
		return Record{}, fmt.Errorf("snapshot: empty document name")
	}
	sum := sha256.Sum256(payload)
	rec := Record{
		Name:      name,
		Digest:    hex.EncodeToString(sum[:]),
		Size:      int64(len(payload)),
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE name = $1`, name,
	).Scan(&rec.Version); err != nil {
		return Record{}, fmt.Errorf("snapshot: next version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(name, version, digest, payload, created_at) VALUES($1, $2, $3, $4, $5)`,
		rec.Name, rec.Version, rec.Digest, rec.Payload, rec.CreatedAt,
	); err != nil {
		return Record{}, fmt.Errorf("snapshot: insert %s v%d: %w", rec.Name, rec.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("snapshot: commit: %w", err)
	}
	committed = true
	return rec, nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, digest, payload, created_at FROM snapshots
		 WHERE name = $1 ORDER BY version DESC LIMIT 1`, name)
	return scanRecord(row, name, 0)
}

func (s *PostgresStore) LoadVersion(ctx context.Context, name string, version int) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, digest, payload, created_at FROM snapshots
		 WHERE name = $1 AND version = $2`, name, version)
	return scanRecord(row, name, version)
}

func (s *PostgresStore) Versions(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, digest, length(payload), created_at FROM snapshots
		 WHERE name = $1 ORDER BY version ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: select versions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.Version, &rec.Digest, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate: %w", err)
	}
	return out, nil
}

// Prune keeps only the newest keep versions. Only the oldest versions are
// ever removed, so the remaining version numbers stay contiguous.
func (s *PostgresStore) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("snapshot: negative keep count %d", keep)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE name = $1 AND version <=
		 (SELECT COALESCE(MAX(version), 0) FROM snapshots WHERE name = $1) - $2`,
		name, keep)
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune %s: %w", name, err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *PostgresStore) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sql.Open function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
