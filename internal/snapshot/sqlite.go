package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore implements Store on an embedded sqlite file.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLite opens (and creates if needed) the snapshot database at path.
// An empty path defaults to ./modelcore.db.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "modelcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("snapshot: create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		digest TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (name, version)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: create table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Driver returns the driver identifier.
func (s *SQLiteStore) Driver() Driver { return DriverSQLite }

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Save(ctx context.Context, name string, payload []byte) (Record, error) {
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
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE name = ?`, name,
	).Scan(&rec.Version); err != nil {
		return Record{}, fmt.Errorf("snapshot: next version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots(name, version, digest, payload, created_at) VALUES(?, ?, ?, ?, ?)`,
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

func (s *SQLiteStore) Load(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, digest, payload, created_at FROM snapshots
		 WHERE name = ? ORDER BY version DESC LIMIT 1`, name)
	return scanRecord(row, name, 0)
}

func (s *SQLiteStore) LoadVersion(ctx context.Context, name string, version int) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, digest, payload, created_at FROM snapshots
		 WHERE name = ? AND version = ?`, name, version)
	return scanRecord(row, name, version)
}

func (s *SQLiteStore) Versions(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, digest, length(payload), created_at FROM snapshots
		 WHERE name = ? ORDER BY version ASC`, name)
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
func (s *SQLiteStore) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("snapshot: negative keep count %d", keep)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE name = ? AND version <=
		 (SELECT COALESCE(MAX(version), 0) FROM snapshots WHERE name = ?) - ?`,
		name, name, keep)
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
func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanRecord(row *sql.Row, name string, version int) (Record, error) {
	var rec Record
	err := row.Scan(&rec.Name, &rec.Version, &rec.Digest, &rec.Payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if version > 0 {
			return Record{}, fmt.Errorf("snapshot: document %s version %d: %w", name, version, ErrNotFound)
		}
		return Record{}, fmt.Errorf("snapshot: document %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: scan: %w", err)
	}
	rec.Size = int64(len(rec.Payload))
	return rec, nil
}
