// Package snapshot persists versioned copies of serialized documents.
// Every save appends a new version under the document name; loads default
// to the newest one. Backends: in-memory, embedded SQLite and Postgres.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modelcore/internal/config"
)

// Driver identifies a concrete snapshot backend.
type Driver string

const (
	// DriverMemory keeps versions in process memory (tests, ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite stores versions in an embedded sqlite file (default).
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores versions in a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

// ErrNotFound reports a missing document or version.
var ErrNotFound = errors.New("snapshot: not found")

// Record is one stored document version.
type Record struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Digest    string    `json:"digest"` // hex sha256 of the payload
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Payload   []byte    `json:"-"`
}

// Store is the interface snapshot backends implement.
type Store interface {
	// Save appends payload as the next version of name.
	Save(ctx context.Context, name string, payload []byte) (Record, error)
	// Load returns the newest version of name.
	Load(ctx context.Context, name string) (Record, error)
	// LoadVersion returns one specific version of name.
	LoadVersion(ctx context.Context, name string, version int) (Record, error)
	// Versions lists the metadata of every version of name, oldest first,
	// without payloads.
	Versions(ctx context.Context, name string) ([]Record, error)
	// Prune deletes all but the newest keep versions of name and returns
	// how many were removed. Version numbers are never reused.
	Prune(ctx context.Context, name string, keep int) (int, error)
	// Close releases backend resources.
	Close() error
	Driver() Driver
}

// OpenWith selects a snapshot backend from explicit configuration.
func OpenWith(ctx context.Context, cfg config.SnapshotConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("snapshot: unknown driver %q", cfg.Driver)
	}
}

// Open selects a snapshot backend using environment variables. Defaults
// to sqlite when unset.
//
//	MODELCORE_SNAPSHOT_DRIVER: memory|sqlite|postgres (default sqlite)
//	MODELCORE_SNAPSHOT_SQLITE_PATH: sqlite file path (default ./modelcore.db)
//	MODELCORE_SNAPSHOT_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(ctx context.Context) (Store, error) {
	return OpenWith(ctx, config.FromEnv().Snapshot)
}
