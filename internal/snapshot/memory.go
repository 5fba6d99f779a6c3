package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Record
}

// NewMemory returns an empty in-memory snapshot store.
func NewMemory() *MemoryStore { return &MemoryStore{docs: make(map[string][]Record)} }

// Driver returns the driver identifier.
func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) Save(_ context.Context, name string, payload []byte) (Record, error) {
	if name == "" {
		return Record{}, fmt.Errorf("snapshot: empty document name")
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 1
	if versions := s.docs[name]; len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	rec := Record{
		Name:      name,
		Version:   next,
		Digest:    hex.EncodeToString(sum[:]),
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
		Payload:   data,
	}
	s.docs[name] = append(s.docs[name], rec)
	return rec, nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.docs[name]
	if len(versions) == 0 {
		return Record{}, fmt.Errorf("snapshot: document %s: %w", name, ErrNotFound)
	}
	return copyRecord(versions[len(versions)-1]), nil
}

func (s *MemoryStore) LoadVersion(_ context.Context, name string, version int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.docs[name] {
		if rec.Version == version {
			return copyRecord(rec), nil
		}
	}
	return Record{}, fmt.Errorf("snapshot: document %s version %d: %w", name, version, ErrNotFound)
}

func (s *MemoryStore) Versions(_ context.Context, name string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.docs[name]))
	for _, rec := range s.docs[name] {
		rec.Payload = nil
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, name string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("snapshot: negative keep count %d", keep)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.docs[name]
	if len(versions) <= keep {
		return 0, nil
	}
	removed := len(versions) - keep
	s.docs[name] = versions[removed:]
	return removed, nil
}

// Close is a no-op for the memory driver.
func (s *MemoryStore) Close() error { return nil }

func copyRecord(rec Record) Record {
	data := make([]byte, len(rec.Payload))
	copy(data, rec.Payload)
	rec.Payload = data
	return rec
}
