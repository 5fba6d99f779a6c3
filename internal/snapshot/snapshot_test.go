package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"modelcore/internal/config"
)

func testStoreVersioning(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v1, err := s.Save(ctx, "model", []byte("<element/>"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v1.Version != 1 || v1.Digest == "" || v1.Size != int64(len("<element/>")) {
		t.Fatalf("unexpected record: %+v", v1)
	}
	v2, err := s.Save(ctx, "model", []byte("<element rev=\"2\"/>"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v2.Version != 2 {
		t.Fatalf("expected version 2, got %d", v2.Version)
	}
	// Versions of other documents do not interleave.
	other, err := s.Save(ctx, "other", []byte("<x/>"))
	if err != nil || other.Version != 1 {
		t.Fatalf("save other: %+v (%v)", other, err)
	}

	latest, err := s.Load(ctx, "model")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if latest.Version != 2 || string(latest.Payload) != "<element rev=\"2\"/>" {
		t.Fatalf("unexpected latest: %+v", latest)
	}
	first, err := s.LoadVersion(ctx, "model", 1)
	if err != nil {
		t.Fatalf("load version: %v", err)
	}
	if string(first.Payload) != "<element/>" || first.Digest != v1.Digest {
		t.Fatalf("unexpected first version: %+v", first)
	}

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadVersion(ctx, "model", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Save(ctx, "", []byte("x")); err == nil {
		t.Fatal("empty name accepted")
	}

	versions, err := s.Versions(ctx, "model")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Fatalf("unexpected versions: %+v", versions)
	}
	for _, rec := range versions {
		if rec.Payload != nil {
			t.Fatal("version listing must not carry payloads")
		}
		if rec.Size == 0 || rec.Digest == "" {
			t.Fatalf("missing metadata: %+v", rec)
		}
	}
}

func testStorePruning(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Save(ctx, "doc", []byte("<element/>")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := s.Prune(ctx, "doc", -1); err == nil {
		t.Fatal("negative keep accepted")
	}
	if n, err := s.Prune(ctx, "doc", 10); err != nil || n != 0 {
		t.Fatalf("generous keep removed versions: %d (%v)", n, err)
	}
	n, err := s.Prune(ctx, "doc", 2)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 removed, got %d (%v)", n, err)
	}

	// The survivors keep their original version numbers.
	versions, err := s.Versions(ctx, "doc")
	if err != nil || len(versions) != 2 {
		t.Fatalf("unexpected survivors: %v (%v)", versions, err)
	}
	if versions[0].Version != 4 || versions[1].Version != 5 {
		t.Fatalf("version numbers shifted: %+v", versions)
	}
	if _, err := s.LoadVersion(ctx, "doc", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pruned version still loads: %v", err)
	}

	// Numbering continues past the pruned range.
	rec, err := s.Save(ctx, "doc", []byte("<element/>"))
	if err != nil || rec.Version != 6 {
		t.Fatalf("expected version 6 after prune, got %+v (%v)", rec, err)
	}

	// Other documents are untouched.
	if _, err := s.Save(ctx, "other", []byte("<x/>")); err != nil {
		t.Fatalf("save other: %v", err)
	}
	if n, err := s.Prune(ctx, "doc", 0); err != nil || n != 3 {
		t.Fatalf("keep zero should drop everything: %d (%v)", n, err)
	}
	if _, err := s.Load(ctx, "other"); err != nil {
		t.Fatalf("prune crossed documents: %v", err)
	}
}

func TestMemoryStoreVersioning(t *testing.T) {
	s := NewMemory()
	if s.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	testStoreVersioning(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryStorePruning(t *testing.T) {
	testStorePruning(t, NewMemory())
}

func TestSQLiteStorePruning(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "modelcore.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = s.Close() }()
	testStorePruning(t, s)
}

func TestMemoryStoreCopiesPayloads(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	payload := []byte("<element/>")
	if _, err := s.Save(ctx, "model", payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	payload[1] = 'X'
	rec, err := s.Load(ctx, "model")
	if err != nil || string(rec.Payload) != "<element/>" {
		t.Fatalf("stored payload aliased the caller's buffer: %q (%v)", rec.Payload, err)
	}
}

func TestSQLiteStoreVersioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "modelcore.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Driver() != DriverSQLite || s.Path() != path {
		t.Fatalf("unexpected store: driver=%s path=%s", s.Driver(), s.Path())
	}
	testStoreVersioning(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelcore.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Save(ctx, "model", []byte("<element/>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	rec, err := s.Load(ctx, "model")
	if err != nil || string(rec.Payload) != "<element/>" {
		t.Fatalf("lost snapshot across reopen: %+v (%v)", rec, err)
	}
	// Numbering continues where it left off.
	next, err := s.Save(ctx, "model", []byte("<element rev=\"2\"/>"))
	if err != nil || next.Version != 2 {
		t.Fatalf("unexpected version: %+v (%v)", next, err)
	}
}

func TestOpenWithSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := OpenWith(ctx, config.SnapshotConfig{Driver: "memory"})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("driver=%v err=%v", s, err)
	}

	s, err = OpenWith(ctx, config.SnapshotConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "m.db"),
	})
	if err != nil || s.Driver() != DriverSQLite {
		t.Fatalf("driver=%v err=%v", s, err)
	}
	_ = s.Close()

	if _, err := OpenWith(ctx, config.SnapshotConfig{Driver: "stone-tablet"}); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("MODELCORE_SNAPSHOT_DRIVER", "memory")
	s, err := Open(ctx)
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("driver=%v err=%v", s, err)
	}

	t.Setenv("MODELCORE_SNAPSHOT_DRIVER", "sqlite")
	t.Setenv("MODELCORE_SNAPSHOT_SQLITE_PATH", filepath.Join(t.TempDir(), "m.db"))
	s, err = Open(ctx)
	if err != nil || s.Driver() != DriverSQLite {
		t.Fatalf("driver=%v err=%v", s, err)
	}
	_ = s.Close()

	t.Setenv("MODELCORE_SNAPSHOT_DRIVER", "stone-tablet")
	if _, err := Open(ctx); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
