package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"modelcore/internal/blob"
	"modelcore/internal/snapshot"
	"modelcore/pkg/model"
)

func testSchema() *model.Schema {
	s := model.NewSchema()
	pkg := model.NewType("Package", "packages")
	pkg.Define("children", &model.Containment{
		RoleTag: "ownedElements",
		Class:   "Component",
		Options: model.Options{MapKey: "name"},
	})
	s.MustRegister(pkg)
	pkg.Define("links", &model.Containment{RoleTag: "ownedLinks", Class: "Link"})
	comp := model.NewType("Component", "ownedElements")
	comp.Define("uses", &model.Association{Attr: "uses", Class: "Component"})
	s.MustRegister(comp)
	link := model.NewType("Link", "ownedLinks")
	link.Define("ends", &model.Association{
		Attr:    "ends",
		Class:   "Component",
		Options: model.Options{FixedLength: 2},
	})
	s.MustRegister(link)
	return s
}

type opRecord struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu  sync.Mutex
	ops []opRecord
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.ops = append(c.ops, opRecord{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.ops {
		if rec.op == op && rec.success == success {
			return true
		}
	}
	return false
}

func addComponent(t *testing.T, root model.Entity, name string) model.Entity {
	t.Helper()
	children, err := root.Get("children")
	if err != nil {
		t.Fatalf("get children: %v", err)
	}
	e, err := children.Create("", model.Fields{"name": name})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return e
}

func TestNewDocumentSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := New(testSchema())

	root, err := svc.NewDocument(ctx, "m", "Package")
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	a := addComponent(t, root, "A")
	b := addComponent(t, root, "B")
	if err := a.Set("uses", []model.Entity{b}); err != nil {
		t.Fatalf("set uses: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Save(ctx, "m", &buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(buf.String(), "ownedElements") {
		t.Fatalf("unexpected serialization:\n%s", buf.String())
	}

	root2, err := svc.Load(ctx, "m2", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	children, err := root2.Get("children")
	if err != nil {
		t.Fatalf("get children: %v", err)
	}
	if children.Len() != 2 {
		t.Fatalf("expected 2 children after round trip, got %d", children.Len())
	}
	reloaded, err := children.ByKey("A")
	if err != nil {
		t.Fatalf("by key: %v", err)
	}
	uses, err := reloaded.Get("uses")
	if err != nil || uses.Len() != 1 || uses.At(0).Name() != "B" {
		t.Fatalf("association lost in round trip: %v (%v)", uses, err)
	}
}

func TestDocumentRegistry(t *testing.T) {
	ctx := context.Background()
	svc := New(testSchema())
	if _, err := svc.NewDocument(ctx, "m", "Package"); err != nil {
		t.Fatalf("new document: %v", err)
	}
	if _, err := svc.NewDocument(ctx, "m", "Package"); err == nil {
		t.Fatal("duplicate name accepted")
	}
	if _, err := svc.NewDocument(ctx, "", "Package"); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := svc.NewDocument(ctx, "x", "Nothing"); err == nil {
		t.Fatal("unknown type accepted")
	}
	if _, err := svc.Root("missing"); err == nil {
		t.Fatal("missing document resolved")
	}
	if got := svc.Names(); len(got) != 1 || got[0] != "m" {
		t.Fatalf("unexpected names: %v", got)
	}
	if !svc.Drop("m") || svc.Drop("m") {
		t.Fatal("drop bookkeeping wrong")
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	svc := New(testSchema(),
		WithSnapshots(snapshot.NewMemory()),
		WithMetrics(metrics),
	)

	root, err := svc.NewDocument(ctx, "m", "Package")
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	addComponent(t, root, "A")
	rec, err := svc.Snapshot(ctx, "m")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("unexpected version %d", rec.Version)
	}

	addComponent(t, root, "B")
	if _, err := svc.Snapshot(ctx, "m"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Restoring version 1 rolls the document back to a single child.
	restored, err := svc.Restore(ctx, "m", 1)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	children, err := restored.Get("children")
	if err != nil || children.Len() != 1 {
		t.Fatalf("expected 1 child after restore, got %v (%v)", children, err)
	}

	// Restoring the newest version brings the second child back.
	restored, err = svc.Restore(ctx, "m", 0)
	if err != nil {
		t.Fatalf("restore latest: %v", err)
	}
	children, err = restored.Get("children")
	if err != nil || children.Len() != 2 {
		t.Fatalf("expected 2 children after restore, got %v (%v)", children, err)
	}

	if !metrics.has("snapshot", true) || !metrics.has("restore", true) {
		t.Fatalf("operations not observed: %+v", metrics.ops)
	}
}

func TestSnapshotWithoutStore(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	svc := New(testSchema(), WithMetrics(metrics))
	if _, err := svc.NewDocument(ctx, "m", "Package"); err != nil {
		t.Fatalf("new document: %v", err)
	}
	if _, err := svc.Snapshot(ctx, "m"); err == nil {
		t.Fatal("snapshot without a store succeeded")
	}
	if _, err := svc.Restore(ctx, "m", 0); err == nil {
		t.Fatal("restore without a store succeeded")
	}
	if !metrics.has("snapshot", false) || !metrics.has("restore", false) {
		t.Fatalf("failures not observed: %+v", metrics.ops)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	archive := blob.NewMemory()
	svc := New(testSchema(), WithBlobs(archive))

	root, err := svc.NewDocument(ctx, "m", "Package")
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	addComponent(t, root, "A")

	info, err := svc.Export(ctx, "m", "exports/m.xml")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.ContentType != "application/xml" || info.Metadata["document"] != "m" {
		t.Fatalf("unexpected archive info: %+v", info)
	}

	var want bytes.Buffer
	if err := svc.Save(ctx, "m", &want); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, rc, err := archive.Get(ctx, "exports/m.xml")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	var got bytes.Buffer
	if _, err := got.ReadFrom(rc); err != nil {
		t.Fatalf("read archive: %v", err)
	}
	_ = rc.Close()
	if got.String() != want.String() {
		t.Fatal("archived content differs from serialization")
	}

	svc2 := New(testSchema())
	if _, err := svc2.Export(ctx, "m", "k"); err == nil {
		t.Fatal("export without an archive store succeeded")
	}
}
