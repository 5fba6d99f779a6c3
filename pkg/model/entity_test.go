package model

import (
	"errors"
	"testing"
)

func TestWrapDispatchesByDiscriminator(t *testing.T) {
	s, doc, root := testModel(t)
	comp := mustCreate(t, mustGet(t, root, "children"), "", Fields{"name": "A"})
	if comp.Type().Name != "Component" {
		t.Fatalf("expected Component, got %s", comp.Type().Name)
	}
	// Re-wrapping the same node yields an equal entity.
	again := s.Wrap(doc, comp.Node())
	if !again.Same(comp) {
		t.Fatal("wrapping the same node twice must compare equal")
	}
	// An unknown discriminator falls back to the root type.
	stray := doc.NewChild(doc.Root(), 0, "whatever")
	stray.SetAttr("type", "Mystery")
	if got := s.Wrap(doc, stray).Type().Name; got != RootTypeName {
		t.Fatalf("expected fallback type, got %s", got)
	}
}

func TestEntityIdentityIgnoresFields(t *testing.T) {
	_, _, root := testModel(t)
	children := mustGet(t, root, "children")
	a := mustCreate(t, children, "", Fields{"name": "Twin"})
	b := mustCreate(t, children, "", Fields{"name": "Twin"})
	if a.Same(b) {
		t.Fatal("distinct nodes with equal fields must not compare equal")
	}
	if !a.Same(a) {
		t.Fatal("an entity must equal itself")
	}
}

func TestCreateMissingRequiredField(t *testing.T) {
	_, doc, root := testModel(t)
	children := mustGet(t, root, "children")
	before := doc.Root().NumChildren()
	_, err := children.Create("", Fields{"kind": "widget"})
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "name" {
		t.Fatalf("unexpected missing set: %v", missing.Missing)
	}
	if doc.Root().NumChildren() != before {
		t.Fatal("no node may be created when required fields are missing")
	}
}

func TestCreateRollsBackOnFieldFailure(t *testing.T) {
	_, doc, root := testModel(t)
	children := mustGet(t, root, "children")
	target := mustCreate(t, children, "", Fields{"name": "T"})
	before := doc.Root().NumChildren()
	// "incoming" is a read-only backref; assigning it must fail and undo
	// the whole construction.
	_, err := children.Create("", Fields{
		"name":     "broken",
		"incoming": []Entity{target},
	})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported-operation, got %v", err)
	}
	if doc.Root().NumChildren() != before {
		t.Fatal("failed construction left a node behind")
	}
	if children.Len() != 1 {
		t.Fatalf("expected 1 child, got %d", children.Len())
	}
}

func TestCreateWithRequestedID(t *testing.T) {
	_, doc, root := testModel(t)
	children := mustGet(t, root, "children")
	e := mustCreate(t, children, "", Fields{"name": "A", "id": "fixed-id"})
	if e.UUID() != "fixed-id" {
		t.Fatalf("unexpected id %q", e.UUID())
	}
	if _, err := children.Create("", Fields{"name": "B", "id": "fixed-id"}); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	if n, ok := doc.ByID("fixed-id"); !ok || n != e.Node() {
		t.Fatal("requested id not indexed")
	}
}

func TestTypeHintResolution(t *testing.T) {
	_, _, root := testModel(t)
	comp := mustCreate(t, mustGet(t, root, "children"), "", Fields{"name": "A"})
	ports := mustGet(t, comp, "ports")

	// Empty hint on a concrete base resolves to the base.
	p := mustCreate(t, ports, "", Fields{})
	if p.Type().Name != "Port" {
		t.Fatalf("expected Port, got %s", p.Type().Name)
	}
	// A hint selects the subtype case-insensitively.
	fp := mustCreate(t, ports, "flowport", Fields{})
	if fp.Type().Name != "FlowPort" {
		t.Fatalf("expected FlowPort, got %s", fp.Type().Name)
	}
	// An unknown hint is an error carrying zero candidates.
	_, err := ports.Create("bogus", Fields{})
	var hintErr *TypeHintError
	if !errors.As(err, &hintErr) {
		t.Fatalf("expected TypeHintError, got %v", err)
	}
	if len(hintErr.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", hintErr.Candidates)
	}
}

func TestGetSingleAndParentView(t *testing.T) {
	_, _, root := testModel(t)
	comp := mustCreate(t, mustGet(t, root, "children"), "", Fields{"name": "A"})
	parent, ok, err := comp.GetSingle("container")
	if err != nil || !ok {
		t.Fatalf("parent lookup: ok=%v err=%v", ok, err)
	}
	if !parent.Same(root) {
		t.Fatal("parent view must yield the containing package")
	}
}

func TestUnknownFieldErrors(t *testing.T) {
	_, _, root := testModel(t)
	if _, err := root.Get("nope"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err := root.Set("nope", nil); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
