package xdoc

import (
	"errors"
	"testing"
)

func buildTestDoc(t *testing.T) *Document {
	t.Helper()
	d := New("Model")
	a := d.NewChild(d.Root(), 0, "ownedElements")
	a.SetAttr(AttrID, "aaa")
	a.SetAttr(AttrType, "Component")
	b := d.NewChild(d.Root(), 1, "ownedElements")
	b.SetAttr(AttrID, "bbb")
	b.SetAttr(AttrType, "Component")
	c := d.NewChild(a, 0, "ownedPorts")
	c.SetAttr(AttrID, "ccc")
	c.SetAttr(AttrType, "Port")
	for _, n := range []*Node{a, b, c} {
		if err := d.IndexID(n); err != nil {
			t.Fatalf("index %s: %v", n.ID(), err)
		}
	}
	return d
}

func TestAllocateIDUnique(t *testing.T) {
	d := buildTestDoc(t)
	id, err := d.AllocateID("")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	if _, err := d.AllocateID("aaa"); err == nil {
		t.Fatal("expected error for taken id")
	}
	if got, err := d.AllocateID("fresh"); err != nil || got != "fresh" {
		t.Fatalf("requested id: got %q, %v", got, err)
	}
}

func TestChildrenAndDescendants(t *testing.T) {
	d := buildTestDoc(t)
	kids := d.ChildrenOfType(d.Root(), "ownedElements")
	if len(kids) != 2 || kids[0].ID() != "aaa" || kids[1].ID() != "bbb" {
		t.Fatalf("unexpected children: %v", ids(kids))
	}
	all := d.DescendantsOfType(d.Root())
	if len(all) != 3 {
		t.Fatalf("expected 3 descendants, got %d", len(all))
	}
	ports := d.DescendantsOfType(d.Root(), "ownedPorts")
	if len(ports) != 1 || ports[0].ID() != "ccc" {
		t.Fatalf("unexpected ports: %v", ids(ports))
	}
}

func TestLinkRoundTrip(t *testing.T) {
	d := buildTestDoc(t)
	a, _ := d.ByID("aaa")
	b, _ := d.ByID("bbb")
	link := d.MakeLink(a, b)
	if link != "#bbb" {
		t.Fatalf("unexpected link %q", link)
	}
	got, err := d.ResolveLink(a, link)
	if err != nil || got != b {
		t.Fatalf("resolve: %v, %v", got, err)
	}
	// A type-qualified link resolves the same way.
	got, err = d.ResolveLink(a, "ns:Component#bbb")
	if err != nil || got != b {
		t.Fatalf("qualified resolve: %v, %v", got, err)
	}
}

func TestResolveLinksBroken(t *testing.T) {
	d := buildTestDoc(t)
	a, _ := d.ByID("aaa")
	if _, err := d.ResolveLinks(a, "#bbb #gone", false); !errors.Is(err, ErrBrokenLink) {
		t.Fatalf("expected ErrBrokenLink, got %v", err)
	}
	out, err := d.ResolveLinks(a, "#bbb #gone #ccc", true)
	if err != nil {
		t.Fatalf("ignoreBroken: %v", err)
	}
	if len(out) != 2 || out[0].ID() != "bbb" || out[1].ID() != "ccc" {
		t.Fatalf("unexpected resolution: %v", ids(out))
	}
}

func TestDetachRetiresSubtreeIDs(t *testing.T) {
	d := buildTestDoc(t)
	a, _ := d.ByID("aaa")
	if err := d.Detach(a); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if _, ok := d.ByID("aaa"); ok {
		t.Fatal("aaa still indexed")
	}
	if _, ok := d.ByID("ccc"); ok {
		t.Fatal("nested ccc still indexed")
	}
	if _, ok := d.ByID("bbb"); !ok {
		t.Fatal("bbb should remain indexed")
	}
	if err := d.Detach(a); err == nil {
		t.Fatal("expected error detaching twice")
	}
	if err := d.Detach(d.Root()); err == nil {
		t.Fatal("expected error detaching root")
	}
}

func TestMoveChildReindexesPosition(t *testing.T) {
	d := buildTestDoc(t)
	a, _ := d.ByID("aaa")
	b, _ := d.ByID("bbb")
	// Move a after b within the same parent.
	d.MoveChild(d.Root(), 2, a)
	kids := d.Root().Children()
	if kids[0] != b || kids[1] != a {
		t.Fatalf("unexpected order: %v", ids(kids))
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}
