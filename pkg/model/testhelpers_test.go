package model

import (
	"testing"

	"modelcore/pkg/xdoc"
)

// testSchema declares a small component/port metamodel exercising every
// relationship kind.
func testSchema(opts ...SchemaOption) *Schema {
	s := NewSchema(opts...)

	pkg := NewType("Package", "packages")
	pkg.Define("children", &Containment{
		RoleTag: "ownedElements",
		Class:   "Component",
		Options: Options{MapKey: "name"},
	})
	pkg.Define("subpackages", &Containment{RoleTag: "ownedPackages", Class: "Package"})
	pkg.Define("links", &Containment{RoleTag: "ownedLinks", Class: "Link"})
	s.MustRegister(pkg)

	comp := NewType("Component", "ownedElements")
	comp.Required = []string{"name"}
	comp.Define("ports", &Containment{RoleTag: "ownedPorts", Class: "Port"})
	comp.Define("refs", &Allocation{
		Tag:       "allocations",
		AllocType: "ComponentAllocation",
		Class:     "Component",
		Attr:      "target",
		BackAttr:  "source",
		Unique:    true,
	})
	comp.Define("uses", &Association{Attr: "uses", Class: "Component"})
	comp.Define("incoming", &Backref{Class: "Component", Attrs: []string{"refs"}})
	comp.Define("users", &Backref{Class: "Component", Attrs: []string{"uses"}})
	comp.Define("container", &Parent{})
	comp.Define("firstPort", &Index{Wrapped: "ports", Position: 0})
	comp.Define("flowPorts", &Typecast{Wrapped: "ports", Class: "FlowPort"})
	comp.Define("elements", &Alias{Target: "ports", Deprecated: "elements"})
	s.MustRegister(comp)

	port := NewType("Port", "ownedPorts")
	s.MustRegister(port)

	flow := NewType("FlowPort", "ownedPorts")
	flow.Parent = "Port"
	s.MustRegister(flow)

	link := NewType("Link", "ownedLinks")
	link.Define("ends", &Association{
		Attr:    "ends",
		Class:   "Port",
		Options: Options{FixedLength: 2},
	})
	s.MustRegister(link)

	alloc := NewType("ComponentAllocation", "allocations")
	s.MustRegister(alloc)

	return s
}

// testModel builds a schema and a document whose root is a Package.
func testModel(t *testing.T, opts ...SchemaOption) (*Schema, *xdoc.Document, Entity) {
	t.Helper()
	s := testSchema(opts...)
	doc := xdoc.New("packages")
	doc.Root().SetAttr(xdoc.AttrID, "root")
	doc.Root().SetAttr(xdoc.AttrType, "Package")
	if err := doc.IndexID(doc.Root()); err != nil {
		t.Fatalf("index root: %v", err)
	}
	return s, doc, s.Wrap(doc, doc.Root())
}

// newDocWithRoot builds a one-node document with the given root tag and
// type discriminator.
func newDocWithRoot(t *testing.T, tag, typ string) *xdoc.Document {
	t.Helper()
	doc := xdoc.New(tag)
	doc.Root().SetAttr(xdoc.AttrID, "root")
	doc.Root().SetAttr(xdoc.AttrType, typ)
	if err := doc.IndexID(doc.Root()); err != nil {
		t.Fatalf("index root: %v", err)
	}
	return doc
}

func mustGet(t *testing.T, e Entity, field string) *CoupledList {
	t.Helper()
	l, err := e.Get(field)
	if err != nil {
		t.Fatalf("get %s: %v", field, err)
	}
	return l
}

func mustCreate(t *testing.T, l *CoupledList, hint string, fields Fields) Entity {
	t.Helper()
	e, err := l.Create(hint, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return e
}

func names(l *CoupledList) []string {
	out := make([]string, 0, l.Len())
	for _, e := range l.Items() {
		out = append(out, e.Name())
	}
	return out
}
