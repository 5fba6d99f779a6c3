package model

import (
	"errors"
	"testing"
)

func TestParentView(t *testing.T) {
	_, _, root := testModel(t)
	children := mustGet(t, root, "children")
	c := mustCreate(t, children, "", Fields{"name": "C"})

	container, ok, err := c.GetSingle("container")
	if err != nil || !ok {
		t.Fatalf("get single: ok=%v err=%v", ok, err)
	}
	if !container.Same(root) {
		t.Fatalf("expected root, got %s", container.Name())
	}
}

func TestIndexView(t *testing.T) {
	_, _, root := testModel(t)
	children := mustGet(t, root, "children")
	c := mustCreate(t, children, "", Fields{"name": "C"})

	// An empty wrapped list is a structural fault for the fixed position.
	_, err := c.Get("firstPort")
	var broken *BrokenDocumentError
	if !errors.As(err, &broken) {
		t.Fatalf("expected BrokenDocumentError, got %v", err)
	}

	ports := mustGet(t, c, "ports")
	p1 := mustCreate(t, ports, "", nil)
	mustCreate(t, ports, "", nil)
	first := mustGet(t, c, "firstPort")
	if first.Len() != 1 || !first.At(0).Same(p1) {
		t.Fatalf("expected [p1], got %v", names(first))
	}
}

func TestTypecastView(t *testing.T) {
	_, _, root := testModel(t)
	children := mustGet(t, root, "children")
	c := mustCreate(t, children, "", Fields{"name": "C"})
	ports := mustGet(t, c, "ports")
	mustCreate(t, ports, "", nil)
	fp := mustCreate(t, ports, "FlowPort", nil)

	flow := mustGet(t, c, "flowPorts")
	if flow.Len() != 1 || !flow.At(0).Same(fp) {
		t.Fatalf("expected only the flow port, got %v", names(flow))
	}

	// Creation through the view forces the subtype and lands in the
	// underlying field.
	fp2 := mustCreate(t, flow, "", nil)
	if fp2.Type().Name != "FlowPort" {
		t.Fatalf("expected a FlowPort, got %s", fp2.Type().Name)
	}
	ports.refresh()
	if ports.Len() != 3 {
		t.Fatalf("expected 3 ports underneath, got %d", ports.Len())
	}

	// A hint outside the subtype is rejected and leaves nothing behind.
	if _, err := flow.Create("Port", nil); err == nil {
		t.Fatal("expected rejection of a hint outside the subtype")
	}
	ports.refresh()
	if ports.Len() != 3 {
		t.Fatalf("rejected creation leaked a port, got %d", ports.Len())
	}
}

func TestAliasView(t *testing.T) {
	logger := &recordingLogger{}
	_, _, root := testModel(t, WithLogger(logger))
	children := mustGet(t, root, "children")
	c := mustCreate(t, children, "", Fields{"name": "C"})
	ports := mustGet(t, c, "ports")
	p := mustCreate(t, ports, "", nil)

	alias := mustGet(t, c, "elements")
	if alias.Len() != 1 || !alias.At(0).Same(p) {
		t.Fatalf("alias does not track its target: %v", names(alias))
	}
	p2 := mustCreate(t, alias, "", nil)
	ports.refresh()
	if ports.Len() != 2 || !ports.At(1).Same(p2) {
		t.Fatalf("creation through the alias missed the target field")
	}
	if len(logger.warns) == 0 {
		t.Fatal("deprecated alias use was not logged")
	}
}

func TestAlternateView(t *testing.T) {
	s := NewSchema()
	base := NewType("Document", "documents")
	base.Define("asNote", &Alternate{Class: "Note"})
	s.MustRegister(base)
	s.MustRegister(NewType("Note", "documents"))

	doc := newDocWithRoot(t, "documents", "Document")
	d := s.Wrap(doc, doc.Root())
	alt, ok, err := d.GetSingle("asNote")
	if err != nil || !ok {
		t.Fatalf("get single: ok=%v err=%v", ok, err)
	}
	if alt.Type().Name != "Note" {
		t.Fatalf("expected the forced type Note, got %s", alt.Type().Name)
	}
	if alt.Node() != d.Node() {
		t.Fatal("alternate must expose the same node")
	}
}

func TestSingleView(t *testing.T) {
	s := NewSchema()
	owner := NewType("Board", "boards")
	owner.Define("lead", &Single{Of: &Association{Attr: "lead", Class: "Member"}})
	owner.Define("members", &Containment{RoleTag: "ownedMembers", Class: "Member"})
	s.MustRegister(owner)
	s.MustRegister(NewType("Member", "ownedMembers"))

	doc := newDocWithRoot(t, "boards", "Board")
	board := s.Wrap(doc, doc.Root())
	members := mustGet(t, board, "members")
	m1 := mustCreate(t, members, "", Fields{"name": "m1"})
	m2 := mustCreate(t, members, "", Fields{"name": "m2"})

	lead := mustGet(t, board, "lead")
	if lead.Len() != 0 {
		t.Fatalf("expected no lead yet, got %v", names(lead))
	}
	if err := board.Set("lead", []Entity{m1, m2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := board.GetSingle("lead")
	if err != nil || !ok {
		t.Fatalf("get single: ok=%v err=%v", ok, err)
	}
	if !got.Same(m1) {
		t.Fatalf("expected the first member, got %s", got.Name())
	}

	// Deleting the lead purges the wrapped association.
	if err := m1.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, ok, err = board.GetSingle("lead")
	if err != nil || !ok {
		t.Fatalf("get single after purge: ok=%v err=%v", ok, err)
	}
	if !got.Same(m2) {
		t.Fatalf("expected m2 after purge, got %s", got.Name())
	}
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	debugs, infos, warns, errs []string
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.debugs = append(l.debugs, msg) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(msg string, args ...any) { l.errs = append(l.errs, msg) }
