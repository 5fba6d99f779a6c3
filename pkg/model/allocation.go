package model

import (
	"fmt"

	"modelcore/pkg/xdoc"
)

// Allocation represents a reference mediated by a separate link-object: a
// child node of the owner with a declared tag and discriminator whose link
// attribute points at the real target, and optionally a back-pointer
// attribute to the owner. Mutations touch only link-objects, never the
// targets.
type Allocation struct {
	Options
	// Tag is the document tag of link-object nodes.
	Tag string
	// AllocType names the registered type of link-objects.
	AllocType string
	// Class names the declared target type; empty admits any type.
	Class string
	// Attr is the link attribute on the link-object.
	Attr string
	// BackAttr, when set, stores a link back to the owner on every
	// link-object.
	BackAttr string
	// Unique rejects a second link-object pointing at the same target.
	Unique bool
}

var (
	_ Mutable          = (*Allocation)(nil)
	_ Creator          = (*Allocation)(nil)
	_ PurgeParticipant = (*Allocation)(nil)
)

func (a *Allocation) classType(s *Schema) *EntityType {
	if a.Class == "" {
		return nil
	}
	t, _ := s.TypeByName(a.Class)
	return t
}

// refs returns the owner's link-object nodes in document order.
func (a *Allocation) refs(owner Entity) []*xdoc.Node {
	var out []*xdoc.Node
	for _, n := range owner.doc.ChildrenOfType(owner.node, a.Tag) {
		if t, ok := owner.schema.TypeByName(a.AllocType); ok && n.Type() != t.Discriminator {
			continue
		}
		out = append(out, n)
	}
	return out
}

// follow resolves the target of one link-object, or nil for broken links.
func (a *Allocation) follow(owner Entity, ref *xdoc.Node) *xdoc.Node {
	link, ok := ref.Attr(a.Attr)
	if !ok || link == "" {
		return nil
	}
	target, err := owner.doc.ResolveLink(ref, link)
	if err != nil {
		return nil
	}
	return target
}

// Get collects the resolved targets in document order, de-duplicated,
// skipping broken links.
func (a *Allocation) Get(owner Entity) (List, error) {
	var nodes []*xdoc.Node
	seen := make(map[*xdoc.Node]bool)
	for _, ref := range a.refs(owner) {
		target := a.follow(owner, ref)
		if target == nil || seen[target] {
			continue
		}
		seen[target] = true
		nodes = append(nodes, target)
	}
	return newList(owner.schema, owner.doc, nodes, a.classType(owner.schema), a.Options), nil
}

// Insert instantiates a fresh link-object pointing at the existing target
// so that the target appears at the given list index. A unique allocation
// scans existing link-objects first and rejects duplicates.
func (a *Allocation) Insert(owner Entity, index int, value Entity) error {
	_, err := a.createRef(owner, index, value)
	return err
}

func (a *Allocation) createRef(owner Entity, index int, value Entity) (*xdoc.Node, error) {
	if value.doc != owner.doc {
		return nil, fmt.Errorf("model: cannot link entities from different documents")
	}
	bound := a.classType(owner.schema)
	if bound != nil && !owner.schema.Assignable(value.typ, bound) {
		return nil, fmt.Errorf("model: cannot allocate %s through allocation of %s", value.typ.Name, bound.Name)
	}
	if a.Unique {
		for _, ref := range a.refs(owner) {
			if a.follow(owner, ref) == value.node {
				return nil, &DuplicateMemberError{Owner: owner, Field: a.Attr, Target: value}
			}
		}
	}
	allocType, ok := owner.schema.TypeByName(a.AllocType)
	if !ok {
		return nil, fmt.Errorf("model: unknown allocation type %q", a.AllocType)
	}
	if allocType.Abstract {
		return nil, fmt.Errorf("model: allocation type %s is abstract", allocType.Name)
	}

	at := owner.node.NumChildren()
	if existing := a.refs(owner); index >= 0 && index < len(existing) {
		if i := owner.node.ChildIndex(existing[index]); i >= 0 {
			at = i
		}
	}
	id, err := owner.doc.AllocateID("")
	if err != nil {
		return nil, err
	}
	ref := owner.doc.NewChild(owner.node, at, a.Tag)
	ref.SetAttr(xdoc.AttrID, id)
	ref.SetAttr(xdoc.AttrType, allocType.Discriminator)
	ref.SetAttr(a.Attr, owner.doc.MakeLink(ref, value.node))
	if a.BackAttr != "" {
		ref.SetAttr(a.BackAttr, owner.doc.MakeLink(ref, owner.node))
	}
	if err := owner.doc.IndexID(ref); err != nil {
		_ = owner.doc.Detach(ref)
		return nil, err
	}
	return ref, nil
}

// Create makes a new link-object pointing at an existing target supplied in
// fields under the link attribute's name. The hint is unused: only
// link-objects, never targets, are created here.
func (a *Allocation) Create(owner Entity, index int, hint string, fields Fields) (Entity, error) {
	raw, ok := fields[a.Attr]
	if !ok {
		return Entity{}, fmt.Errorf("model: allocation create needs the target under %q", a.Attr)
	}
	target, ok := raw.(Entity)
	if !ok {
		return Entity{}, fmt.Errorf("model: allocation target must be an existing entity, got %T", raw)
	}
	if len(fields) > 1 {
		return Entity{}, fmt.Errorf("%w: allocation link-objects carry no fields besides %q", ErrUnsupported, a.Attr)
	}
	if hint != "" {
		return Entity{}, fmt.Errorf("%w: cannot create targets through an allocation", ErrUnsupported)
	}
	if _, err := a.createRef(owner, index, target); err != nil {
		return Entity{}, err
	}
	return target, nil
}

// Remove deletes the link-object pointing at value; the target itself is
// untouched.
func (a *Allocation) Remove(owner Entity, value Entity) error {
	for _, ref := range a.refs(owner) {
		if a.follow(owner, ref) == value.node {
			return owner.doc.Detach(ref)
		}
	}
	return fmt.Errorf("model: entity not allocated on %s", describeEntity(owner))
}

// SetAll reconciles the link-objects with values: missing targets are
// allocated, surplus link-objects removed.
func (a *Allocation) SetAll(owner Entity, values []Entity) error {
	current, err := a.Get(owner)
	if err != nil {
		return err
	}
	wanted := make(map[*xdoc.Node]bool, len(values))
	for i, v := range values {
		wanted[v.node] = true
		if current.Contains(v) {
			continue
		}
		if err := a.Insert(owner, i, v); err != nil {
			return err
		}
	}
	for _, member := range current.Items() {
		if !wanted[member.node] {
			if err := a.Remove(owner, member); err != nil {
				return err
			}
		}
	}
	return nil
}

// StagePurge schedules the removal of every link-object pointing at the
// deleted target, independent of uniqueness. The staged action tolerates
// link-objects that were already detached together with their owner.
func (a *Allocation) StagePurge(owner, target Entity) (PurgeAction, error) {
	var doomed []*xdoc.Node
	for _, ref := range a.refs(owner) {
		if a.follow(owner, ref) == target.node {
			doomed = append(doomed, ref)
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}
	return func() error {
		for _, ref := range doomed {
			if ref.Parent() == nil {
				continue
			}
			if err := owner.doc.Detach(ref); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
