package model

import (
	"fmt"

	"modelcore/pkg/xdoc"
)

// Containment represents ownership: the referenced entities are direct
// children of the owner's node carrying the role tag, optionally reached
// through a declared path of intermediate root tags when the logical owner
// sits several tag levels above its children. Deleting through a
// containment removes the subtree after the reference-purge protocol has
// run across the schema.
type Containment struct {
	Options
	// RoleTag is the document tag of contained children.
	RoleTag string
	// Class names the declared element type; empty admits any type.
	Class string
	// Rooted is the path of intermediate container tags between the
	// owner's node and the contained children.
	Rooted []string
	// TypeHints maps lowercase creation hints to registered type names.
	TypeHints map[string]string
}

var (
	_ Mutable = (*Containment)(nil)
	_ Creator = (*Containment)(nil)
)

func (c *Containment) classType(s *Schema) *EntityType {
	if c.Class == "" {
		return nil
	}
	t, _ := s.TypeByName(c.Class)
	return t
}

// containers resolves the nodes whose direct children hold the membership,
// following the rooted path without creating missing intermediates.
func (c *Containment) containers(owner Entity) []*xdoc.Node {
	frontier := []*xdoc.Node{owner.node}
	for _, tag := range c.Rooted {
		var next []*xdoc.Node
		for _, n := range frontier {
			next = append(next, owner.doc.ChildrenOfType(n, tag)...)
		}
		frontier = next
	}
	return frontier
}

// ensureContainer resolves the first container branch for writing, creating
// missing intermediate root nodes on the way.
func (c *Containment) ensureContainer(owner Entity) *xdoc.Node {
	cur := owner.node
	for _, tag := range c.Rooted {
		kids := owner.doc.ChildrenOfType(cur, tag)
		if len(kids) > 0 {
			cur = kids[0]
			continue
		}
		cur = owner.doc.NewChild(cur, cur.NumChildren(), tag)
	}
	return cur
}

func (c *Containment) members(owner Entity) []*xdoc.Node {
	var out []*xdoc.Node
	for _, container := range c.containers(owner) {
		out = append(out, owner.doc.ChildrenOfType(container, c.RoleTag)...)
	}
	return out
}

// Get returns every matching child wrapped as an entity, in document order.
// A child whose resolved type falls outside the declared class is a
// consistency fault, not silently dropped.
func (c *Containment) Get(owner Entity) (List, error) {
	nodes := c.members(owner)
	bound := c.classType(owner.schema)
	for _, n := range nodes {
		ent := owner.schema.Wrap(owner.doc, n)
		if bound != nil && !owner.schema.Assignable(ent.typ, bound) {
			return List{}, &BrokenDocumentError{Detail: fmt.Sprintf(
				"child %s of %s is a %s, expected %s",
				n.ID(), describeEntity(owner), ent.typ.Name, bound.Name)}
		}
	}
	return newList(owner.schema, owner.doc, nodes, bound, c.Options), nil
}

// writeTarget re-derives the container and true document-order child index
// for a list index. The container may interleave children of other tags,
// and a rooted path may resolve to several container branches; the write
// lands in the branch owning the member the index addresses. Appends go
// after the last member, or into the first branch (created on demand) when
// the containment is still empty.
func (c *Containment) writeTarget(owner Entity, listIndex int) (*xdoc.Node, int) {
	members := c.members(owner)
	if listIndex >= 0 && listIndex < len(members) {
		target := members[listIndex]
		container := owner.doc.ParentOf(target)
		if i := container.ChildIndex(target); i >= 0 {
			return container, i
		}
	}
	if len(members) > 0 {
		last := members[len(members)-1]
		container := owner.doc.ParentOf(last)
		return container, container.ChildIndex(last) + 1
	}
	container := c.ensureContainer(owner)
	return container, container.NumChildren()
}

// Insert re-homes an existing entity so that it appears at the given list
// index. The entity's node is re-tagged with the role tag.
func (c *Containment) Insert(owner Entity, index int, value Entity) error {
	if c.RoleTag == "" {
		return fmt.Errorf("%w: containment on %s has no writable tag", ErrUnsupported, owner.typ.Name)
	}
	if value.doc != owner.doc {
		return fmt.Errorf("model: cannot move entities between documents")
	}
	if bound := c.classType(owner.schema); bound != nil && !owner.schema.Assignable(value.typ, bound) {
		return fmt.Errorf("model: cannot insert %s into containment of %s", value.typ.Name, bound.Name)
	}
	container, at := c.writeTarget(owner, index)
	value.node.SetTag(c.RoleTag)
	owner.doc.MoveChild(container, at, value.node)
	return nil
}

// Create instantiates a new entity as a child at the given list index.
func (c *Containment) Create(owner Entity, index int, hint string, fields Fields) (Entity, error) {
	if c.RoleTag == "" {
		return Entity{}, fmt.Errorf("%w: containment on %s has no writable tag", ErrUnsupported, owner.typ.Name)
	}
	typ, err := owner.schema.ResolveHint(c.classType(owner.schema), hint, c.TypeHints)
	if err != nil {
		return Entity{}, err
	}
	container, at := c.writeTarget(owner, index)
	return owner.schema.newEntity(owner.doc, container, at, typ, c.RoleTag, fields)
}

// Remove deletes the subtree rooted at value after running the purge
// protocol against every other reference-holding relationship.
func (c *Containment) Remove(owner Entity, value Entity) error {
	if c.RoleTag == "" {
		return fmt.Errorf("%w: containment on %s has no writable tag", ErrUnsupported, owner.typ.Name)
	}
	return owner.schema.DeleteEntity(value, c)
}

// SetAll reconciles the membership with values: entities not yet contained
// are appended, current members missing from values are deleted.
func (c *Containment) SetAll(owner Entity, values []Entity) error {
	current, err := c.Get(owner)
	if err != nil {
		return err
	}
	wanted := make(map[*xdoc.Node]bool, len(values))
	for _, v := range values {
		wanted[v.node] = true
		if current.Contains(v) {
			continue
		}
		if err := c.Insert(owner, current.Len(), v); err != nil {
			return err
		}
	}
	for _, member := range current.Items() {
		if !wanted[member.node] {
			if err := c.Remove(owner, member); err != nil {
				return err
			}
		}
	}
	return nil
}
