package model

import (
	"fmt"
	"slices"
	"strings"
)

// Association represents a non-owning cross-reference encoded as a
// whitespace-separated list of link strings in one attribute of the owner's
// node. Referenced entities must already exist; creation through an
// association is unsupported. A fixed-length association enforces its exact
// length on every mutation and rejects deletions of its members outright.
type Association struct {
	Options
	// Attr is the owner attribute holding the link list.
	Attr string
	// Class names the declared target type; empty admits any type.
	Class string
}

var (
	_ Mutable          = (*Association)(nil)
	_ PurgeParticipant = (*Association)(nil)
)

func (a *Association) classType(s *Schema) *EntityType {
	if a.Class == "" {
		return nil
	}
	t, _ := s.TypeByName(a.Class)
	return t
}

// Get resolves every link in the attribute, skipping broken ones, in
// attribute order.
func (a *Association) Get(owner Entity) (List, error) {
	raw, _ := owner.node.Attr(a.Attr)
	nodes, err := owner.doc.ResolveLinks(owner.node, raw, true)
	if err != nil {
		return List{}, err
	}
	return newList(owner.schema, owner.doc, nodes, a.classType(owner.schema), a.Options), nil
}

// SetAll rewrites the attribute's full link list. Fixed-length
// associations enforce their exact length here, the authoritative place
// every mutation funnels through.
func (a *Association) SetAll(owner Entity, values []Entity) error {
	if a.FixedLength > 0 && len(values) != a.FixedLength {
		return fmt.Errorf("%w: %s.%s must keep exactly %d members",
			ErrUnsupported, owner.typ.Name, a.Attr, a.FixedLength)
	}
	bound := a.classType(owner.schema)
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v.doc != owner.doc {
			return fmt.Errorf("model: cannot link entities from different documents")
		}
		if bound != nil && !owner.schema.Assignable(v.typ, bound) {
			return fmt.Errorf("model: cannot link %s through association of %s", v.typ.Name, bound.Name)
		}
		parts = append(parts, owner.doc.MakeLink(owner.node, v.node))
	}
	if len(parts) == 0 {
		owner.node.DelAttr(a.Attr)
		return nil
	}
	owner.node.SetAttr(a.Attr, strings.Join(parts, " "))
	return nil
}

// Insert rewrites the link list with value spliced in at the given index.
func (a *Association) Insert(owner Entity, index int, value Entity) error {
	current, err := a.Get(owner)
	if err != nil {
		return err
	}
	values := current.Items()
	if index < 0 || index > len(values) {
		index = len(values)
	}
	values = slices.Insert(values, index, value)
	return a.SetAll(owner, values)
}

// Remove rewrites the link list without value.
func (a *Association) Remove(owner Entity, value Entity) error {
	current, err := a.Get(owner)
	if err != nil {
		return err
	}
	var kept []Entity
	for _, v := range current.Items() {
		if !v.Same(value) {
			kept = append(kept, v)
		}
	}
	if len(kept) == current.Len() {
		return fmt.Errorf("model: entity not referenced by %s.%s", owner.typ.Name, a.Attr)
	}
	return a.SetAll(owner, kept)
}

// StagePurge participates in the purge protocol. A fixed-length association
// that would drop below its bound rejects the deletion during collection;
// otherwise the staged action rewrites the attribute without the broken
// links. The rewrite tolerates owners that were removed along the way.
func (a *Association) StagePurge(owner, target Entity) (PurgeAction, error) {
	raw, _ := owner.node.Attr(a.Attr)
	if raw == "" {
		return nil, nil
	}
	nodes, _ := owner.doc.ResolveLinks(owner.node, raw, true)
	hit := slices.Contains(nodes, target.node)
	if !hit {
		return nil, nil
	}
	if a.FixedLength > 0 {
		remaining := 0
		for _, n := range nodes {
			if n != target.node {
				remaining++
			}
		}
		if remaining < a.FixedLength {
			return nil, &BrokenDocumentError{Detail: fmt.Sprintf(
				"deleting %s would leave %s.%s with %d of %d required ends",
				describeEntity(target), describeEntity(owner), a.Attr, remaining, a.FixedLength)}
		}
	}
	return func() error {
		raw, _ := owner.node.Attr(a.Attr)
		nodes, _ := owner.doc.ResolveLinks(owner.node, raw, true)
		var kept []Entity
		for _, n := range nodes {
			if n != target.node {
				kept = append(kept, owner.schema.Wrap(owner.doc, n))
			}
		}
		return a.SetAll(owner, kept)
	}, nil
}
