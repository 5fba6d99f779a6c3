package model

import (
	"modelcore/pkg/xdoc"
)

// Backref is a computed, storage-free reverse view: evaluating it searches
// the whole document for instances of the declared target type whose
// forward attribute paths reach the queried entity, by identity or list
// membership. It is read-only and always consistent by construction, at
// the cost of a full search per access; it stores nothing and therefore
// has no purge obligation.
type Backref struct {
	Options
	// Class names the candidate type searched for.
	Class string
	// Attrs are the forward field paths tested on every candidate.
	Attrs []string
}

// Get returns the matching candidates in search (document) order.
func (b *Backref) Get(owner Entity) (List, error) {
	bound := b.classType(owner.schema)
	var matches []*xdoc.Node
	owner.doc.Walk(owner.doc.Root(), func(n *xdoc.Node) {
		if n == owner.node {
			return
		}
		candidate := owner.schema.Wrap(owner.doc, n)
		if bound != nil && !owner.schema.Assignable(candidate.typ, bound) {
			return
		}
		for _, path := range b.Attrs {
			if pathReaches(candidate, path, owner) {
				matches = append(matches, n)
				return
			}
		}
	})
	return newList(owner.schema, owner.doc, matches, bound, b.Options), nil
}

func (b *Backref) classType(s *Schema) *EntityType {
	if b.Class == "" {
		return nil
	}
	t, _ := s.TypeByName(b.Class)
	return t
}
