package model

import (
	"fmt"
	"slices"

	"modelcore/pkg/xdoc"
)

// List is an ordered snapshot of node references plus the element type used
// for creation and type checks. It is decoupled from any owner: mutating a
// List value never touches the document. Wrapping into entities happens
// lazily on access.
type List struct {
	schema *Schema
	doc    *xdoc.Document
	nodes  []*xdoc.Node
	elem   *EntityType // nil for mixed lists
	mapKey string
	forced bool // wrap members as elem instead of dispatching
}

func newList(schema *Schema, doc *xdoc.Document, nodes []*xdoc.Node, elem *EntityType, opts Options) List {
	return List{schema: schema, doc: doc, nodes: nodes, elem: elem, mapKey: opts.MapKey}
}

// Len returns the number of members.
func (l List) Len() int { return len(l.nodes) }

// At wraps the i-th member. Dispatch is polymorphic: the most specific
// registered type for the node's discriminator wins, the declared element
// type is only a bound. Alternate views force their declared type instead.
func (l List) At(i int) Entity {
	if l.forced && l.elem != nil {
		return Entity{schema: l.schema, doc: l.doc, node: l.nodes[i], typ: l.elem}
	}
	return l.schema.Wrap(l.doc, l.nodes[i])
}

// First returns the first member, or ok=false for an empty list.
func (l List) First() (Entity, bool) {
	if len(l.nodes) == 0 {
		return Entity{}, false
	}
	return l.At(0), true
}

// Items wraps every member.
func (l List) Items() []Entity {
	out := make([]Entity, len(l.nodes))
	for i := range l.nodes {
		out[i] = l.At(i)
	}
	return out
}

// Slice returns the sub-list [i, j).
func (l List) Slice(i, j int) List {
	return l.derive(slices.Clone(l.nodes[i:j]))
}

// Contains reports membership by node identity.
func (l List) Contains(e Entity) bool { return l.IndexOf(e) >= 0 }

// IndexOf returns the position of e, or -1.
func (l List) IndexOf(e Entity) int {
	return slices.Index(l.nodes, e.node)
}

// Filter keeps the members for which pred returns true.
func (l List) Filter(pred func(Entity) bool) List {
	var kept []*xdoc.Node
	for i := range l.nodes {
		if pred(l.At(i)) {
			kept = append(kept, l.nodes[i])
		}
	}
	return l.derive(kept)
}

// FilterPath keeps the members for which the dotted field path resolves to
// anything truthy: a non-empty attribute value or at least one entity.
func (l List) FilterPath(path string) List {
	return l.Filter(func(e Entity) bool {
		strs, ents := evalPath(e, path)
		for _, s := range strs {
			if s != "" {
				return true
			}
		}
		return len(ents) > 0
	})
}

// Map evaluates the dotted field path on every member and returns the
// flattened entity results, de-duplicated by identity in first-seen order.
// The result is typed when all members share one registered type, mixed
// otherwise. A path that resolves to plain attribute values is an error.
func (l List) Map(path string) (List, error) {
	var out []*xdoc.Node
	seen := make(map[*xdoc.Node]bool)
	var elem *EntityType
	first := true
	for i := range l.nodes {
		strs, ents := evalPath(l.At(i), path)
		if len(strs) > 0 {
			return List{}, fmt.Errorf("model: map path %q resolves to plain values, not entities", path)
		}
		for _, e := range ents {
			if seen[e.node] {
				continue
			}
			seen[e.node] = true
			out = append(out, e.node)
			if first {
				elem = e.typ
				first = false
			} else if elem != e.typ {
				elem = nil
			}
		}
	}
	return newList(l.schema, l.doc, out, elem, Options{}), nil
}

// Where keeps the members whose field path matches any of the given values.
// String values compare case-insensitively against attribute results;
// Entity values compare by identity against entity results.
func (l List) Where(path string, values ...any) List {
	return l.Filter(func(e Entity) bool { return pathMatches(e, path, values) })
}

// Exclude keeps the members whose field path matches none of the values.
func (l List) Exclude(path string, values ...any) List {
	return l.Filter(func(e Entity) bool { return !pathMatches(e, path, values) })
}

// WhereOne requires exactly one member to match. Zero matches yield a
// missing-key error, several matches a multiple-match error.
func (l List) WhereOne(path string, value any) (Entity, error) {
	matches := l.Where(path, value)
	switch matches.Len() {
	case 0:
		return Entity{}, &KeyError{Key: fmt.Sprint(value)}
	case 1:
		return matches.At(0), nil
	default:
		return Entity{}, &KeyError{Key: fmt.Sprint(value), Multiple: true}
	}
}

// Concat appends the members of other. Both lists must view the same
// document.
func (l List) Concat(other List) (List, error) {
	if l.doc != other.doc {
		return List{}, fmt.Errorf("model: cannot combine lists from different documents")
	}
	elem := l.elem
	if other.elem != elem {
		elem = nil
	}
	return newList(l.schema, l.doc, append(slices.Clone(l.nodes), other.nodes...), elem, Options{MapKey: l.mapKey}), nil
}

// Difference removes every member of other from this list.
func (l List) Difference(other List) (List, error) {
	if l.doc != other.doc {
		return List{}, fmt.Errorf("model: cannot combine lists from different documents")
	}
	excluded := make(map[*xdoc.Node]bool, len(other.nodes))
	for _, n := range other.nodes {
		excluded[n] = true
	}
	var kept []*xdoc.Node
	for _, n := range l.nodes {
		if !excluded[n] {
			kept = append(kept, n)
		}
	}
	return l.derive(kept), nil
}

// ByKey looks the list up as a map over its declared map-key field.
// Matching is exact on the attribute value. A list without a declared map
// key cannot act as a mapping.
func (l List) ByKey(key string) (Entity, error) {
	if l.mapKey == "" {
		return Entity{}, fmt.Errorf("%w: list has no declared map key", ErrUnsupported)
	}
	var found []Entity
	for i := range l.nodes {
		e := l.At(i)
		strs, ents := evalPath(e, l.mapKey)
		if slices.Contains(strs, key) {
			found = append(found, e)
			continue
		}
		for _, target := range ents {
			if target.Name() == key {
				found = append(found, e)
				break
			}
		}
	}
	switch len(found) {
	case 0:
		return Entity{}, &KeyError{Key: key}
	case 1:
		return found[0], nil
	default:
		return Entity{}, &KeyError{Key: key, Multiple: true}
	}
}

// Keys returns the map-key value of every member, in list order.
func (l List) Keys() []string {
	if l.mapKey == "" {
		return nil
	}
	out := make([]string, 0, len(l.nodes))
	for i := range l.nodes {
		strs, _ := evalPath(l.At(i), l.mapKey)
		if len(strs) > 0 {
			out = append(out, strs[0])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// derive builds a sub-list preserving element type, wrap mode and map key.
func (l List) derive(nodes []*xdoc.Node) List {
	out := newList(l.schema, l.doc, nodes, l.elem, Options{MapKey: l.mapKey})
	out.forced = l.forced
	return out
}
