package model

import "strings"

// evalPath resolves a dotted field path starting at an entity. Each step
// resolves a declared relationship first and falls back to a raw node
// attribute; attribute values terminate a path. Members that lack a step
// are skipped rather than failing, matching the tolerant semantics of
// query filters and backref searches. The terminal values are returned
// split by kind: attribute strings and relationship entities.
func evalPath(e Entity, path string) (strs []string, ents []Entity) {
	frontier := []Entity{e}
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		last := i == len(segs)-1
		var next []Entity
		for _, cur := range frontier {
			if cur.IsZero() {
				continue
			}
			if rel, ok := cur.typ.Field(seg); ok {
				l, err := rel.Get(cur)
				if err != nil {
					continue
				}
				next = append(next, l.Items()...)
				continue
			}
			if v, ok := cur.node.Attr(seg); ok && last {
				strs = append(strs, v)
			}
		}
		frontier = next
	}
	ents = frontier
	return strs, ents
}

// pathMatches reports whether any terminal value of the path on e matches
// any of the supplied values. Strings compare case-insensitively against
// attribute results and against entity names; entities compare by node
// identity.
func pathMatches(e Entity, path string, values []any) bool {
	strs, ents := evalPath(e, path)
	for _, v := range values {
		switch want := v.(type) {
		case string:
			for _, s := range strs {
				if strings.EqualFold(s, want) {
					return true
				}
			}
			for _, ent := range ents {
				if strings.EqualFold(ent.Name(), want) {
					return true
				}
			}
		case Entity:
			for _, ent := range ents {
				if ent.Same(want) {
					return true
				}
			}
		case *EntityType:
			for _, ent := range ents {
				if e.schema.Assignable(ent.typ, want) {
					return true
				}
			}
		}
	}
	return false
}

// pathReaches reports whether the path on e resolves to the target entity,
// by identity or list membership. Backref searches build on this.
func pathReaches(e Entity, path string, target Entity) bool {
	_, ents := evalPath(e, path)
	for _, ent := range ents {
		if ent.Same(target) {
			return true
		}
	}
	return false
}
