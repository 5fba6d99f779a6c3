package model

import (
	"fmt"
	"sort"

	"modelcore/pkg/xdoc"
)

// Entity is a typed wrapper around exactly one document node. Entities are
// cheap values; two entities are the same iff they wrap the same node,
// regardless of field values. An entity whose node has been detached from
// the document must not be dereferenced again.
type Entity struct {
	schema *Schema
	doc    *xdoc.Document
	node   *xdoc.Node
	typ    *EntityType
}

// IsZero reports whether the entity wraps no node.
func (e Entity) IsZero() bool { return e.node == nil }

// Same reports node identity, the entity equality of the framework.
func (e Entity) Same(o Entity) bool { return e.node != nil && e.node == o.node }

// Node returns the wrapped node.
func (e Entity) Node() *xdoc.Node { return e.node }

// Document returns the owning document.
func (e Entity) Document() *xdoc.Document { return e.doc }

// Type returns the resolved entity type.
func (e Entity) Type() *EntityType { return e.typ }

// UUID returns the stable identifier of the wrapped node.
func (e Entity) UUID() string { return e.node.ID() }

// Name returns the conventional "name" attribute, or "".
func (e Entity) Name() string {
	v, _ := e.node.Attr("name")
	return v
}

// Attr returns a raw node attribute.
func (e Entity) Attr(name string) (string, bool) { return e.node.Attr(name) }

// SetAttr assigns a raw node attribute.
func (e Entity) SetAttr(name, value string) { e.node.SetAttr(name, value) }

// Get evaluates the named field and returns the coupled list bound to this
// entity and the field's relationship. Mutating the list mutates the
// document through the relationship.
func (e Entity) Get(field string) (*CoupledList, error) {
	rel, ok := e.typ.Field(field)
	if !ok {
		return nil, fmt.Errorf("model: %s has no field %q", e.typ.Name, field)
	}
	l, err := rel.Get(e)
	if err != nil {
		return nil, err
	}
	return &CoupledList{
		List:  l,
		owner: e,
		rel:   rel,
		field: field,
		fixed: rel.options().FixedLength,
	}, nil
}

// GetSingle evaluates the named field and returns its first member, or
// ok=false when the field is empty.
func (e Entity) GetSingle(field string) (Entity, bool, error) {
	l, err := e.Get(field)
	if err != nil {
		return Entity{}, false, err
	}
	if l.Len() == 0 {
		return Entity{}, false, nil
	}
	return l.At(0), true, nil
}

// Set replaces the membership of the named field.
func (e Entity) Set(field string, values []Entity) error {
	rel, ok := e.typ.Field(field)
	if !ok {
		return fmt.Errorf("model: %s has no field %q", e.typ.Name, field)
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, e.typ.Name, field)
	}
	if fl := rel.options().FixedLength; fl > 0 && len(values) != fl {
		return fmt.Errorf("%w: %s.%s must keep exactly %d members",
			ErrUnsupported, e.typ.Name, field, fl)
	}
	return mut.SetAll(e, values)
}

// Delete removes this entity's subtree from the document after running the
// reference-purge protocol across the whole schema.
func (e Entity) Delete() error {
	return e.schema.DeleteEntity(e, nil)
}

// NewEntity allocates a new node of the given type below parent at child
// index, assigns its identifier and every supplied field. Construction is
// all-or-nothing: if any assignment fails, the node is removed again and
// its identifier retired. Required fields missing from fields fail before
// any node is created. A requested identifier may be passed under the "id"
// key. The tagOverride replaces the type's default document tag when
// non-empty, for relationships that impose their own role tag.
func (s *Schema) NewEntity(doc *xdoc.Document, parent *xdoc.Node, index int, typ *EntityType, tagOverride string, fields Fields) (Entity, error) {
	return s.newEntity(doc, parent, index, typ, tagOverride, fields)
}

func (s *Schema) newEntity(doc *xdoc.Document, parent *xdoc.Node, index int, typ *EntityType, tagOverride string, fields Fields) (Entity, error) {
	if typ == nil || typ.Abstract {
		name := RootTypeName
		if typ != nil {
			name = typ.Name
		}
		return Entity{}, fmt.Errorf("model: cannot instantiate abstract type %s", name)
	}

	var missing []string
	for _, req := range typ.requiredFields() {
		if _, ok := fields[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return Entity{}, &MissingFieldsError{Type: typ.Name, Missing: missing}
	}

	requested, _ := fields["id"].(string)
	id, err := doc.AllocateID(requested)
	if err != nil {
		return Entity{}, err
	}

	tag := tagOverride
	if tag == "" {
		tag = typ.Tag
	}
	if tag == "" {
		return Entity{}, fmt.Errorf("model: type %s declares no document tag", typ.Name)
	}
	node := doc.NewChild(parent, index, tag)
	node.SetAttr(xdoc.AttrID, id)
	if typ.Discriminator != "" {
		node.SetAttr(xdoc.AttrType, typ.Discriminator)
	}
	if err := doc.IndexID(node); err != nil {
		_ = doc.Detach(node)
		return Entity{}, err
	}

	ent := Entity{schema: s, doc: doc, node: node, typ: typ}
	if err := assignFields(ent, fields); err != nil {
		_ = doc.Detach(node)
		return Entity{}, err
	}
	return ent, nil
}

func assignFields(e Entity, fields Fields) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		if k == "id" {
			continue
		}
		names = append(names, k)
	}
	// Plain attributes first, then relationships, each group in stable
	// order, so relationship assignment sees a fully attributed node.
	sort.Slice(names, func(i, j int) bool {
		_, ri := fields[names[i]].(string)
		_, rj := fields[names[j]].(string)
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		switch v := fields[name].(type) {
		case string:
			if _, isRel := e.typ.Field(name); isRel {
				return fmt.Errorf("model: field %s.%s expects entities, not a string", e.typ.Name, name)
			}
			e.node.SetAttr(name, v)
		case Entity:
			if err := e.Set(name, []Entity{v}); err != nil {
				return err
			}
		case []Entity:
			if err := e.Set(name, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("model: unsupported value %T for field %s.%s", v, e.typ.Name, name)
		}
	}
	return nil
}
