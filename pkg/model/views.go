package model

import (
	"fmt"

	"modelcore/pkg/xdoc"
)

// Parent is the computed view onto the owner's document parent. It is
// read-only; an entity without a parent is orphaned, which is a structural
// fault.
type Parent struct {
	Options
}

// Get returns a single-member list holding the parent entity.
func (p *Parent) Get(owner Entity) (List, error) {
	parent := owner.doc.ParentOf(owner.node)
	if parent == nil {
		return List{}, &BrokenDocumentError{Detail: fmt.Sprintf("%s is orphaned", describeEntity(owner))}
	}
	return newList(owner.schema, owner.doc, []*xdoc.Node{parent}, nil, p.Options), nil
}

// Alternate exposes the owner's own node under another registered type,
// bypassing discriminator dispatch. Read-only.
type Alternate struct {
	Options
	// Class names the type to re-wrap as.
	Class string
}

// Get returns a single-member list whose member wraps the owner's node as
// the alternate type.
func (a *Alternate) Get(owner Entity) (List, error) {
	typ, ok := owner.schema.TypeByName(a.Class)
	if !ok {
		return List{}, fmt.Errorf("model: unknown alternate type %q", a.Class)
	}
	l := newList(owner.schema, owner.doc, []*xdoc.Node{owner.node}, typ, a.Options)
	l.forced = true
	return l, nil
}

// Index is a view onto one fixed position of another list-valued field.
// Fewer members than the index requires is a structural fault.
type Index struct {
	Options
	// Wrapped names the list-valued field on the same type.
	Wrapped string
	// Position is the list index accessed.
	Position int
}

// Get returns a single-member list holding the element at the fixed
// position of the wrapped field.
func (ix *Index) Get(owner Entity) (List, error) {
	rel, ok := owner.typ.Field(ix.Wrapped)
	if !ok {
		return List{}, fmt.Errorf("model: %s has no field %q to index", owner.typ.Name, ix.Wrapped)
	}
	l, err := rel.Get(owner)
	if err != nil {
		return List{}, err
	}
	if l.Len() <= ix.Position {
		return List{}, &BrokenDocumentError{Detail: fmt.Sprintf(
			"expected at least %d members in %s.%s, found %d",
			ix.Position+1, owner.typ.Name, ix.Wrapped, l.Len())}
	}
	return l.Slice(ix.Position, ix.Position+1), nil
}

// Typecast is a subtype-filtered view of another field on the same type.
// Reads drop members outside the subtype; creation forces the subtype.
type Typecast struct {
	Options
	// Wrapped names the underlying field.
	Wrapped string
	// Class names the subtype the view narrows to.
	Class string
}

var (
	_ Mutable = (*Typecast)(nil)
	_ Creator = (*Typecast)(nil)
)

func (tc *Typecast) resolve(owner Entity) (Relationship, *EntityType, error) {
	rel, ok := owner.typ.Field(tc.Wrapped)
	if !ok {
		return nil, nil, fmt.Errorf("model: %s has no field %q to cast", owner.typ.Name, tc.Wrapped)
	}
	typ, ok := owner.schema.TypeByName(tc.Class)
	if !ok {
		return nil, nil, fmt.Errorf("model: unknown typecast type %q", tc.Class)
	}
	return rel, typ, nil
}

// Get returns the wrapped field narrowed to members of the subtype.
func (tc *Typecast) Get(owner Entity) (List, error) {
	rel, typ, err := tc.resolve(owner)
	if err != nil {
		return List{}, err
	}
	l, err := rel.Get(owner)
	if err != nil {
		return List{}, err
	}
	narrowed := l.Filter(func(e Entity) bool { return owner.schema.Assignable(e.typ, typ) })
	narrowed.elem = typ
	return narrowed, nil
}

// Insert delegates to the wrapped field after checking the subtype bound.
func (tc *Typecast) Insert(owner Entity, index int, value Entity) error {
	rel, typ, err := tc.resolve(owner)
	if err != nil {
		return err
	}
	if !owner.schema.Assignable(value.typ, typ) {
		return fmt.Errorf("model: cannot insert %s through typecast to %s", value.typ.Name, typ.Name)
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, tc.Wrapped)
	}
	return mut.Insert(owner, index, value)
}

// Remove delegates to the wrapped field.
func (tc *Typecast) Remove(owner Entity, value Entity) error {
	rel, _, err := tc.resolve(owner)
	if err != nil {
		return err
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, tc.Wrapped)
	}
	return mut.Remove(owner, value)
}

// SetAll delegates to the wrapped field after checking every bound.
func (tc *Typecast) SetAll(owner Entity, values []Entity) error {
	rel, typ, err := tc.resolve(owner)
	if err != nil {
		return err
	}
	for _, v := range values {
		if !owner.schema.Assignable(v.typ, typ) {
			return fmt.Errorf("model: cannot insert %s through typecast to %s", v.typ.Name, typ.Name)
		}
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, tc.Wrapped)
	}
	return mut.SetAll(owner, values)
}

// Create delegates to the wrapped field, forcing the subtype as hint.
func (tc *Typecast) Create(owner Entity, index int, hint string, fields Fields) (Entity, error) {
	rel, typ, err := tc.resolve(owner)
	if err != nil {
		return Entity{}, err
	}
	creator, ok := rel.(Creator)
	if !ok {
		return Entity{}, fmt.Errorf("%w: cannot create through %s.%s", ErrUnsupported, owner.typ.Name, tc.Wrapped)
	}
	if hint == "" {
		hint = typ.Name
	}
	ent, err := creator.Create(owner, index, hint, fields)
	if err != nil {
		return Entity{}, err
	}
	if !owner.schema.Assignable(ent.typ, typ) {
		// Roll the stray creation back before reporting.
		_ = owner.schema.DeleteEntity(ent, tc)
		return Entity{}, &TypeHintError{Hint: hint, Candidates: []string{typ.Name}}
	}
	return ent, nil
}

// Alias exposes another field of the same type under a second name. It
// deliberately does not take part in the purge protocol: the canonical
// field already does.
type Alias struct {
	Options
	// Target names the canonical field.
	Target string
	// Deprecated, when non-empty, is logged once per evaluation to steer
	// callers to the canonical name.
	Deprecated string
}

var (
	_ Mutable = (*Alias)(nil)
	_ Creator = (*Alias)(nil)
)

func (al *Alias) target(owner Entity) (Relationship, error) {
	rel, ok := owner.typ.Field(al.Target)
	if !ok {
		return nil, fmt.Errorf("model: alias target %s.%s does not exist", owner.typ.Name, al.Target)
	}
	return rel, nil
}

func (al *Alias) note(owner Entity) {
	if al.Deprecated != "" {
		owner.schema.logger.Warn("deprecated field alias used",
			"type", owner.typ.Name, "alias", al.Deprecated, "use", al.Target)
	}
}

func (al *Alias) Get(owner Entity) (List, error) {
	rel, err := al.target(owner)
	if err != nil {
		return List{}, err
	}
	al.note(owner)
	return rel.Get(owner)
}

func (al *Alias) Insert(owner Entity, index int, value Entity) error {
	rel, err := al.target(owner)
	if err != nil {
		return err
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, al.Target)
	}
	al.note(owner)
	return mut.Insert(owner, index, value)
}

func (al *Alias) Remove(owner Entity, value Entity) error {
	rel, err := al.target(owner)
	if err != nil {
		return err
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, al.Target)
	}
	al.note(owner)
	return mut.Remove(owner, value)
}

func (al *Alias) SetAll(owner Entity, values []Entity) error {
	rel, err := al.target(owner)
	if err != nil {
		return err
	}
	mut, ok := rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: %s.%s is read-only", ErrUnsupported, owner.typ.Name, al.Target)
	}
	al.note(owner)
	return mut.SetAll(owner, values)
}

func (al *Alias) Create(owner Entity, index int, hint string, fields Fields) (Entity, error) {
	rel, err := al.target(owner)
	if err != nil {
		return Entity{}, err
	}
	creator, ok := rel.(Creator)
	if !ok {
		return Entity{}, fmt.Errorf("%w: cannot create through %s.%s", ErrUnsupported, owner.typ.Name, al.Target)
	}
	al.note(owner)
	return creator.Create(owner, index, hint, fields)
}

// Single adapts a list-valued relationship to first-or-none semantics.
// Reads truncate to at most one member; writes pass through. Purge staging
// is forwarded to the wrapped relationship so references held through a
// Single never dangle.
type Single struct {
	// Of is the adapted relationship.
	Of Relationship
}

var _ PurgeParticipant = (*Single)(nil)

func (s *Single) options() Options { return s.Of.options() }

func (s *Single) Get(owner Entity) (List, error) {
	l, err := s.Of.Get(owner)
	if err != nil {
		return List{}, err
	}
	if l.Len() > 1 {
		return l.Slice(0, 1), nil
	}
	return l, nil
}

func (s *Single) Insert(owner Entity, index int, value Entity) error {
	mut, ok := s.Of.(Mutable)
	if !ok {
		return fmt.Errorf("%w: wrapped relationship is read-only", ErrUnsupported)
	}
	return mut.Insert(owner, index, value)
}

func (s *Single) Remove(owner Entity, value Entity) error {
	mut, ok := s.Of.(Mutable)
	if !ok {
		return fmt.Errorf("%w: wrapped relationship is read-only", ErrUnsupported)
	}
	return mut.Remove(owner, value)
}

func (s *Single) SetAll(owner Entity, values []Entity) error {
	mut, ok := s.Of.(Mutable)
	if !ok {
		return fmt.Errorf("%w: wrapped relationship is read-only", ErrUnsupported)
	}
	return mut.SetAll(owner, values)
}

func (s *Single) Create(owner Entity, index int, hint string, fields Fields) (Entity, error) {
	creator, ok := s.Of.(Creator)
	if !ok {
		return Entity{}, fmt.Errorf("%w: wrapped relationship cannot create", ErrUnsupported)
	}
	return creator.Create(owner, index, hint, fields)
}

// StagePurge forwards to the wrapped relationship when it participates.
func (s *Single) StagePurge(owner, target Entity) (PurgeAction, error) {
	if pp, ok := s.Of.(PurgeParticipant); ok {
		return pp.StagePurge(owner, target)
	}
	return nil, nil
}
