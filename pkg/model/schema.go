package model

import (
	"fmt"
	"sort"
	"strings"

	"modelcore/pkg/xdoc"
)

// RootTypeName is the name of the implicit fallback type every schema
// carries. Nodes with an unknown or empty discriminator wrap as this type.
const RootTypeName = "Element"

// EntityType declares one concrete or abstract type of the schema: its
// discriminator, default document tag, inheritance parent, required
// construction fields and the ordered relationship table.
type EntityType struct {
	Name          string
	Discriminator string
	Tag           string
	Abstract      bool
	Parent        string
	Required      []string

	fields map[string]Relationship
	order  []string
	schema *Schema
}

// NewType declares a type whose discriminator defaults to its name.
func NewType(name, tag string) *EntityType {
	return &EntityType{Name: name, Discriminator: name, Tag: tag}
}

// Define attaches a relationship under the given field name and returns the
// type for chaining. Redefining a field replaces it.
func (t *EntityType) Define(field string, rel Relationship) *EntityType {
	if t.fields == nil {
		t.fields = make(map[string]Relationship)
	}
	if _, ok := t.fields[field]; !ok {
		t.order = append(t.order, field)
	}
	t.fields[field] = rel
	return t
}

// Field resolves a field name to its relationship, walking the inheritance
// chain from most to least specific.
func (t *EntityType) Field(name string) (Relationship, bool) {
	for cur := t; cur != nil; cur = cur.parentType() {
		if rel, ok := cur.fields[name]; ok {
			return rel, true
		}
	}
	return nil, false
}

// FieldNames returns all field names visible on the type, inherited ones
// first, in declaration order.
func (t *EntityType) FieldNames() []string {
	var chain []*EntityType
	for cur := t; cur != nil; cur = cur.parentType() {
		chain = append(chain, cur)
	}
	seen := make(map[string]bool)
	var out []string
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].order {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func (t *EntityType) parentType() *EntityType {
	if t.schema == nil || t.Parent == "" {
		return nil
	}
	return t.schema.types[t.Parent]
}

func (t *EntityType) requiredFields() []string {
	seen := make(map[string]bool)
	var out []string
	for cur := t; cur != nil; cur = cur.parentType() {
		for _, f := range cur.Required {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Schema is the static registry of entity types and their relationships.
// It is an explicitly constructed value with no package-level state; one
// schema may serve any number of documents.
type Schema struct {
	types  map[string]*EntityType
	byDisc map[string]*EntityType
	root   *EntityType
	logger Logger
}

// SchemaOption configures a schema at construction time.
type SchemaOption func(*Schema)

// WithLogger routes framework diagnostics, notably swallowed purge cleanup
// failures, to the given logger.
func WithLogger(l Logger) SchemaOption {
	return func(s *Schema) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSchema creates a schema pre-populated with the fallback root type.
func NewSchema(opts ...SchemaOption) *Schema {
	s := &Schema{
		types:  make(map[string]*EntityType),
		byDisc: make(map[string]*EntityType),
		logger: noopLogger{},
	}
	root := &EntityType{Name: RootTypeName, Tag: "element"}
	s.root = root
	root.schema = s
	s.types[root.Name] = root
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a type to the schema. Types without an explicit parent
// inherit from the root type. Duplicate names or discriminators are errors.
func (s *Schema) Register(t *EntityType) error {
	if t.Name == "" {
		return fmt.Errorf("model: cannot register a type without a name")
	}
	if _, ok := s.types[t.Name]; ok {
		return fmt.Errorf("model: type %q already registered", t.Name)
	}
	if t.Discriminator != "" {
		if prev, ok := s.byDisc[t.Discriminator]; ok {
			return fmt.Errorf("model: discriminator %q already used by %q", t.Discriminator, prev.Name)
		}
	}
	if t.Parent == "" && t.Name != RootTypeName {
		t.Parent = RootTypeName
	}
	t.schema = s
	s.types[t.Name] = t
	if t.Discriminator != "" {
		s.byDisc[t.Discriminator] = t
	}
	return nil
}

// MustRegister is Register for static schema tables; it panics on error.
func (s *Schema) MustRegister(t *EntityType) *EntityType {
	if err := s.Register(t); err != nil {
		panic(err)
	}
	return t
}

// TypeByName looks a type up by its registered name.
func (s *Schema) TypeByName(name string) (*EntityType, bool) {
	t, ok := s.types[name]
	return t, ok
}

// TypeByDiscriminator looks a type up by its wire discriminator.
func (s *Schema) TypeByDiscriminator(disc string) (*EntityType, bool) {
	t, ok := s.byDisc[disc]
	return t, ok
}

// Root returns the fallback type.
func (s *Schema) Root() *EntityType { return s.root }

// Logger returns the configured diagnostics logger.
func (s *Schema) Logger() Logger { return s.logger }

// Assignable reports whether sub is t or a transitive subtype of t. Every
// type is assignable to the root type.
func (s *Schema) Assignable(sub, super *EntityType) bool {
	if super == nil || super == s.root {
		return true
	}
	for cur := sub; cur != nil; cur = cur.parentType() {
		if cur == super {
			return true
		}
	}
	return false
}

// Wrap constructs the entity for an existing node, dispatching to the most
// specific registered type for the node's discriminator. Unknown
// discriminators fall back to the root type.
func (s *Schema) Wrap(doc *xdoc.Document, n *xdoc.Node) Entity {
	typ := s.root
	if t, ok := s.byDisc[n.Type()]; ok {
		typ = t
	}
	return Entity{schema: s, doc: doc, node: n, typ: typ}
}

// ResolveHint picks the concrete type to instantiate below base. An empty
// hint is accepted when base itself is concrete or exactly one concrete
// subtype exists; otherwise the choice is ambiguous. A non-empty hint must
// match exactly one candidate by name (case-insensitive) or through the
// supplied alias table.
func (s *Schema) ResolveHint(base *EntityType, hint string, aliases map[string]string) (*EntityType, error) {
	if base == nil {
		base = s.root
	}
	if alias, ok := aliases[strings.ToLower(hint)]; ok {
		hint = alias
	}
	var candidates []*EntityType
	for _, t := range s.types {
		if !t.Abstract && t != s.root && s.Assignable(t, base) {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	if hint == "" {
		if !base.Abstract && base != s.root {
			return base, nil
		}
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		return nil, &TypeHintError{Hint: hint, Candidates: typeNames(candidates)}
	}

	var matched []*EntityType
	for _, t := range candidates {
		if strings.EqualFold(t.Name, hint) || strings.EqualFold(t.Discriminator, hint) {
			matched = append(matched, t)
		}
	}
	if len(matched) == 1 {
		return matched[0], nil
	}
	return nil, &TypeHintError{Hint: hint, Candidates: typeNames(matched)}
}

func typeNames(types []*EntityType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name
	}
	return out
}
