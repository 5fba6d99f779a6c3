package model

// Options carries the list behavior shared by every relationship kind: the
// declared map-key field for string indexing and an optional fixed length
// that mutations may never cross.
type Options struct {
	// MapKey names the field compared when the resulting list is indexed
	// with a string. Empty disables string indexing.
	MapKey string
	// FixedLength, when non-zero, pins the list to exactly this many
	// members; inserts and deletes beyond the bound are rejected.
	FixedLength int
}

func (o Options) options() Options { return o }

// Fields initializes attributes and relationships of a freshly created
// entity. String values assign raw attributes; Entity and []Entity values
// assign through the named relationship.
type Fields map[string]any

// Relationship is the uniform capability contract every accessor kind
// implements: evaluating it against an owner yields an ordered entity list.
// The optional capability interfaces below extend it with mutation,
// creation and purge participation.
type Relationship interface {
	// Get evaluates the relationship for the owner. The returned list is
	// decoupled: mutating it never touches the document.
	Get(owner Entity) (List, error)
	options() Options
}

// Mutable is implemented by relationships that support rewriting their
// membership in the document.
type Mutable interface {
	Relationship
	// Insert places value so that re-evaluating the relationship shows it
	// at the given list index.
	Insert(owner Entity, index int, value Entity) error
	// Remove takes value out of the relationship. What that means depends
	// on the kind: containment deletes the subtree, association drops the
	// link, allocation removes the link-object.
	Remove(owner Entity, value Entity) error
	// SetAll replaces the whole membership.
	SetAll(owner Entity, values []Entity) error
}

// Creator is implemented by relationships through which new entities can be
// created in place.
type Creator interface {
	Relationship
	// Create instantiates a new entity at the given list index. The hint
	// selects the concrete type when the declared class is abstract.
	Create(owner Entity, index int, hint string, fields Fields) (Entity, error)
}

// PurgeAction is a staged post-commit cleanup step. It runs after the
// deletion target has been detached; failures are logged, never raised.
type PurgeAction func() error

// PurgeParticipant is implemented by relationships that store references
// and therefore take part in the two-phase purge protocol. StagePurge must
// not mutate anything; it inspects the owner for references to target and
// returns the staged cleanup, or nil when it holds none. An error aborts
// the whole deletion.
type PurgeParticipant interface {
	StagePurge(owner, target Entity) (PurgeAction, error)
}
