package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported reports an operation that the addressed relationship does
// not implement, such as writing through a read-only view or creating
// through a relationship that cannot create. It is never retried.
var ErrUnsupported = errors.New("model: unsupported operation")

// DuplicateMemberError is raised by unique Allocation inserts when the
// target is already a member of the owner's field.
type DuplicateMemberError struct {
	Owner  Entity
	Field  string
	Target Entity
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("model: duplicate member %s in %s.%s",
		describeEntity(e.Target), describeEntity(e.Owner), e.Field)
}

// KeyError reports a failed string lookup into a list: either no element
// matched the key, or more than one did.
type KeyError struct {
	Key      string
	Multiple bool
}

func (e *KeyError) Error() string {
	if e.Multiple {
		return fmt.Sprintf("model: multiple matches for key %q", e.Key)
	}
	return fmt.Sprintf("model: no match for key %q", e.Key)
}

// TypeHintError reports a creation type hint that matched zero or more than
// one concrete candidate type.
type TypeHintError struct {
	Hint       string
	Candidates []string
}

func (e *TypeHintError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("model: no type matches hint %q", e.Hint)
	}
	return fmt.Sprintf("model: ambiguous hint %q, candidates: %s",
		e.Hint, strings.Join(e.Candidates, ", "))
}

// BrokenDocumentError reports a structural integrity fault: the document
// holds fewer or different elements than an invariant requires. It is a
// programmer-visible fault, not a recoverable condition.
type BrokenDocumentError struct {
	Detail string
}

func (e *BrokenDocumentError) Error() string {
	return "model: broken document: " + e.Detail
}

// MissingFieldsError reports required construction fields that were not
// supplied. It is raised before any node is created.
type MissingFieldsError struct {
	Type    string
	Missing []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("model: missing required fields for %s: %s",
		e.Type, strings.Join(e.Missing, ", "))
}

func describeEntity(e Entity) string {
	if e.IsZero() {
		return "<none>"
	}
	name := e.typ.Name
	if n, ok := e.node.Attr("name"); ok && n != "" {
		return fmt.Sprintf("%s %q", name, n)
	}
	return fmt.Sprintf("%s %s", name, e.node.ID())
}
