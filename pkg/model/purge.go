package model

import (
	"fmt"

	"modelcore/pkg/xdoc"
)

// PurgeState tracks the two-phase purge protocol.
type PurgeState int

const (
	// PurgeCollecting is the initial state: participants are asked to
	// stage cleanup actions without mutating anything.
	PurgeCollecting PurgeState = iota
	// PurgeCommitted means the target subtree has been detached and its
	// identifiers retired.
	PurgeCommitted
	// PurgePurged means every staged cleanup action has run.
	PurgePurged
	// PurgeAborted means a participant rejected the deletion during
	// collection; nothing was mutated.
	PurgeAborted
)

type stagedAction struct {
	owner  Entity
	target Entity
	action PurgeAction
}

// PurgeTransaction is the explicit two-phase commit object behind entity
// deletion. Stage collects cleanup actions from every reference-holding
// relationship in the schema; Commit detaches the target and then runs the
// staged actions, logging rather than raising their failures. Once Commit
// begins the deletion cannot be cancelled.
type PurgeTransaction struct {
	schema    *Schema
	target    Entity
	initiator Relationship
	staged    []stagedAction
	state     PurgeState
	failures  int
}

// NewPurge prepares a purge transaction for deleting target. The initiator
// relationship, when non-nil, is excluded from collection; it performs the
// deletion itself.
func (s *Schema) NewPurge(target Entity, initiator Relationship) *PurgeTransaction {
	return &PurgeTransaction{schema: s, target: target, initiator: initiator}
}

// State returns the transaction state.
func (tx *PurgeTransaction) State() PurgeState { return tx.state }

// CleanupFailures returns how many staged actions failed after commit.
func (tx *PurgeTransaction) CleanupFailures() int { return tx.failures }

// Stage asks every writable, reference-holding relationship other than the
// initiator to find references to the target subtree and stage cleanup,
// without mutating anything. Any participant error aborts the whole
// deletion: the target stays, no staged action is applied.
func (tx *PurgeTransaction) Stage() error {
	if tx.state != PurgeCollecting {
		return fmt.Errorf("model: purge transaction already %v", tx.state)
	}
	doc := tx.target.doc

	// Every identified node in the doomed subtree is a purge victim:
	// references to descendants must not dangle either.
	var victims []Entity
	inSubtree := make(map[*xdoc.Node]bool)
	doc.Walk(tx.target.node, func(n *xdoc.Node) {
		inSubtree[n] = true
		if n.ID() != "" {
			victims = append(victims, tx.schema.Wrap(doc, n))
		}
	})

	var owners []Entity
	doc.Walk(doc.Root(), func(n *xdoc.Node) {
		if !inSubtree[n] {
			owners = append(owners, tx.schema.Wrap(doc, n))
		}
	})

	for _, owner := range owners {
		for _, field := range owner.typ.FieldNames() {
			rel, _ := owner.typ.Field(field)
			if rel == tx.initiator {
				continue
			}
			pp, ok := rel.(PurgeParticipant)
			if !ok {
				continue
			}
			for _, victim := range victims {
				action, err := pp.StagePurge(owner, victim)
				if err != nil {
					tx.state = PurgeAborted
					tx.staged = nil
					return err
				}
				if action != nil {
					tx.staged = append(tx.staged, stagedAction{owner: owner, target: victim, action: action})
				}
			}
		}
	}
	return nil
}

// Commit detaches the target subtree, retires its identifiers, and then
// runs every staged cleanup action. Action failures are logged and counted,
// never raised: the deletion has already happened and is not rolled back.
func (tx *PurgeTransaction) Commit() error {
	if tx.state != PurgeCollecting {
		return fmt.Errorf("model: purge transaction already %v", tx.state)
	}
	if err := tx.target.doc.Detach(tx.target.node); err != nil {
		tx.state = PurgeAborted
		return err
	}
	tx.state = PurgeCommitted

	for _, s := range tx.staged {
		if err := s.action(); err != nil {
			tx.failures++
			tx.schema.logger.Error("purge cleanup failed",
				"owner", describeEntity(s.owner),
				"target", describeEntity(s.target),
				"error", err)
		}
	}
	tx.state = PurgePurged
	return nil
}

// DeleteEntity removes target's subtree from the document, first running
// the reference-purge protocol across the schema so that no dangling
// relationship survives. The initiator relationship is excluded from
// purging.
func (s *Schema) DeleteEntity(target Entity, initiator Relationship) error {
	if target.IsZero() {
		return fmt.Errorf("model: cannot delete a zero entity")
	}
	tx := s.NewPurge(target, initiator)
	if err := tx.Stage(); err != nil {
		return err
	}
	return tx.Commit()
}
