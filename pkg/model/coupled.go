package model

import "fmt"

// CoupledList is an entity list bound to the owning entity and the
// originating relationship. Its mutators delegate to the relationship and
// therefore mutate the document. After every successful mutation the
// snapshot is refreshed from the relationship.
type CoupledList struct {
	List
	owner Entity
	rel   Relationship
	field string
	fixed int
}

// Owner returns the entity this list was evaluated on.
func (c *CoupledList) Owner() Entity { return c.owner }

// Create instantiates a new entity at the end of the list. The hint picks
// the concrete type when the relationship's declared class is abstract.
func (c *CoupledList) Create(hint string, fields Fields) (Entity, error) {
	return c.CreateAt(c.Len(), hint, fields)
}

// CreateAt instantiates a new entity at list index i.
func (c *CoupledList) CreateAt(i int, hint string, fields Fields) (Entity, error) {
	creator, ok := c.rel.(Creator)
	if !ok {
		return Entity{}, fmt.Errorf("%w: cannot create through %s", ErrUnsupported, c.describe())
	}
	if c.fixed > 0 && c.Len() >= c.fixed {
		return Entity{}, fmt.Errorf("%w: %s is fixed at %d members", ErrUnsupported, c.describe(), c.fixed)
	}
	ent, err := creator.Create(c.owner, i, hint, fields)
	if err != nil {
		return Entity{}, err
	}
	c.refresh()
	return ent, nil
}

// Insert places an existing entity so that it appears at list index i.
func (c *CoupledList) Insert(i int, value Entity) error {
	mut, ok := c.rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: cannot insert into %s", ErrUnsupported, c.describe())
	}
	if c.fixed > 0 && c.Len() >= c.fixed {
		return fmt.Errorf("%w: %s is fixed at %d members", ErrUnsupported, c.describe(), c.fixed)
	}
	if err := mut.Insert(c.owner, i, value); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// SetAt replaces the member at list index i. The length is unchanged, so
// fixed-length bounds permit it.
func (c *CoupledList) SetAt(i int, value Entity) error {
	mut, ok := c.rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: cannot overwrite members of %s", ErrUnsupported, c.describe())
	}
	if i < 0 || i >= c.Len() {
		return fmt.Errorf("model: index %d out of range in %s", i, c.describe())
	}
	values := c.Items()
	values[i] = value
	if err := mut.SetAll(c.owner, values); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// Remove deletes the member at list index i through the relationship:
// containment removes the subtree (after the purge protocol), association
// drops the link, allocation removes the link-object.
func (c *CoupledList) Remove(i int) error {
	mut, ok := c.rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: cannot delete from %s", ErrUnsupported, c.describe())
	}
	if c.fixed > 0 && c.Len() <= c.fixed {
		return fmt.Errorf("%w: %s is fixed at %d members", ErrUnsupported, c.describe(), c.fixed)
	}
	if i < 0 || i >= c.Len() {
		return fmt.Errorf("model: index %d out of range in %s", i, c.describe())
	}
	if err := mut.Remove(c.owner, c.At(i)); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// RemoveValue deletes the given member; see Remove.
func (c *CoupledList) RemoveValue(value Entity) error {
	i := c.IndexOf(value)
	if i < 0 {
		return fmt.Errorf("model: entity not in %s", c.describe())
	}
	return c.Remove(i)
}

// SetAll replaces the whole membership.
func (c *CoupledList) SetAll(values []Entity) error {
	mut, ok := c.rel.(Mutable)
	if !ok {
		return fmt.Errorf("%w: cannot overwrite %s", ErrUnsupported, c.describe())
	}
	if c.fixed > 0 && len(values) != c.fixed {
		return fmt.Errorf("%w: %s must keep exactly %d members", ErrUnsupported, c.describe(), c.fixed)
	}
	if err := mut.SetAll(c.owner, values); err != nil {
		return err
	}
	c.refresh()
	return nil
}

func (c *CoupledList) refresh() {
	if l, err := c.rel.Get(c.owner); err == nil {
		c.List = l
	}
}

func (c *CoupledList) describe() string {
	return fmt.Sprintf("%s.%s", c.owner.typ.Name, c.field)
}
