package service

import (
	"context"
	"fmt"

	"modelcore/pkg/model"
	"modelcore/pkg/xdoc"
)

// Fault is one integrity finding in a document.
type Fault struct {
	EntityID string `json:"entity_id"`
	Type     string `json:"type"`
	Field    string `json:"field,omitempty"`
	Detail   string `json:"detail"`
}

// Report summarizes an integrity check over one document.
type Report struct {
	Document string  `json:"document"`
	Entities int     `json:"entities"`
	Faults   []Fault `json:"faults,omitempty"`
}

// Clean reports whether the check found no faults.
func (r Report) Clean() bool { return len(r.Faults) == 0 }

// Check walks the named document and evaluates every declared field of
// every identified entity, reporting structural faults: members of the
// wrong type, orphaned view targets, dangling reference links and
// fixed-length fields holding the wrong number of members. The document
// is not modified.
func (s *Service) Check(ctx context.Context, name string) (rep Report, err error) {
	done := s.instrument(ctx, "check")
	defer func() { done(err) }()
	doc, ok := s.Document(name)
	if !ok {
		return Report{}, fmt.Errorf("service: no document %q", name)
	}
	rep = Report{Document: name}
	doc.Walk(doc.Root(), func(n *xdoc.Node) {
		if n.ID() == "" {
			return
		}
		rep.Entities++
		ent := s.schema.Wrap(doc, n)
		for _, field := range ent.Type().FieldNames() {
			rel, _ := ent.Type().Field(field)
			got, gerr := ent.Get(field)
			if gerr != nil {
				rep.Faults = append(rep.Faults, Fault{
					EntityID: n.ID(),
					Type:     ent.Type().Name,
					Field:    field,
					Detail:   gerr.Error(),
				})
				continue
			}
			if assoc, ok := rel.(*model.Association); ok {
				// Tolerant reads skip dangling links; surface them here.
				if raw, ok := n.Attr(assoc.Attr); ok {
					if _, lerr := doc.ResolveLinks(n, raw, false); lerr != nil {
						rep.Faults = append(rep.Faults, Fault{
							EntityID: n.ID(),
							Type:     ent.Type().Name,
							Field:    field,
							Detail:   lerr.Error(),
						})
					}
				}
				// Mutations enforce the bound; a violating document can
				// still arrive from outside.
				if assoc.FixedLength > 0 && got.Len() != assoc.FixedLength {
					rep.Faults = append(rep.Faults, Fault{
						EntityID: n.ID(),
						Type:     ent.Type().Name,
						Field:    field,
						Detail: fmt.Sprintf("%d members, fixed at %d",
							got.Len(), assoc.FixedLength),
					})
				}
			}
		}
	})
	if !rep.Clean() {
		s.logger.Warn("integrity check found faults", "name", name, "faults", len(rep.Faults))
	}
	return rep, nil
}
