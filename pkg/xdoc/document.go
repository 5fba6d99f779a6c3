package xdoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrBrokenLink reports a link whose target identifier is not present in the
// document's identity index.
var ErrBrokenLink = errors.New("xdoc: broken link")

// Document owns a node tree and maintains the global id→node identity index
// used for link resolution. A document is a single mutable resource with no
// internal locking; callers must serialize access.
type Document struct {
	root  *Node
	index map[string]*Node
}

// New creates a document with a fresh root node of the given tag.
func New(rootTag string) *Document {
	d := &Document{index: make(map[string]*Node)}
	d.root = newNode(rootTag)
	return d
}

// Root returns the document's root node.
func (d *Document) Root() *Node { return d.root }

// ByID looks a node up in the identity index.
func (d *Document) ByID(id string) (*Node, bool) {
	n, ok := d.index[id]
	return n, ok
}

// AllocateID reserves a unique identifier. When requested is empty, a fresh
// uuid is generated. A requested identifier that is already indexed is an
// error. The identifier is not bound to a node until IndexID is called; an
// unbound identifier needs no release because the index only tracks bound
// ones.
func (d *Document) AllocateID(requested string) (string, error) {
	if requested == "" {
		for {
			id := uuid.NewString()
			if _, taken := d.index[id]; !taken {
				return id, nil
			}
		}
	}
	if _, taken := d.index[requested]; taken {
		return "", fmt.Errorf("xdoc: identifier %q already in use", requested)
	}
	return requested, nil
}

// IndexID registers the node's id in the identity index. Nodes without an id
// are skipped. Registering a second node under an existing id is an error.
func (d *Document) IndexID(n *Node) error {
	id := n.ID()
	if id == "" {
		return nil
	}
	if have, ok := d.index[id]; ok && have != n {
		return fmt.Errorf("xdoc: identifier %q already bound to another node", id)
	}
	d.index[id] = n
	return nil
}

// DeindexID retires the identifiers of the node and its entire subtree from
// the identity index.
func (d *Document) DeindexID(n *Node) {
	d.walk(n, func(m *Node) {
		if id := m.ID(); id != "" {
			if have, ok := d.index[id]; ok && have == m {
				delete(d.index, id)
			}
		}
	})
}

// NewChild creates a node with the given tag and inserts it below parent at
// index i (clamped to the child count). The node carries no id until the
// caller assigns one and indexes it.
func (d *Document) NewChild(parent *Node, i int, tag string) *Node {
	n := newNode(tag)
	parent.insertChild(i, n)
	return n
}

// MoveChild re-attaches an existing node below parent at index i. The node
// is detached from its previous parent first. Index entries are unaffected.
func (d *Document) MoveChild(parent *Node, i int, n *Node) {
	if n.parent != nil {
		if n.parent == parent {
			// Re-derive the insertion point after removal shifts siblings.
			old := parent.ChildIndex(n)
			if old >= 0 && old < i {
				i--
			}
		}
		n.parent.removeChild(n)
	}
	parent.insertChild(i, n)
}

// Detach removes the subtree rooted at n from its parent and retires every
// id in the subtree from the identity index. Detaching the root or an
// already detached node is an error.
func (d *Document) Detach(n *Node) error {
	if n == d.root {
		return errors.New("xdoc: cannot detach the document root")
	}
	if n.parent == nil {
		return errors.New("xdoc: node is already detached")
	}
	d.DeindexID(n)
	n.parent.removeChild(n)
	return nil
}

// ParentOf returns the parent of n, or nil when n is the root or detached.
func (d *Document) ParentOf(n *Node) *Node { return n.parent }

// ChildrenOfType returns the direct children of n whose tag matches any of
// the given tags, in document order. With no tags, all children match.
func (d *Document) ChildrenOfType(n *Node, tags ...string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if matchTag(c, tags) {
			out = append(out, c)
		}
	}
	return out
}

// DescendantsOfType returns every descendant of n (excluding n itself)
// whose tag matches any of the given tags, in document order.
func (d *Document) DescendantsOfType(n *Node, tags ...string) []*Node {
	var out []*Node
	for _, c := range n.children {
		d.walk(c, func(m *Node) {
			if matchTag(m, tags) {
				out = append(out, m)
			}
		})
	}
	return out
}

// Walk visits n and its descendants in document order.
func (d *Document) Walk(n *Node, visit func(*Node)) {
	d.walk(n, visit)
}

func (d *Document) walk(n *Node, visit func(*Node)) {
	visit(n)
	for _, c := range n.children {
		d.walk(c, visit)
	}
}

func matchTag(n *Node, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.tag == t {
			return true
		}
	}
	return false
}

// MakeLink produces the link string that, stored on an attribute of from,
// resolves back to to. Links carry the target id in "#<id>" form.
func (d *Document) MakeLink(from, to *Node) string {
	return "#" + to.ID()
}

// ResolveLink resolves a single link string. Anything before the last '#'
// is a type qualifier and ignored. A missing or unindexed target yields
// ErrBrokenLink.
func (d *Document) ResolveLink(from *Node, link string) (*Node, error) {
	i := strings.LastIndexByte(link, '#')
	if i < 0 || i == len(link)-1 {
		return nil, fmt.Errorf("%w: malformed %q", ErrBrokenLink, link)
	}
	id := link[i+1:]
	n, ok := d.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: no node with id %q", ErrBrokenLink, id)
	}
	return n, nil
}

// ResolveLinks resolves a whitespace-separated link list. When ignoreBroken
// is true broken links are skipped, otherwise the first broken link aborts.
func (d *Document) ResolveLinks(from *Node, links string, ignoreBroken bool) ([]*Node, error) {
	var out []*Node
	for _, link := range strings.Fields(links) {
		n, err := d.ResolveLink(from, link)
		if err != nil {
			if ignoreBroken {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
