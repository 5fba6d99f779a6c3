// Package xdoc implements the tree-structured document that modelcore
// entities are projected onto: tagged nodes with ordered attributes and
// children, a document-wide identity index, and attribute-encoded links
// between nodes. The document owns every node; higher layers hold
// non-owning *Node references.
package xdoc

import "slices"

// Well-known attribute names. The identifier attribute carries the stable
// uuid of a node, the discriminator attribute carries the concrete type
// name used for polymorphic wrapping.
const (
	AttrID   = "id"
	AttrType = "type"
)

// Node is a single element of the document tree. Nodes are created and
// detached exclusively through Document methods so that the identity index
// stays consistent.
type Node struct {
	tag      string
	names    []string
	attrs    map[string]string
	children []*Node
	parent   *Node
}

func newNode(tag string) *Node {
	return &Node{tag: tag, attrs: make(map[string]string)}
}

// Tag returns the element tag of the node.
func (n *Node) Tag() string { return n.tag }

// SetTag renames the node's element tag. The identity index is unaffected.
func (n *Node) SetTag(tag string) { n.tag = tag }

// ID returns the stable identifier of the node, or "" when unassigned.
func (n *Node) ID() string { return n.attrs[AttrID] }

// Type returns the type discriminator of the node, or "" when unassigned.
func (n *Node) Type() string { return n.attrs[AttrType] }

// Attr returns the value of the named attribute. The second return value
// reports whether the attribute is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// SetAttr assigns an attribute, preserving first-set ordering for
// serialization.
func (n *Node) SetAttr(name, value string) {
	if _, ok := n.attrs[name]; !ok {
		n.names = append(n.names, name)
	}
	n.attrs[name] = value
}

// DelAttr removes an attribute. Removing an absent attribute is a no-op.
func (n *Node) DelAttr(name string) {
	if _, ok := n.attrs[name]; !ok {
		return
	}
	delete(n.attrs, name)
	n.names = slices.DeleteFunc(n.names, func(s string) bool { return s == name })
}

// AttrNames returns the attribute names in stable (first-set) order.
func (n *Node) AttrNames() []string {
	return slices.Clone(n.names)
}

// Children returns the ordered child nodes. The returned slice is a copy;
// mutating it does not affect the document.
func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th direct child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Parent returns the parent node, or nil for the document root and for
// detached nodes.
func (n *Node) Parent() *Node { return n.parent }

// ChildIndex returns the position of child below n, or -1 when child is not
// a direct child of n.
func (n *Node) ChildIndex(child *Node) int {
	return slices.Index(n.children, child)
}

func (n *Node) insertChild(i int, child *Node) {
	if i < 0 || i > len(n.children) {
		i = len(n.children)
	}
	n.children = slices.Insert(n.children, i, child)
	child.parent = n
}

func (n *Node) removeChild(child *Node) bool {
	i := slices.Index(n.children, child)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	return true
}
