package xdoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Parse reads an XML document and builds the node tree and identity index.
// Element and attribute order is preserved; character data outside elements
// is discarded (the document model is purely structural).
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	d := &Document{index: make(map[string]*Node)}
	var stack []*Node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xdoc: parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := newNode(t.Name.Local)
			for _, a := range t.Attr {
				n.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) == 0 {
				if d.root != nil {
					return nil, errors.New("xdoc: parse: multiple root elements")
				}
				d.root = n
			} else {
				parent := stack[len(stack)-1]
				parent.insertChild(parent.NumChildren(), n)
			}
			if err := d.IndexID(n); err != nil {
				return nil, fmt.Errorf("xdoc: parse: %w", err)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if d.root == nil {
		return nil, errors.New("xdoc: parse: empty document")
	}
	return d, nil
}

// WriteTo serializes the document as indented XML. The output parses back
// into an equal tree: same tags, attributes in the same order, children in
// the same order.
func (d *Document) WriteTo(w io.Writer) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeNode(enc, d.root); err != nil {
		return fmt.Errorf("xdoc: write: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("xdoc: write: %w", err)
	}
	return nil
}

func writeNode(enc *xml.Encoder, n *Node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.tag}}
	for _, name := range n.names {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: name},
			Value: n.attrs[name],
		})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := writeNode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}
