// Package svgdom provides a mutable, in-memory SVG document tree:
// parsing, deep cloning, id lookup, tree walks, CSS style resolution
// and serialization back to self-contained markup.
package svgdom

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	SVGNamespace   = "http://www.w3.org/2000/svg"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
)

var errNoRoot = errors.New("svgdom: document has no root element")

// Node is either an *Element or a *CharData.
type Node interface {
	isNode()
}

// CharData is a text node.
type CharData struct {
	Data string
}

// Element is an XML element of a Document.
type Element struct {
	// Space is the namespace URL of the element, Tag its local name.
	Space, Tag string
	// Attrs stores the attributes, with Name.Space holding
	// the namespace URL (or "xmlns" for prefix declarations).
	Attrs    []xml.Attr
	Children []Node

	parent *Element
	doc    *Document
}

func (*CharData) isNode() {}
func (*Element) isNode()  {}

// Document is a tree of elements, with a single root.
type Document struct {
	root *Element

	sheet      []styleRule // cached rules of the <style> elements
	sheetValid bool
}

// Parse reads an XML document from r.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity
	doc := new(Document)
	var stack []*Element
	for {
		t, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok := t.(type) {
		case xml.StartElement:
			el := &Element{Space: tok.Name.Space, Tag: tok.Name.Local, doc: doc}
			el.Attrs = append(el.Attrs, tok.Attr...)
			if len(stack) == 0 {
				if doc.root != nil {
					return nil, errors.New("svgdom: multiple root elements")
				}
				doc.root = el
			} else {
				parent := stack[len(stack)-1]
				el.parent = parent
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			// merge adjacent text (CDATA sections are split by the decoder)
			if n := len(parent.Children); n > 0 {
				if cd, ok := parent.Children[n-1].(*CharData); ok {
					cd.Data += string(tok)
					continue
				}
			}
			parent.Children = append(parent.Children, &CharData{Data: string(tok)})
		}
	}
	if doc.root == nil {
		return nil, errNoRoot
	}
	return doc, nil
}

// ParseString is a convenience wrapper for Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads the named file.
func ParseFile(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Root returns the root element.
func (d *Document) Root() *Element { return d.root }

// IsSVG returns true if the root element is an <svg> element.
func (d *Document) IsSVG() bool {
	return d.root != nil && d.root.Tag == "svg" && (d.root.Space == SVGNamespace || d.root.Space == "")
}

// ElementByID returns the first element (in document order)
// with the given id, or nil.
func (d *Document) ElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	var found *Element
	d.root.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if v, ok := el.Attr("id"); ok && v == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := new(Document)
	out.root = d.root.cloneInto(out, nil)
	return out
}

// Clone returns a deep copy of e, owned by the same document
// but not attached to the tree.
func (e *Element) Clone() *Element { return e.cloneInto(e.doc, nil) }

func (e *Element) cloneInto(doc *Document, parent *Element) *Element {
	out := &Element{Space: e.Space, Tag: e.Tag, parent: parent, doc: doc}
	out.Attrs = append([]xml.Attr(nil), e.Attrs...)
	out.Children = make([]Node, len(e.Children))
	for i, child := range e.Children {
		switch child := child.(type) {
		case *Element:
			out.Children[i] = child.cloneInto(doc, out)
		case *CharData:
			out.Children[i] = &CharData{Data: child.Data}
		}
	}
	return out
}

// Document returns the document owning e.
func (e *Element) Document() *Document { return e.doc }

// Parent returns the parent element, or nil for the root.
func (e *Element) Parent() *Element { return e.parent }

// Ancestors returns the chain of parents, from the direct
// parent up to the root.
func (e *Element) Ancestors() []*Element {
	var out []*Element
	for p := e.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Contains returns true if other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	for p := other; p != nil; p = p.parent {
		if p == e {
			return true
		}
	}
	return false
}

// Walk calls fn on e and its descendant elements, in document order.
// Children of an element are skipped when fn returns false.
func (e *Element) Walk(fn func(el *Element) bool) {
	if !fn(e) {
		return
	}
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			el.Walk(fn)
		}
	}
}

// Descendants returns the descendant elements of e (e excluded),
// in document order.
func (e *Element) Descendants() []*Element {
	var out []*Element
	e.Walk(func(el *Element) bool {
		if el != e {
			out = append(out, el)
		}
		return true
	})
	return out
}

// ChildElements returns the element children of e.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// Text returns the concatenated text of e and its descendants.
func (e *Element) Text() string {
	var b strings.Builder
	e.writeText(&b)
	return b.String()
}

func (e *Element) writeText(b *strings.Builder) {
	for _, child := range e.Children {
		switch child := child.(type) {
		case *CharData:
			b.WriteString(child.Data)
		case *Element:
			child.writeText(b)
		}
	}
}

// AppendChild adds n as last child of e. Elements are
// re-parented.
func (e *Element) AppendChild(n Node) {
	if el, ok := n.(*Element); ok {
		el.parent = e
		el.Walk(func(sub *Element) bool {
			sub.doc = e.doc
			return true
		})
	}
	e.Children = append(e.Children, n)
	e.invalidate()
}

// invalidate drops the cached style sheet
func (e *Element) invalidate() {
	if e.doc != nil {
		e.doc.sheetValid = false
	}
}

func isPlainAttr(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == "" || name.Space == XLinkNamespace)
}

// Attr returns the value of the attribute with the given local name,
// either without namespace or in the xlink namespace.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Attrs {
		if isPlainAttr(attr.Name, name) {
			return attr.Value, true
		}
	}
	return "", false
}

// ID returns the id attribute, or an empty string.
func (e *Element) ID() string {
	id, _ := e.Attr("id")
	return id
}

// SetAttr sets (or adds) the attribute with the given local name.
func (e *Element) SetAttr(name, value string) {
	for i, attr := range e.Attrs {
		if isPlainAttr(attr.Name, name) {
			e.Attrs[i].Value = value
			e.invalidate()
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	e.invalidate()
}

// RemoveAttr removes the attribute with the given local name, if any.
func (e *Element) RemoveAttr(name string) {
	out := e.Attrs[:0]
	for _, attr := range e.Attrs {
		if !isPlainAttr(attr.Name, name) {
			out = append(out, attr)
		}
	}
	e.Attrs = out
	e.invalidate()
}
