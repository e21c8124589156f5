package svgdom

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
)

// Serialize writes the document as self-contained markup:
// the root element always declares the SVG and xlink namespaces,
// and attributes in unknown namespaces are dropped.
func (d *Document) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	writeElement(bw, d.root, SVGNamespace, true)
	return bw.Flush()
}

// Markup returns the serialized document.
func (d *Document) Markup() []byte {
	var buf bytes.Buffer
	_ = d.Serialize(&buf) // writing to a bytes.Buffer never fails
	return buf.Bytes()
}

func attrName(name xml.Name) (string, bool) {
	switch name.Space {
	case "":
		if name.Local == "xmlns" {
			return "", false // written by the serializer
		}
		return name.Local, true
	case "xmlns":
		return "", false
	case XLinkNamespace:
		return "xlink:" + name.Local, true
	case xmlNamespace:
		return "xml:" + name.Local, true
	default:
		return "", false
	}
}

func writeEscaped(w *bufio.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}

// writeElement writes e, whose parent is in the namespace parentSpace
func writeElement(w *bufio.Writer, e *Element, parentSpace string, isRoot bool) {
	w.WriteByte('<')
	w.WriteString(e.Tag)
	space := e.Space
	if space == "" {
		space = parentSpace
	}
	if isRoot {
		w.WriteString(` xmlns="` + space + `" xmlns:xlink="` + XLinkNamespace + `"`)
	} else if space != parentSpace {
		w.WriteString(` xmlns="`)
		writeEscaped(w, space)
		w.WriteByte('"')
	}
	for _, attr := range e.Attrs {
		name, ok := attrName(attr.Name)
		if !ok {
			continue
		}
		w.WriteByte(' ')
		w.WriteString(name)
		w.WriteString(`="`)
		writeEscaped(w, attr.Value)
		w.WriteByte('"')
	}
	if len(e.Children) == 0 {
		w.WriteString("/>")
		return
	}
	w.WriteByte('>')
	for _, child := range e.Children {
		switch child := child.(type) {
		case *Element:
			writeElement(w, child, space, false)
		case *CharData:
			writeEscaped(w, child.Data)
		}
	}
	w.WriteString("</")
	w.WriteString(e.Tag)
	w.WriteByte('>')
}
