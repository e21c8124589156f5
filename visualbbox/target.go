package visualbbox

import (
	"github.com/benoitkugler/svgbbox/svgdom"
)

// Target designates an element, either directly or by id.
// Build it with ByElement or ByID.
type Target struct {
	element *svgdom.Element

	doc *svgdom.Document
	id  string
}

// ByElement returns a target for el, which must belong to an SVG document.
func ByElement(el *svgdom.Element) Target { return Target{element: el} }

// ByID returns a target for the element of doc with the given id.
func ByID(doc *svgdom.Document, id string) Target { return Target{doc: doc, id: id} }

func (t Target) String() string {
	if t.element != nil {
		return "<" + t.element.Tag + ">"
	}
	return "#" + t.id
}

// resolve returns the targeted element, which belongs
// to an SVG document.
func (t Target) resolve() (*svgdom.Element, error) {
	el := t.element
	if el == nil {
		if t.doc == nil || t.id == "" {
			return nil, &NotFoundError{ID: t.id, Reason: "empty target"}
		}
		el = t.doc.ElementByID(t.id)
		if el == nil {
			return nil, &NotFoundError{ID: t.id, Reason: "no element with this id"}
		}
	}
	doc := el.Document()
	if doc == nil || !doc.IsSVG() || !doc.Root().Contains(el) {
		return nil, &NotFoundError{ID: t.id, Reason: "the element is not attached to an SVG document"}
	}
	return el, nil
}
