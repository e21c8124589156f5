package visualbbox

import (
	"strings"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/google/uuid"
)

const tempIDPrefix = "svgbbox-"

// isolate clones the document of target, and hides every element
// which is not the target, one of its ancestors, one of its descendants
// or the content of a <defs>.
// The live document is left unchanged.
func isolate(target *svgdom.Element) (*svgdom.Document, error) {
	doc := target.Document()

	// the target is found in the clone by id: use a temporary one
	// if it has none or if it is not unique
	originalID, hadID := target.Attr("id")
	id, temporary := originalID, false
	if !hadID || id == "" || doc.ElementByID(id) != target {
		id, temporary = tempIDPrefix+uuid.NewString(), true
		target.SetAttr("id", id)
		defer restoreID(target, originalID, hadID)
	}

	clone := doc.Clone()
	cloneTarget := clone.ElementByID(id)
	if cloneTarget == nil {
		return nil, &NotFoundError{ID: originalID, Reason: "target lost while cloning"}
	}
	if temporary {
		restoreID(cloneTarget, originalID, hadID)
	}

	keep := make(map[*svgdom.Element]bool)
	keep[cloneTarget] = true
	for _, el := range cloneTarget.Ancestors() {
		keep[el] = true
	}
	for _, el := range cloneTarget.Descendants() {
		keep[el] = true
	}
	clone.Root().Walk(func(el *svgdom.Element) bool {
		if el.Tag == "defs" {
			keep[el] = true
			for _, sub := range el.Descendants() {
				keep[sub] = true
			}
			return false
		}
		return true
	})

	relocateUseReferences(clone, cloneTarget, keep)

	clone.Root().Walk(func(el *svgdom.Element) bool {
		if keep[el] {
			return true
		}
		// the parent is kept
		el.SetStyle("display", "none")
		return false
	})
	return clone, nil
}

// restoreID reverts the id attribute of el
func restoreID(el *svgdom.Element, id string, hadID bool) {
	if hadID {
		el.SetAttr("id", id)
	} else {
		el.RemoveAttr("id")
	}
}

// relocateUseReferences copies into a new <defs> the elements
// referenced by the kept <use> elements which are about to be hidden,
// so that the instances are still rendered.
func relocateUseReferences(clone *svgdom.Document, target *svgdom.Element, keep map[*svgdom.Element]bool) {
	var defs *svgdom.Element
	relocated := make(map[*svgdom.Element]string) // original -> id of the copy
	queue := append([]*svgdom.Element{target}, target.Descendants()...)
	for len(queue) > 0 {
		use := queue[0]
		queue = queue[1:]
		if use.Tag != "use" {
			continue
		}
		href, _ := use.Attr("href")
		refID, ok := strings.CutPrefix(strings.TrimSpace(href), "#")
		if !ok {
			continue
		}
		ref := clone.ElementByID(refID)
		if ref == nil || keep[ref] || ref.Contains(use) {
			continue
		}
		if newID, ok := relocated[ref]; ok {
			use.SetAttr("href", "#"+newID)
			continue
		}
		if defs == nil {
			defs = &svgdom.Element{Space: clone.Root().Space, Tag: "defs"}
			clone.Root().AppendChild(defs)
			keep[defs] = true
		}
		cp := ref.Clone()
		newID := tempIDPrefix + uuid.NewString()
		cp.SetAttr("id", newID)
		relocated[ref] = newID
		use.SetAttr("href", "#"+newID)
		defs.AppendChild(cp)
		keep[cp] = true
		for _, sub := range cp.Descendants() {
			keep[sub] = true
			queue = append(queue, sub)
		}
		queue = append(queue, cp)
	}
}
