package svgdom

import (
	"sort"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Declaration is a resolved style property.
type Declaration struct {
	Property, Value string
	Important       bool
}

// presentationAttrs are the attributes which may be overriden by CSS.
var presentationAttrs = map[string]bool{
	"fill": true, "fill-opacity": true, "fill-rule": true,
	"stroke": true, "stroke-opacity": true, "stroke-width": true,
	"stroke-linecap": true, "stroke-linejoin": true, "stroke-miterlimit": true,
	"stroke-dasharray": true, "stroke-dashoffset": true,
	"opacity": true, "display": true, "visibility": true, "filter": true,
	"color": true, "stop-color": true, "stop-opacity": true,
	"font-family": true, "font-size": true, "font-weight": true, "font-style": true,
	"text-anchor": true, "clip-path": true, "mask": true,
	"flood-color": true, "flood-opacity": true,
}

// IsPresentationAttr returns true if the attribute name is also a style property.
func IsPresentationAttr(name string) bool { return presentationAttrs[name] }

// compound is a simple selector: tag, id and classes all must match
type compound struct {
	tag     string // empty or "*" for any
	id      string
	classes []string
}

// selector is a chain of compounds, read from right to left.
// combinators[i] joins parts[i] and parts[i+1] (' ' or '>')
type selector struct {
	parts       []compound
	combinators []byte
}

type styleRule struct {
	sel         selector
	specificity int
	order       int
	decls       []*css.Declaration
}

func parseCompound(s string) (compound, bool) {
	var out compound
	i := 0
	readName := func() string {
		start := i
		for i < len(s) && s[i] != '#' && s[i] != '.' {
			i++
		}
		return s[start:i]
	}
	out.tag = readName()
	for i < len(s) {
		kind := s[i]
		i++
		name := readName()
		if name == "" {
			return out, false
		}
		if kind == '#' {
			out.id = name
		} else {
			out.classes = append(out.classes, name)
		}
	}
	if strings.ContainsAny(out.tag, "[:()") || out.tag == "" && out.id == "" && len(out.classes) == 0 {
		return out, false // pseudo classes and attribute selectors are not supported
	}
	return out, true
}

// parseSelector supports tag, #id, .class, * and the
// descendant and child combinators.
func parseSelector(s string) (selector, int, bool) {
	s = strings.ReplaceAll(s, ">", " > ")
	var (
		out         selector
		specificity int
		pending     byte = ' '
	)
	for _, field := range strings.Fields(s) {
		if field == ">" {
			pending = '>'
			continue
		}
		comp, ok := parseCompound(field)
		if !ok {
			return out, 0, false
		}
		if len(out.parts) > 0 {
			out.combinators = append(out.combinators, pending)
		}
		pending = ' '
		out.parts = append(out.parts, comp)
		if comp.id != "" {
			specificity += 100
		}
		specificity += 10 * len(comp.classes)
		if comp.tag != "" && comp.tag != "*" {
			specificity++
		}
	}
	return out, specificity, len(out.parts) > 0
}

func (c compound) match(e *Element) bool {
	if c.tag != "" && c.tag != "*" && c.tag != e.Tag {
		return false
	}
	if c.id != "" && c.id != e.ID() {
		return false
	}
	if len(c.classes) != 0 {
		class, _ := e.Attr("class")
		have := strings.Fields(class)
		for _, cl := range c.classes {
			found := false
			for _, h := range have {
				if h == cl {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (s selector) match(e *Element) bool {
	return s.matchFrom(len(s.parts)-1, e)
}

func (s selector) matchFrom(i int, e *Element) bool {
	if !s.parts[i].match(e) {
		return false
	}
	if i == 0 {
		return true
	}
	if s.combinators[i-1] == '>' {
		return e.parent != nil && s.matchFrom(i-1, e.parent)
	}
	for p := e.parent; p != nil; p = p.parent {
		if s.matchFrom(i-1, p) {
			return true
		}
	}
	return false
}

// styleSheet returns the rules of all the <style> elements,
// parsed once and cached until the tree is modified.
func (d *Document) styleSheet() []styleRule {
	if d.sheetValid {
		return d.sheet
	}
	d.sheet = d.sheet[:0]
	d.root.Walk(func(el *Element) bool {
		if el.Tag != "style" {
			return true
		}
		sheet, err := parser.Parse(el.Text())
		if err != nil {
			return false // invalid sheets are ignored
		}
		for _, rule := range sheet.Rules {
			if rule.Kind != css.QualifiedRule {
				continue
			}
			for _, sel := range rule.Selectors {
				parsed, spec, ok := parseSelector(sel)
				if !ok {
					continue
				}
				d.sheet = append(d.sheet, styleRule{sel: parsed, specificity: spec, order: len(d.sheet), decls: rule.Declarations})
			}
		}
		return false
	})
	sort.SliceStable(d.sheet, func(i, j int) bool { return d.sheet[i].specificity < d.sheet[j].specificity })
	d.sheetValid = true
	return d.sheet
}

func (e *Element) inlineDeclarations() []*css.Declaration {
	style, ok := e.Attr("style")
	if !ok || strings.TrimSpace(style) == "" {
		return nil
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return nil
	}
	return decls
}

// StyleDeclarations returns the style properties set on e, sorted
// by increasing precedence: presentation attributes, then style sheet
// rules, then the style attribute, then !important declarations.
// The element-level value of a property is the last one in the list.
func (e *Element) StyleDeclarations() []Declaration {
	var out []Declaration
	for _, attr := range e.Attrs {
		if attr.Name.Space == "" && presentationAttrs[attr.Name.Local] {
			out = append(out, Declaration{Property: attr.Name.Local, Value: strings.TrimSpace(attr.Value)})
		}
	}
	var matched []styleRule
	if e.doc != nil {
		for _, rule := range e.doc.styleSheet() {
			if rule.sel.match(e) {
				matched = append(matched, rule)
			}
		}
	}
	inline := e.inlineDeclarations()

	add := func(decls []*css.Declaration, important bool) {
		for _, decl := range decls {
			if decl.Important == important {
				out = append(out, Declaration{Property: strings.ToLower(decl.Property), Value: decl.Value, Important: important})
			}
		}
	}
	for _, important := range [2]bool{false, true} {
		for _, rule := range matched {
			add(rule.decls, important)
		}
		add(inline, important)
	}
	return out
}

// Style returns the value of the property on e, without inheritance.
func (e *Element) Style(name string) (string, bool) {
	decls := e.StyleDeclarations()
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].Property == name {
			return decls[i].Value, true
		}
	}
	return "", false
}

// SetStyle sets the property in the style attribute of e,
// with the highest precedence.
func (e *Element) SetStyle(name, value string) {
	decls := e.inlineDeclarations()
	var chunks []string
	for _, decl := range decls {
		if strings.ToLower(decl.Property) == name {
			continue
		}
		chunks = append(chunks, decl.String())
	}
	chunks = append(chunks, (&css.Declaration{Property: name, Value: value, Important: true}).String())
	e.SetAttr("style", strings.Join(chunks, " "))
}
