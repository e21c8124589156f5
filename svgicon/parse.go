package svgicon

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgpath"
	"golang.org/x/image/math/fixed"
)

// ErrorMode is the for setting how the parser reacts to unparsed elements
type ErrorMode uint8

const (
	// IgnoreErrorMode skips unparsed SVG elements
	IgnoreErrorMode ErrorMode = iota

	// WarnErrorMode outputs a warning when an unparsed SVG element is found
	WarnErrorMode

	// StrictErrorMode causes a error when an unparsed SVG element is found
	StrictErrorMode
)

var (
	errParamMismatch = errors.New("param mismatch")
	errZeroLengthID  = errors.New("zero length id")
	errNotSVG        = errors.New("root element is not <svg>")
)

// iconCursor is used while parsing SVG files
type iconCursor struct {
	icon       *SvgIcon
	doc        *svgdom.Document
	styleStack []PathStyle
	errorMode  ErrorMode

	// items receives the decoded items; it points to
	// the icon items or to the items of a layer
	items *[]Item

	inClip bool                     // decoding the content of a clipPath
	using  map[*svgdom.Element]bool // elements being instanciated, to break cycles
}

func fToFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}

// DefaultStyle sets the default PathStyle to fill black, winding rule,
// full opacity, no stroke, ButtCap line end and Miter line connect.
var DefaultStyle = PathStyle{
	FillOpacity:       1.0,
	LineOpacity:       1.0,
	Opacity:           1.0,
	LineWidth:         1.0,
	UseNonZeroWinding: true,
	Join: JoinOptions{
		MiterLimit:   fToFixed(4),
		LineJoin:     Miter,
		TrailLineCap: ButtCap,
	},
	FillerColor: NewPlainColor(0x00, 0x00, 0x00, 0xff),
	Font:        TextStyle{Size: svgdom.DefaultFontSize, Family: "sans-serif"},
	color:       NewPlainColor(0x00, 0x00, 0x00, 0xff),
	transform:   svgpath.Identity,
}

// ReadDocument decodes the drawing of an already parsed document.
func ReadDocument(doc *svgdom.Document, errMode ErrorMode) (*SvgIcon, error) {
	if !doc.IsSVG() {
		return nil, errNotSVG
	}
	icon := &SvgIcon{
		Transform: svgpath.Identity,
		gradients: make(map[string]*Gradient),
		filters:   make(map[string]*Filter),
	}
	cursor := &iconCursor{
		icon:       icon,
		doc:        doc,
		styleStack: []PathStyle{DefaultStyle},
		errorMode:  errMode,
		items:      &icon.Items,
		using:      make(map[*svgdom.Element]bool),
	}
	root := doc.Root()
	if err := cursor.readViewport(root); err != nil {
		return nil, err
	}
	if err := cursor.decodeElement(root); err != nil {
		return icon, err
	}
	return icon, nil
}

// warn handles a non fatal error, according to the error mode.
func (c *iconCursor) warn(err error) error {
	if err == nil {
		return nil
	}
	switch c.errorMode {
	case StrictErrorMode:
		return err
	case WarnErrorMode:
		log.Println(err)
	}
	return nil
}

func (c *iconCursor) currentStyle() PathStyle {
	return c.styleStack[len(c.styleStack)-1]
}

// readViewport reads the root viewBox and size.
func (c *iconCursor) readViewport(root *svgdom.Element) error {
	var err error
	c.icon.AspectRatio = defaultAspectRatio
	if v, ok := root.Attr("preserveAspectRatio"); ok {
		c.icon.AspectRatio, err = parseAspectRatio(v)
		if err = c.warn(err); err != nil {
			return err
		}
	}
	if v, ok := root.Attr("viewBox"); ok {
		vb, err := parseViewBox(v)
		if err != nil {
			if err = c.warn(err); err != nil {
				return err
			}
		} else {
			c.icon.ViewBox = vb
		}
	}
	if v, ok := root.Attr("width"); ok && !strings.HasSuffix(v, "%") {
		c.icon.Width, err = svgdom.ParseLength(v, 0)
		if err = c.warn(err); err != nil {
			return err
		}
	}
	if v, ok := root.Attr("height"); ok && !strings.HasSuffix(v, "%") {
		c.icon.Height, err = svgdom.ParseLength(v, 0)
		if err = c.warn(err); err != nil {
			return err
		}
	}
	// a missing viewBox is the viewport, and conversely
	if c.icon.ViewBox.W <= 0 || c.icon.ViewBox.H <= 0 {
		c.icon.ViewBox = Bounds{W: c.icon.Width, H: c.icon.Height}
	}
	if c.icon.Width <= 0 {
		c.icon.Width = c.icon.ViewBox.W
	}
	if c.icon.Height <= 0 {
		c.icon.Height = c.icon.ViewBox.H
	}
	return nil
}

func parseViewBox(v string) (Bounds, error) {
	points, err := svgpath.ParseNumbers(v)
	if err != nil {
		return Bounds{}, err
	}
	if len(points) != 4 {
		return Bounds{}, fmt.Errorf("invalid viewBox %q: %w", v, errParamMismatch)
	}
	if points[2] <= 0 || points[3] <= 0 {
		return Bounds{}, fmt.Errorf("invalid viewBox %q: non positive size", v)
	}
	return Bounds{X: points[0], Y: points[1], W: points[2], H: points[3]}, nil
}

// parseUnit resolves a length attribute, with percentages relative to
// the root viewBox. The selector is one of widthPercentage, heightPercentage
// or diagPercentage.
func (c *iconCursor) parseUnit(v string, percentage percentageReference) (float64, error) {
	var base float64
	switch percentage {
	case widthPercentage:
		base = c.icon.ViewBox.W
	case heightPercentage:
		base = c.icon.ViewBox.H
	case diagPercentage:
		base = math.Sqrt(c.icon.ViewBox.W*c.icon.ViewBox.W+c.icon.ViewBox.H*c.icon.ViewBox.H) / math.Sqrt2
	}
	return svgdom.ParseLength(v, base)
}

type percentageReference uint8

const (
	widthPercentage percentageReference = iota
	heightPercentage
	diagPercentage
)

// readLengths reads the given attributes of el. Missing attributes
// keep their zero value. Invalid values are reported according
// to the error mode, and also read as zero.
func (c *iconCursor) readLengths(el *svgdom.Element, names []string, refs []percentageReference) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, ok := el.Attr(name)
		if !ok {
			continue
		}
		f, err := c.parseUnit(v, refs[i])
		if err != nil {
			if err = c.warn(fmt.Errorf("<%s> attribute %s: %w", el.Tag, name, err)); err != nil {
				return nil, err
			}
			continue
		}
		out[i] = f
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// splitOnCommaOrSpace returns a list of strings after splitting the input on comma and space delimiters
func splitOnCommaOrSpace(s string) []string {
	return strings.FieldsFunc(s,
		func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
}

func readFraction(v string) (f float64, err error) {
	v = strings.TrimSpace(v)
	d := 1.0
	if strings.HasSuffix(v, "%") {
		d = 100
		v = strings.TrimSuffix(v, "%")
	}
	f, err = parseFloat(v)
	f /= d
	return
}

func readTransformAttr(m1 svgpath.Matrix2D, k string, points []float64) (svgpath.Matrix2D, error) {
	ln := len(points)
	switch k {
	case "rotate":
		if ln == 1 {
			m1 = m1.Rotate(points[0] * math.Pi / 180)
		} else if ln == 3 {
			m1 = m1.Translate(points[1], points[2]).
				Rotate(points[0]*math.Pi/180).
				Translate(-points[1], -points[2])
		} else {
			return m1, errParamMismatch
		}
	case "translate":
		if ln == 1 {
			m1 = m1.Translate(points[0], 0)
		} else if ln == 2 {
			m1 = m1.Translate(points[0], points[1])
		} else {
			return m1, errParamMismatch
		}
	case "skewx":
		if ln == 1 {
			m1 = m1.SkewX(points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "skewy":
		if ln == 1 {
			m1 = m1.SkewY(points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "scale":
		if ln == 1 {
			m1 = m1.Scale(points[0], points[0])
		} else if ln == 2 {
			m1 = m1.Scale(points[0], points[1])
		} else {
			return m1, errParamMismatch
		}
	case "matrix":
		if ln == 6 {
			m1 = m1.Mult(svgpath.Matrix2D{
				A: points[0],
				B: points[1],
				C: points[2],
				D: points[3],
				E: points[4],
				F: points[5]})
		} else {
			return m1, errParamMismatch
		}
	default:
		return m1, errParamMismatch
	}
	return m1, nil
}

// parseTransform parses a transform list, and returns
// the matrix to apply to the element user space.
func parseTransform(v string) (svgpath.Matrix2D, error) {
	ts := strings.Split(v, ")")
	m1 := svgpath.Identity
	for _, t := range ts {
		t = strings.TrimSpace(strings.TrimLeft(t, ", \t\n"))
		if len(t) == 0 {
			continue
		}
		d := strings.Split(t, "(")
		if len(d) != 2 || len(d[1]) < 1 {
			return m1, errParamMismatch // badly formed transformation
		}
		points, err := svgpath.ParseNumbers(d[1])
		if err != nil {
			return m1, err
		}
		m1, err = readTransformAttr(m1, strings.ToLower(strings.TrimSpace(d[0])), points)
		if err != nil {
			return m1, err
		}
	}
	return m1, nil
}

// readGradURL resolves a url(#id) paint reference. The fallback
// color, if any, is used when the reference is not found.
func (c *iconCursor) readGradURL(v string, current PlainColor) (Pattern, bool, error) {
	if !strings.HasPrefix(v, "url(") {
		return nil, false, nil
	}
	end := strings.IndexByte(v, ')')
	if end == -1 {
		return nil, true, errParamMismatch
	}
	id := strings.Trim(strings.TrimSpace(v[4:end]), `"'`)
	fallback := strings.TrimSpace(v[end+1:])
	if grad, err := c.gradient(strings.TrimPrefix(id, "#")); err == nil {
		return *grad, true, nil
	}
	if fallback == "" {
		// per SVG, an invalid reference without fallback is not painted
		return nil, true, nil
	}
	col, err := parseSVGColor(fallback, current)
	return col.asPattern(), true, err
}

func (c *iconCursor) readPaint(v string, current PlainColor) (Pattern, error) {
	pattern, isURL, err := c.readGradURL(v, current)
	if isURL {
		return pattern, err
	}
	col, err := parseSVGColor(v, current)
	return col.asPattern(), err
}

func readCap(v string) (CapMode, bool) {
	switch v {
	case "butt":
		return ButtCap, true
	case "round":
		return RoundCap, true
	case "square":
		return SquareCap, true
	case "cubic":
		return CubicCap, true
	case "quadratic":
		return QuadraticCap, true
	}
	return NilCap, false
}

func (c *iconCursor) readStyleAttr(curStyle *PathStyle, k, v string) error {
	switch k {
	case "fill":
		pattern, err := c.readPaint(v, curStyle.color)
		if err != nil {
			return err
		}
		curStyle.FillerColor = pattern
	case "stroke":
		pattern, err := c.readPaint(v, curStyle.color)
		if err != nil {
			return err
		}
		curStyle.LinerColor = pattern
	case "color":
		col, err := parseSVGColor(v, curStyle.color)
		if err != nil {
			return err
		}
		if col.valid {
			curStyle.color = col.color
		}
	case "fill-rule":
		if !c.inClip {
			curStyle.UseNonZeroWinding = v != "evenodd"
		}
	case "clip-rule":
		if c.inClip {
			curStyle.UseNonZeroWinding = v != "evenodd"
		}
	case "visibility":
		curStyle.Hidden = v == "hidden" || v == "collapse"
	case "stroke-linegap":
		switch v {
		case "flat":
			curStyle.Join.LineGap = FlatGap
		case "round":
			curStyle.Join.LineGap = RoundGap
		case "cubic":
			curStyle.Join.LineGap = CubicGap
		case "quadratic":
			curStyle.Join.LineGap = QuadraticGap
		}
	case "stroke-leadlinecap":
		if lineCap, ok := readCap(v); ok {
			curStyle.Join.LeadLineCap = lineCap
		}
	case "stroke-linecap":
		if lineCap, ok := readCap(v); ok {
			curStyle.Join.TrailLineCap = lineCap
		}
	case "stroke-linejoin":
		switch v {
		case "miter":
			curStyle.Join.LineJoin = Miter
		case "miter-clip":
			curStyle.Join.LineJoin = MiterClip
		case "arc-clip":
			curStyle.Join.LineJoin = ArcClip
		case "round":
			curStyle.Join.LineJoin = Round
		case "arc":
			curStyle.Join.LineJoin = Arc
		case "bevel":
			curStyle.Join.LineJoin = Bevel
		}
	case "stroke-miterlimit":
		mLimit, err := parseFloat(v)
		if err != nil {
			return err
		}
		curStyle.Join.MiterLimit = fToFixed(mLimit)
	case "stroke-width":
		width, err := c.parseUnit(v, diagPercentage)
		if err != nil {
			return err
		}
		curStyle.LineWidth = width
	case "stroke-dashoffset":
		dashOffset, err := c.parseUnit(v, diagPercentage)
		if err != nil {
			return err
		}
		curStyle.Dash.DashOffset = dashOffset
	case "stroke-dasharray":
		if v == "none" {
			curStyle.Dash.Dash = nil
			break
		}
		dashes := splitOnCommaOrSpace(v)
		dList := make([]float64, len(dashes))
		for i, dstr := range dashes {
			d, err := c.parseUnit(dstr, diagPercentage)
			if err != nil {
				return err
			}
			dList[i] = d
		}
		if len(dList)%2 == 1 { // odd lists are repeated
			dList = append(dList, dList...)
		}
		curStyle.Dash.Dash = dList
	case "stroke-opacity", "fill-opacity":
		op, err := readFraction(v)
		if err != nil {
			return err
		}
		op = math.Max(0, math.Min(1, op))
		if k == "fill-opacity" {
			curStyle.FillOpacity = op
		} else {
			curStyle.LineOpacity = op
		}
	case "opacity":
		op, err := readFraction(v)
		if err != nil {
			return err
		}
		curStyle.Opacity *= math.Max(0, math.Min(1, op))
	case "font-size":
		size, err := svgdom.ParseLength(v, curStyle.Font.Size)
		if err != nil {
			return err
		}
		curStyle.Font.Size = size
	case "font-family":
		curStyle.Font.Family = v
	case "font-weight":
		if weight, err := strconv.Atoi(v); err == nil {
			curStyle.Font.Bold = weight >= 600
		} else {
			curStyle.Font.Bold = v == "bold" || v == "bolder"
		}
	case "font-style":
		curStyle.Font.Italic = v == "italic" || v == "oblique"
	case "text-anchor":
		switch v {
		case "middle":
			curStyle.Font.Anchor = AnchorMiddle
		case "end":
			curStyle.Font.Anchor = AnchorEnd
		default:
			curStyle.Font.Anchor = AnchorStart
		}
	}
	return nil
}

// elementStyle holds the non inherited properties of an element
type elementStyle struct {
	display  string
	filter   string
	clipPath string
}

// pushStyle computes the style of el from its parent style
// and push it on the style stack. Note that this parses the presentation
// attributes, the style attribute and the matching <style> rules.
func (c *iconCursor) pushStyle(el *svgdom.Element) (elementStyle, error) {
	// Make a copy of the top style
	curStyle := c.currentStyle()
	var local elementStyle

	decls := el.StyleDeclarations()
	// color must be known before resolving currentColor
	for _, decl := range decls {
		if decl.Property == "color" && decl.Value != "inherit" {
			if err := c.readStyleAttr(&curStyle, "color", decl.Value); err != nil {
				if err = c.warn(err); err != nil {
					return local, err
				}
			}
		}
	}
	for _, decl := range decls {
		v := strings.TrimSpace(decl.Value)
		if v == "inherit" || decl.Property == "color" {
			continue
		}
		switch decl.Property {
		case "display":
			local.display = v
		case "filter":
			local.filter = v
		case "clip-path":
			local.clipPath = v
		default:
			if err := c.readStyleAttr(&curStyle, decl.Property, v); err != nil {
				err = fmt.Errorf("<%s> property %s: %w", el.Tag, decl.Property, err)
				if err = c.warn(err); err != nil {
					return local, err
				}
			}
		}
	}

	if v, ok := el.Attr("transform"); ok && el.Tag != "svg" {
		m, err := parseTransform(v)
		if err != nil {
			if err = c.warn(fmt.Errorf("<%s> transform %q: %w", el.Tag, v, err)); err != nil {
				return local, err
			}
		} else {
			curStyle.transform = curStyle.transform.Mult(m)
		}
	}
	c.styleStack = append(c.styleStack, curStyle) // Push style onto stack
	return local, nil
}

func (c *iconCursor) popStyle() {
	c.styleStack = c.styleStack[:len(c.styleStack)-1]
}

// decodeElement decodes el and its content.
func (c *iconCursor) decodeElement(el *svgdom.Element) error {
	if el.Space != "" && el.Space != svgdom.SVGNamespace {
		return nil // foreign content
	}
	df, ok := drawFuncs[el.Tag]
	if !ok {
		return c.warn(errors.New("Cannot process svg element " + el.Tag))
	}
	if df == nil { // not rendered
		return nil
	}
	local, err := c.pushStyle(el)
	if err != nil {
		return err
	}
	defer c.popStyle()

	if local.display == "none" {
		return nil
	}

	if c.inClip || (local.filter == "" || local.filter == "none") && (local.clipPath == "" || local.clipPath == "none") {
		return df(c, el)
	}

	// render the element into a separate layer
	layer := &Layer{transform: c.currentStyle().transform}
	parentItems := c.items
	c.items = &layer.Items
	err = df(c, el)
	c.items = parentItems
	if err != nil {
		return err
	}
	if err := c.setupLayer(layer, el, local); err != nil {
		return err
	}
	*c.items = append(*c.items, layer)
	return nil
}

// decodeChildren decodes the children of a container
func (c *iconCursor) decodeChildren(el *svgdom.Element) error {
	for _, child := range el.ChildElements() {
		if err := c.decodeElement(child); err != nil {
			return err
		}
	}
	return nil
}

// addPath registers a shape, with the current style.
func (c *iconCursor) addPath(path svgpath.Path) {
	if len(path) == 0 {
		return
	}
	*c.items = append(*c.items, &SvgPath{Path: path, Style: c.currentStyle()})
}

// parseURLReference returns the id of a "url(#id)" value.
func parseURLReference(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "url(") || !strings.HasSuffix(v, ")") {
		return "", false
	}
	id := strings.Trim(strings.TrimSpace(v[4:len(v)-1]), `"'`)
	if !strings.HasPrefix(id, "#") {
		return "", false
	}
	return id[1:], true
}

// setupLayer resolves the filter and the clip path of the element
// rendered into layer.
func (c *iconCursor) setupLayer(layer *Layer, el *svgdom.Element, local elementStyle) error {
	bbox := layer.localBounds()
	if local.filter != "" && local.filter != "none" {
		id, ok := parseURLReference(local.filter)
		var filter *Filter
		if ok {
			var err error
			filter, err = c.filter(id)
			if err != nil {
				if err = c.warn(err); err != nil {
					return err
				}
			}
		} else if err := c.warn(fmt.Errorf("<%s>: unsupported filter %q", el.Tag, local.filter)); err != nil {
			return err
		}
		if filter != nil {
			layer.Filter = filter.resolve(bbox)
		}
	}
	if local.clipPath != "" && local.clipPath != "none" {
		id, ok := parseURLReference(local.clipPath)
		clipEl := c.doc.ElementByID(id)
		if !ok || clipEl == nil || clipEl.Tag != "clipPath" {
			return c.warn(fmt.Errorf("<%s>: invalid clip-path %q", el.Tag, local.clipPath))
		}
		clip, err := c.decodeClipPath(clipEl, bbox)
		if err != nil {
			return err
		}
		layer.Clip = clip
	}
	return nil
}
