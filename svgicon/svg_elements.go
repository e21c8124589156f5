package svgicon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgpath"
)

func init() {
	// avoids cyclical static declaration
	// called on package initialization
	drawFuncs["use"] = useF
	drawFuncs["svg"] = svgF
	drawFuncs["g"] = gF
	drawFuncs["a"] = gF
	drawFuncs["switch"] = switchF
}

type svgFunc func(c *iconCursor, el *svgdom.Element) error

// drawFuncs maps the supported elements to their handler.
// A nil handler is used for the elements which are never rendered
// directly.
var drawFuncs = map[string]svgFunc{
	"line":     lineF,
	"rect":     rectF,
	"circle":   circleF,
	"ellipse":  circleF, //circleF handles ellipse also
	"polyline": polylineF,
	"polygon":  polygonF,
	"path":     pathF,
	"text":     textF,
	"image":    imageF,
	"desc":     descF,
	"title":    titleF,

	"defs":           nil,
	"symbol":         nil,
	"style":          nil,
	"metadata":       nil,
	"linearGradient": nil,
	"radialGradient": nil,
	"stop":           nil,
	"filter":         nil,
	"clipPath":       nil,
	"mask":           nil,
	"marker":         nil,
	"pattern":        nil,
	"script":         nil,
}

func gF(c *iconCursor, el *svgdom.Element) error { return c.decodeChildren(el) }

// switchF renders the first direct child
func switchF(c *iconCursor, el *svgdom.Element) error {
	for _, child := range el.ChildElements() {
		if _, ok := drawFuncs[child.Tag]; ok {
			return c.decodeElement(child)
		}
	}
	return nil
}

// svgF handles the root and the nested <svg> elements
func svgF(c *iconCursor, el *svgdom.Element) error {
	if el.Parent() == nil {
		return c.decodeChildren(el)
	}
	lengths, err := c.readLengths(el, []string{"x", "y", "width", "height"},
		[]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	x, y, w, h := lengths[0], lengths[1], lengths[2], lengths[3]
	if _, ok := el.Attr("width"); !ok {
		w = c.icon.ViewBox.W
	}
	if _, ok := el.Attr("height"); !ok {
		h = c.icon.ViewBox.H
	}
	m := svgpath.Identity.Translate(x, y)
	if v, ok := el.Attr("viewBox"); ok {
		vb, err := parseViewBox(v)
		if err != nil {
			return c.warn(err)
		}
		ar := defaultAspectRatio
		if v, ok := el.Attr("preserveAspectRatio"); ok {
			ar, _ = parseAspectRatio(v)
		}
		m = m.Mult(ar.viewBoxTransform(vb, w, h))
	}
	return c.withTransform(m, func() error { return c.decodeChildren(el) })
}

// withTransform applies m to the current transform during fn
func (c *iconCursor) withTransform(m svgpath.Matrix2D, fn func() error) error {
	style := c.currentStyle()
	style.transform = style.transform.Mult(m)
	c.styleStack = append(c.styleStack, style)
	defer c.popStyle()
	return fn()
}

func rectF(c *iconCursor, el *svgdom.Element) error {
	lengths, err := c.readLengths(el, []string{"x", "y", "width", "height", "rx", "ry"},
		[]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	x, y, w, h, rx, ry := lengths[0], lengths[1], lengths[2], lengths[3], lengths[4], lengths[5]
	if w <= 0 || h <= 0 {
		return nil
	}
	var path svgpath.Path
	path.AddRoundRect(x, y, w+x, h+y, rx, ry)
	c.addPath(path)
	return nil
}

func circleF(c *iconCursor, el *svgdom.Element) error {
	lengths, err := c.readLengths(el, []string{"cx", "cy", "r", "rx", "ry"},
		[]percentageReference{widthPercentage, heightPercentage, diagPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	cx, cy, rx, ry := lengths[0], lengths[1], lengths[3], lengths[4]
	if el.Tag == "circle" {
		rx, ry = lengths[2], lengths[2]
	} else { // a single radius is used for both axis
		_, hasRx := el.Attr("rx")
		_, hasRy := el.Attr("ry")
		if !hasRx {
			rx = ry
		} else if !hasRy {
			ry = rx
		}
	}
	if rx <= 0 || ry <= 0 { // not drawn, but not an error
		return nil
	}
	var path svgpath.Path
	path.AddEllipse(cx, cy, rx, ry)
	c.addPath(path)
	return nil
}

func lineF(c *iconCursor, el *svgdom.Element) error {
	lengths, err := c.readLengths(el, []string{"x1", "y1", "x2", "y2"},
		[]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	var path svgpath.Path
	path.Start(svgpath.Point{X: lengths[0], Y: lengths[1]})
	path.Line(svgpath.Point{X: lengths[2], Y: lengths[3]})
	c.addPath(path)
	return nil
}

func readPoints(c *iconCursor, el *svgdom.Element) (svgpath.Path, error) {
	v, _ := el.Attr("points")
	points, err := svgpath.ParseNumbers(v)
	if err != nil {
		// the points read before the error are rendered
		if err = c.warn(fmt.Errorf("<%s> points: %w", el.Tag, err)); err != nil {
			return nil, err
		}
	}
	if len(points)%2 != 0 {
		if err = c.warn(errors.New("polygon has odd number of points")); err != nil {
			return nil, err
		}
		points = points[:len(points)-1]
	}
	var path svgpath.Path
	if len(points) >= 4 {
		path.Start(svgpath.Point{X: points[0], Y: points[1]})
		for i := 2; i < len(points)-1; i += 2 {
			path.Line(svgpath.Point{X: points[i], Y: points[i+1]})
		}
	}
	return path, nil
}

func polylineF(c *iconCursor, el *svgdom.Element) error {
	path, err := readPoints(c, el)
	if err != nil {
		return err
	}
	c.addPath(path)
	return nil
}

func polygonF(c *iconCursor, el *svgdom.Element) error {
	path, err := readPoints(c, el)
	if err != nil {
		return err
	}
	if len(path) > 0 {
		path.Stop(true)
	}
	c.addPath(path)
	return nil
}

func pathF(c *iconCursor, el *svgdom.Element) error {
	d, _ := el.Attr("d")
	path, err := svgpath.ParsePath(d)
	if err != nil {
		// the path up to the error is rendered
		if err = c.warn(fmt.Errorf("<path> d: %w", err)); err != nil {
			return err
		}
	}
	c.addPath(path)
	return nil
}

func descF(c *iconCursor, el *svgdom.Element) error {
	c.icon.Descriptions = append(c.icon.Descriptions, el.Text())
	return nil
}

func titleF(c *iconCursor, el *svgdom.Element) error {
	c.icon.Titles = append(c.icon.Titles, el.Text())
	return nil
}

func useF(c *iconCursor, el *svgdom.Element) error {
	href, _ := el.Attr("href")
	if href == "" {
		return c.warn(errors.New("only use tags with href is supported"))
	}
	if !strings.HasPrefix(href, "#") {
		return c.warn(errors.New("only the ID CSS selector is supported"))
	}
	if len(href) == 1 {
		return c.warn(errZeroLengthID)
	}
	ref := c.doc.ElementByID(href[1:])
	if ref == nil {
		return c.warn(fmt.Errorf("href ID %s in use statement was not found", href))
	}
	if c.using[ref] || ref.Contains(el) {
		return c.warn(fmt.Errorf("circular reference to %s", href))
	}
	lengths, err := c.readLengths(el, []string{"x", "y", "width", "height"},
		[]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	c.using[ref] = true
	defer delete(c.using, ref)

	m := svgpath.Identity.Translate(lengths[0], lengths[1])
	return c.withTransform(m, func() error {
		if ref.Tag != "symbol" && ref.Tag != "svg" {
			return c.decodeElement(ref)
		}
		return c.instanciateSymbol(el, ref, lengths[2], lengths[3])
	})
}

// instanciateSymbol renders a <symbol> (or <svg>) referenced by a <use>,
// whose width and height override the ones of the symbol.
func (c *iconCursor) instanciateSymbol(use, symbol *svgdom.Element, width, height float64) error {
	if _, ok := use.Attr("width"); !ok {
		width = c.icon.ViewBox.W
		if v, ok := symbol.Attr("width"); ok {
			width, _ = c.parseUnit(v, widthPercentage)
		}
	}
	if _, ok := use.Attr("height"); !ok {
		height = c.icon.ViewBox.H
		if v, ok := symbol.Attr("height"); ok {
			height, _ = c.parseUnit(v, heightPercentage)
		}
	}
	local, err := c.pushStyle(symbol)
	if err != nil {
		return err
	}
	defer c.popStyle()
	if local.display == "none" {
		return nil
	}
	m := svgpath.Identity
	if v, ok := symbol.Attr("viewBox"); ok {
		vb, err := parseViewBox(v)
		if err != nil {
			return c.warn(err)
		}
		ar := defaultAspectRatio
		if v, ok := symbol.Attr("preserveAspectRatio"); ok {
			ar, _ = parseAspectRatio(v)
		}
		m = ar.viewBoxTransform(vb, width, height)
	}
	return c.withTransform(m, func() error { return c.decodeChildren(symbol) })
}

func imageF(c *iconCursor, el *svgdom.Element) error {
	lengths, err := c.readLengths(el, []string{"x", "y", "width", "height"},
		[]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage})
	if err != nil {
		return err
	}
	href, _ := el.Attr("href")
	if href == "" {
		return nil
	}
	style := c.currentStyle()
	item := &ImageItem{
		Href:        strings.TrimSpace(href),
		X:           lengths[0],
		Y:           lengths[1],
		Width:       lengths[2],
		Height:      lengths[3],
		AspectRatio: defaultAspectRatio,
		Opacity:     style.Opacity,
		Hidden:      style.Hidden,
		transform:   style.transform,
	}
	if v, ok := el.Attr("preserveAspectRatio"); ok {
		item.AspectRatio, err = parseAspectRatio(v)
		if err = c.warn(err); err != nil {
			return err
		}
	}
	*c.items = append(*c.items, item)
	return nil
}

// gradient returns the gradient with the given id,
// following the href chain for the missing attributes and stops.
func (c *iconCursor) gradient(id string) (*Gradient, error) {
	if grad, ok := c.icon.gradients[id]; ok {
		return grad, nil
	}
	el := c.doc.ElementByID(id)
	if el == nil || (el.Tag != "linearGradient" && el.Tag != "radialGradient") {
		return nil, fmt.Errorf("gradient %s not found", id)
	}
	// collect the chain of templates
	chain := []*svgdom.Element{el}
	for current := el; ; {
		href, _ := current.Attr("href")
		if !strings.HasPrefix(href, "#") {
			break
		}
		next := c.doc.ElementByID(href[1:])
		if next == nil || (next.Tag != "linearGradient" && next.Tag != "radialGradient") {
			break
		}
		cycle := false
		for _, seen := range chain {
			cycle = cycle || seen == next
		}
		if cycle {
			break
		}
		chain = append(chain, next)
		current = next
	}
	// attr returns the first value found in the chain
	attr := func(name string) (string, bool) {
		for _, el := range chain {
			if v, ok := el.Attr(name); ok {
				return v, true
			}
		}
		return "", false
	}

	grad := &Gradient{Matrix: svgpath.Identity, Units: ObjectBoundingBox}
	var err error
	if v, ok := attr("gradientUnits"); ok && v == "userSpaceOnUse" {
		grad.Units = UserSpaceOnUse
	}
	if v, ok := attr("spreadMethod"); ok {
		switch v {
		case "reflect":
			grad.Spread = ReflectSpread
		case "repeat":
			grad.Spread = RepeatSpread
		}
	}
	if v, ok := attr("gradientTransform"); ok {
		if grad.Matrix, err = parseTransform(v); err != nil {
			return nil, err
		}
	}
	// coord reads a fraction, or a length in user space
	coord := func(name string, def float64, ref percentageReference) (float64, error) {
		v, ok := attr(name)
		if !ok {
			return def, nil
		}
		if grad.Units == ObjectBoundingBox {
			return readFraction(v)
		}
		return c.parseUnit(v, ref)
	}
	var d [6]float64
	if el.Tag == "linearGradient" {
		names := [4]string{"x1", "y1", "x2", "y2"}
		defs := [4]float64{0, 0, 1, 0}
		refs := [4]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage}
		if grad.Units == UserSpaceOnUse {
			defs[2] = c.icon.ViewBox.W
		}
		for i := range names {
			if d[i], err = coord(names[i], defs[i], refs[i]); err != nil {
				return nil, err
			}
		}
		grad.Direction = Linear{d[0], d[1], d[2], d[3]}
	} else {
		names := [6]string{"cx", "cy", "fx", "fy", "r", "fr"}
		defs := [6]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0}
		refs := [6]percentageReference{widthPercentage, heightPercentage, widthPercentage, heightPercentage, diagPercentage, diagPercentage}
		if grad.Units == UserSpaceOnUse {
			defs = [6]float64{c.icon.ViewBox.W / 2, c.icon.ViewBox.H / 2, 0, 0, c.icon.ViewBox.W / 2, 0}
		}
		for i := range names {
			if d[i], err = coord(names[i], defs[i], refs[i]); err != nil {
				return nil, err
			}
		}
		if _, ok := attr("fx"); !ok { // set fx to cx by default
			d[2] = d[0]
		}
		if _, ok := attr("fy"); !ok { // set fy to cy by default
			d[3] = d[1]
		}
		grad.Direction = Radial(d)
	}

	// stops come from the first element of the chain having some
	for _, el := range chain {
		for _, stop := range el.ChildElements() {
			if stop.Tag != "stop" {
				continue
			}
			s, err := c.readStop(stop)
			if err != nil {
				return nil, err
			}
			grad.Stops = append(grad.Stops, s)
		}
		if len(grad.Stops) != 0 {
			break
		}
	}
	c.icon.gradients[id] = grad
	return grad, nil
}

func (c *iconCursor) readStop(el *svgdom.Element) (GradStop, error) {
	stop := GradStop{Opacity: 1.0, StopColor: color0}
	if v, ok := el.Attr("offset"); ok {
		offset, err := readFraction(v)
		if err = c.warn(err); err != nil {
			return stop, err
		}
		stop.Offset = offset
	}
	current := c.currentStyle().color
	if v, ok := el.Style("color"); ok {
		if col, err := parseSVGColor(v, current); err == nil && col.valid {
			current = col.color
		}
	}
	if v, ok := el.Style("stop-color"); ok {
		optColor, err := parseSVGColor(v, current)
		if err = c.warn(err); err != nil {
			return stop, err
		}
		stop.StopColor = optColor.asColor()
	}
	if v, ok := el.Style("stop-opacity"); ok {
		op, err := readFraction(v)
		if err = c.warn(err); err != nil {
			return stop, err
		}
		stop.Opacity = op
	}
	return stop, nil
}

var color0 = NewPlainColor(0, 0, 0, 0xff).NRGBA

// decodeClipPath returns the shapes of a <clipPath>, in root user space.
// bbox is the bounding box of the clipped element, in its user space.
func (c *iconCursor) decodeClipPath(el *svgdom.Element, bbox svgpath.Rect) ([]*SvgPath, error) {
	m := svgpath.Identity
	if v, _ := el.Attr("clipPathUnits"); v == "objectBoundingBox" {
		if bbox.IsEmpty() {
			return nil, nil
		}
		m = m.Translate(bbox.MinX, bbox.MinY).Scale(bbox.MaxX-bbox.MinX, bbox.MaxY-bbox.MinY)
	}
	if v, ok := el.Attr("transform"); ok {
		t, err := parseTransform(v)
		if err != nil {
			if err = c.warn(err); err != nil {
				return nil, err
			}
		} else {
			m = m.Mult(t)
		}
	}

	var items []Item
	parentItems, parentInClip := c.items, c.inClip
	c.items, c.inClip = &items, true
	style := c.currentStyle()
	style.UseNonZeroWinding = true
	style.transform = style.transform.Mult(m)
	c.styleStack = append(c.styleStack, style)
	err := c.decodeChildren(el)
	c.popStyle()
	c.items, c.inClip = parentItems, parentInClip
	if err != nil {
		return nil, err
	}

	out := make([]*SvgPath, 0, len(items))
	for _, item := range items {
		if path, ok := item.(*SvgPath); ok && !path.Style.Hidden {
			out = append(out, path)
		}
	}
	if len(out) == 0 {
		// an empty clip path clips everything; an empty shape enforces that
		out = append(out, &SvgPath{Style: style})
	}
	return out, nil
}
