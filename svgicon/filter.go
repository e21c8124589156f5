package svgicon

import (
	"fmt"
	"image/color"
	"math"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgpath"
)

// FilterKind identifies a filter primitive.
type FilterKind uint8

const (
	// PassthroughPrimitive copies its input; it is used
	// for the unsupported primitives
	PassthroughPrimitive FilterKind = iota
	BlurPrimitive
	OffsetPrimitive
	DropShadowPrimitive
	FloodPrimitive
	MergePrimitive
	CompositePrimitive
)

// Names of the predefined filter inputs
const (
	SourceGraphic = "SourceGraphic"
	SourceAlpha   = "SourceAlpha"
)

// FilterPrimitive is one step of a filter chain.
// An empty In refers to the result of the previous primitive
// (or SourceGraphic for the first one).
type FilterPrimitive struct {
	Kind            FilterKind
	In, In2, Result string

	StdDevX, StdDevY float64 // BlurPrimitive, DropShadowPrimitive
	Dx, Dy           float64 // OffsetPrimitive, DropShadowPrimitive

	// Color is the flood color, with the flood opacity
	// applied (FloodPrimitive, DropShadowPrimitive)
	Color color.NRGBA

	Operator string   // CompositePrimitive
	Inputs   []string // MergePrimitive
}

// Filter is a parsed <filter> element.
type Filter struct {
	Units, PrimitiveUnits GradientUnits
	// the filter region, as fractions of the bounding box
	// or in user space, depending on Units
	X, Y, Width, Height float64
	Primitives          []FilterPrimitive
}

// ResolvedFilter is a filter applied to a given element: all its
// lengths are expressed in the user space of the element.
type ResolvedFilter struct {
	// Region is the filter region; the result of the filter
	// is clipped to it.
	Region     svgpath.Rect
	Primitives []FilterPrimitive
}

// filter returns the filter with the given id.
func (c *iconCursor) filter(id string) (*Filter, error) {
	if f, ok := c.icon.filters[id]; ok {
		return f, nil
	}
	el := c.doc.ElementByID(id)
	if el == nil || el.Tag != "filter" {
		return nil, fmt.Errorf("filter %s not found", id)
	}
	f, err := c.parseFilter(el)
	if err != nil {
		return nil, err
	}
	c.icon.filters[id] = f
	return f, nil
}

func (c *iconCursor) parseFilter(el *svgdom.Element) (*Filter, error) {
	f := &Filter{Units: ObjectBoundingBox, PrimitiveUnits: UserSpaceOnUse, X: -0.1, Y: -0.1, Width: 1.2, Height: 1.2}
	if v, _ := el.Attr("filterUnits"); v == "userSpaceOnUse" {
		f.Units = UserSpaceOnUse
		// percentages of the viewport
		f.X, f.Y = -0.1*c.icon.ViewBox.W, -0.1*c.icon.ViewBox.H
		f.Width, f.Height = 1.2*c.icon.ViewBox.W, 1.2*c.icon.ViewBox.H
	}
	if v, _ := el.Attr("primitiveUnits"); v == "objectBoundingBox" {
		f.PrimitiveUnits = ObjectBoundingBox
	}
	targets := [4]*float64{&f.X, &f.Y, &f.Width, &f.Height}
	for i, name := range [4]string{"x", "y", "width", "height"} {
		v, ok := el.Attr(name)
		if !ok {
			continue
		}
		var (
			val float64
			err error
		)
		if f.Units == ObjectBoundingBox {
			val, err = readFraction(v)
		} else {
			val, err = c.parseUnit(v, percentageReference(i%2))
		}
		if err != nil {
			if err = c.warn(fmt.Errorf("<filter> %s: %w", name, err)); err != nil {
				return nil, err
			}
			continue
		}
		*targets[i] = val
	}

	for _, child := range el.ChildElements() {
		prim, err := c.parsePrimitive(child)
		if err != nil {
			return nil, err
		}
		f.Primitives = append(f.Primitives, prim)
	}
	return f, nil
}

// readNumberPair reads "a [b]", b defaulting to a
func readNumberPair(v string) (float64, float64, error) {
	nums, err := svgpath.ParseNumbers(v)
	if err != nil {
		return 0, 0, err
	}
	switch len(nums) {
	case 1:
		return nums[0], nums[0], nil
	case 2:
		return nums[0], nums[1], nil
	}
	return 0, 0, errParamMismatch
}

// readFlood reads the flood-color and flood-opacity properties
func (c *iconCursor) readFlood(el *svgdom.Element) (color.NRGBA, error) {
	col := NewPlainColor(0, 0, 0, 0xff)
	opacity := 1.
	if v, ok := el.Style("flood-color"); ok {
		parsed, err := parseSVGColor(v, c.currentStyle().color)
		if err != nil {
			return col.NRGBA, err
		}
		if parsed.valid {
			col = parsed.color
		} else {
			col.A = 0
		}
	}
	if v, ok := el.Style("flood-opacity"); ok {
		op, err := readFraction(v)
		if err != nil {
			return col.NRGBA, err
		}
		opacity = math.Max(0, math.Min(1, op))
	}
	col.A = uint8(math.Round(float64(col.A) * opacity))
	return col.NRGBA, nil
}

func (c *iconCursor) parsePrimitive(el *svgdom.Element) (FilterPrimitive, error) {
	prim := FilterPrimitive{}
	prim.In, _ = el.Attr("in")
	prim.In2, _ = el.Attr("in2")
	prim.Result, _ = el.Attr("result")

	var err error
	switch el.Tag {
	case "feGaussianBlur":
		prim.Kind = BlurPrimitive
		if v, ok := el.Attr("stdDeviation"); ok {
			prim.StdDevX, prim.StdDevY, err = readNumberPair(v)
		}
	case "feOffset":
		prim.Kind = OffsetPrimitive
		if v, ok := el.Attr("dx"); ok {
			prim.Dx, err = parseFloat(v)
		}
		if v, ok := el.Attr("dy"); ok && err == nil {
			prim.Dy, err = parseFloat(v)
		}
	case "feDropShadow":
		prim.Kind = DropShadowPrimitive
		prim.StdDevX, prim.StdDevY, prim.Dx, prim.Dy = 2, 2, 2, 2
		if v, ok := el.Attr("stdDeviation"); ok {
			prim.StdDevX, prim.StdDevY, err = readNumberPair(v)
		}
		if v, ok := el.Attr("dx"); ok && err == nil {
			prim.Dx, err = parseFloat(v)
		}
		if v, ok := el.Attr("dy"); ok && err == nil {
			prim.Dy, err = parseFloat(v)
		}
		if err == nil {
			prim.Color, err = c.readFlood(el)
		}
	case "feFlood":
		prim.Kind = FloodPrimitive
		prim.Color, err = c.readFlood(el)
	case "feMerge":
		prim.Kind = MergePrimitive
		for _, node := range el.ChildElements() {
			if node.Tag == "feMergeNode" {
				in, _ := node.Attr("in")
				prim.Inputs = append(prim.Inputs, in)
			}
		}
	case "feComposite":
		prim.Kind = CompositePrimitive
		prim.Operator, _ = el.Attr("operator")
		if prim.Operator == "" {
			prim.Operator = "over"
		}
	default:
		prim.Kind = PassthroughPrimitive
		err = c.warn(fmt.Errorf("unsupported filter primitive <%s>", el.Tag))
		return prim, err
	}
	if err != nil {
		err = c.warn(fmt.Errorf("<%s>: %w", el.Tag, err))
	}
	if prim.StdDevX < 0 || prim.StdDevY < 0 { // disables the effect
		prim.StdDevX, prim.StdDevY = 0, 0
	}
	return prim, err
}

// resolve computes the filter region and the primitive
// lengths for an element whose bounding box is bbox (in its user space).
func (f *Filter) resolve(bbox svgpath.Rect) *ResolvedFilter {
	out := &ResolvedFilter{Primitives: append([]FilterPrimitive(nil), f.Primitives...)}
	if f.Units == ObjectBoundingBox {
		if bbox.IsEmpty() {
			out.Region = svgpath.EmptyRect
			return out
		}
		w, h := bbox.MaxX-bbox.MinX, bbox.MaxY-bbox.MinY
		out.Region = svgpath.Rect{
			MinX: bbox.MinX + f.X*w,
			MinY: bbox.MinY + f.Y*h,
			MaxX: bbox.MinX + (f.X+f.Width)*w,
			MaxY: bbox.MinY + (f.Y+f.Height)*h,
		}
	} else {
		out.Region = svgpath.Rect{MinX: f.X, MinY: f.Y, MaxX: f.X + f.Width, MaxY: f.Y + f.Height}
	}
	if f.PrimitiveUnits == ObjectBoundingBox && !bbox.IsEmpty() {
		w, h := bbox.MaxX-bbox.MinX, bbox.MaxY-bbox.MinY
		for i := range out.Primitives {
			p := &out.Primitives[i]
			p.StdDevX *= w
			p.StdDevY *= h
			p.Dx *= w
			p.Dy *= h
		}
	}
	return out
}
