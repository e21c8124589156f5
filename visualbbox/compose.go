package visualbbox

import (
	"context"
	"math"

	"github.com/benoitkugler/svgbbox/svgdom"
)

// UnionResult is the result of ComputeUnionBBox.
type UnionResult struct {
	// Union is nil if no target is visible.
	Union *BBox `json:"union"`
	// Boxes are the visual boxes of each target, in the input order.
	Boxes []*BBox `json:"boxes"`
}

// ComputeUnionBBox measures every target and returns the union of the
// visible ones. All the targets must belong to the same document,
// otherwise a *CrossRootError is returned before any rasterization.
func (e *Engine) ComputeUnionBBox(ctx context.Context, targets []Target, opts Options) (*UnionResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	elements := make([]*svgdom.Element, len(targets))
	for i, target := range targets {
		elements[i], err = target.resolve()
		if err != nil {
			return nil, err
		}
		if elements[i].Document() != elements[0].Document() {
			return nil, &CrossRootError{Index: i}
		}
	}
	out := &UnionResult{Boxes: make([]*BBox, len(elements))}
	if len(elements) == 0 {
		return out, nil
	}

	if err := e.waitFonts(ctx, opts); err != nil {
		return nil, err
	}
	p, err := e.newPlan(ctx, elements[0].Document(), opts)
	if err != nil {
		return nil, err
	}
	for i, el := range elements {
		out.Boxes[i], err = e.computeOne(ctx, el, p)
		if err != nil {
			return nil, err
		}
	}
	out.Union = unionAll(out.Boxes)
	return out, nil
}

// VisibleAndFull compares the visible part of an element
// with its whole drawing.
type VisibleAndFull struct {
	// Visible is the box restricted to the root viewBox.
	Visible *BBox `json:"visible"`
	// Full also includes the content outside the viewport.
	Full *BBox `json:"full"`
}

// Clipped returns true if a part of the drawing lies outside the viewport.
func (vf VisibleAndFull) Clipped() bool {
	switch {
	case vf.Full == nil:
		return false
	case vf.Visible == nil:
		return true
	default:
		return *vf.Visible != *vf.Full
	}
}

// ComputeVisibleAndFull measures the target in both Clipped and Unclipped
// modes. The Mode of opts is ignored.
func (e *Engine) ComputeVisibleAndFull(ctx context.Context, target Target, opts Options) (VisibleAndFull, error) {
	opts.Mode = Clipped
	opts, err := opts.withDefaults()
	if err != nil {
		return VisibleAndFull{}, err
	}
	el, err := target.resolve()
	if err != nil {
		return VisibleAndFull{}, err
	}
	if err := e.waitFonts(ctx, opts); err != nil {
		return VisibleAndFull{}, err
	}

	var out VisibleAndFull
	for _, mode := range [...]Mode{Clipped, Unclipped} {
		opts.Mode = mode
		p, err := e.newPlan(ctx, el.Document(), opts)
		if err != nil {
			return VisibleAndFull{}, err
		}
		bbox, err := e.computeOne(ctx, el, p)
		if err != nil {
			return VisibleAndFull{}, err
		}
		if mode == Clipped {
			out.Visible = bbox
		} else {
			out.Full = bbox
		}
	}
	return out, nil
}

// ViewBoxExpansion is the padding to add to a root viewBox
// so that it encloses the whole drawing.
type ViewBoxExpansion struct {
	// CurrentViewBox is the viewBox of the root, or its
	// viewport when it has none.
	CurrentViewBox BBox `json:"currentViewBox"`

	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	// ViewBox is the expanded viewBox.
	ViewBox BBox `json:"viewBox"`
}

// ComputeViewBoxExpansion compares the viewBox of the root of doc (or its viewport
// if there is no viewBox) with the full visual box of the root element,
// and returns the padding needed on each side, or nil if nothing renders.
// The Mode of opts is ignored.
func (e *Engine) ComputeViewBoxExpansion(ctx context.Context, doc *svgdom.Document, opts Options) (*ViewBoxExpansion, error) {
	if doc == nil || !doc.IsSVG() {
		return nil, &NotFoundError{Reason: "the document has no <svg> root"}
	}
	opts.Mode = Unclipped
	full, err := e.ComputeBBox(ctx, ByElement(doc.Root()), opts)
	if err != nil || full == nil {
		return nil, err
	}
	return expansion(newRootViewport(doc.Root()).box, *full), nil
}

func expansion(vb, full BBox) *ViewBoxExpansion {
	out := &ViewBoxExpansion{
		CurrentViewBox: vb,
		Left:           math.Max(0, vb.X-full.X),
		Top:            math.Max(0, vb.Y-full.Y),
		Right:          math.Max(0, (full.X+full.Width)-(vb.X+vb.Width)),
		Bottom:         math.Max(0, (full.Y+full.Height)-(vb.Y+vb.Height)),
	}
	out.ViewBox = BBox{
		X:      vb.X - out.Left,
		Y:      vb.Y - out.Top,
		Width:  vb.Width + out.Left + out.Right,
		Height: vb.Height + out.Top + out.Bottom,
	}
	return out
}
