package svgicon

import (
	"github.com/benoitkugler/svgbbox/svgpath"
	"golang.org/x/image/math/fixed"
)

// Drawer knows how to do the actual draw operations
// but doesn't need any SVG kwowledge
// In particular, tranformations matrix are already applied to the points
// before sending them to the Drawer.
type Drawer interface {
	svgpath.Adder

	// Clear must reset the internal state (used before starting a new path painting)
	Clear()

	// SetColor set the color for the current path.
	// Gradients in UserSpaceOnUse units have their Matrix
	// mapping the gradient space to the device.
	SetColor(color Pattern, opacity float64)

	// Draw fills or strokes the accumulated path using the current settings
	// depending on the filling mode
	Draw()
}

type Filler interface {
	Drawer

	// Decide to use or not the NonZeroWinding rule for the current path
	SetWinding(useNonZeroWinding bool)
}

type Stroker interface {
	Drawer

	// Parametrize the stroking style for the current path
	SetStrokeOptions(options StrokeOptions)
}

// ClipShape is a clip path, in device space.
type ClipShape struct {
	Path              svgpath.Path
	Transform         svgpath.Matrix2D
	UseNonZeroWinding bool
}

// LayerEffect describes how a layer is composited
// onto its parent.
type LayerEffect struct {
	// Filter is nil for no filter effect.
	Filter *ResolvedFilter
	// FilterTransform maps the user space of the filter
	// (in which its region and lengths are expressed) to the device.
	FilterTransform svgpath.Matrix2D

	// Clip is nil for no clipping. The layer is restricted
	// to the union of the shapes.
	Clip []ClipShape
}

type Driver interface {
	// SetupDrawers returns the backend painters, and
	// will be called at the begining of every path.
	// If the `willXXX` boolean is false, the returned drawer should be nil
	// to avoid useless operations.
	// When both booleans are true, one can assume that the exact same draw operations
	// will be performed on the Filler first and then on the Stroker.
	// This promise may enable the implementation to avoid duplicating filled and stroked paths
	SetupDrawers(willFill, willStroke bool) (Filler, Stroker)

	// DrawImage paints the image, where m maps
	// the image user space to the device.
	DrawImage(img *ImageItem, m svgpath.Matrix2D, opacity float64)

	// PushLayer starts a new transparent layer: the following
	// drawing operations are done on it, until PopLayer is called.
	PushLayer()

	// PopLayer applies the effect to the current layer, composites
	// it onto the previous one and discards it.
	PopLayer(effect LayerEffect)
}

type DashOptions struct {
	Dash       []float64 // values for the dash pattern (nil or an empty slice for no dashes)
	DashOffset float64   // starting offset into the dash array
}

// JoinMode type to specify how segments join.
type JoinMode uint8

// JoinMode constants determine how stroke segments bridge the gap at a join
// ArcClip mode is like MiterClip applied to arcs, and is not part of the SVG2.0
// standard.
const (
	Arc JoinMode = iota // New in SVG2
	Round
	Bevel
	Miter
	MiterClip // New in SVG2
	ArcClip   // Like MiterClip applied to arcs, and is not part of the SVG2.0 standard.
)

// CapMode defines how to draw caps on the ends of lines
type CapMode uint8

const (
	NilCap CapMode = iota // default value
	ButtCap
	SquareCap
	RoundCap
	CubicCap     // Not part of the SVG2.0 standard.
	QuadraticCap // Not part of the SVG2.0 standard.
)

// GapMode defines how to bridge gaps when the miter limit is exceeded,
// and is not part of the SVG2.0 standard.
type GapMode uint8

const (
	NilGap GapMode = iota
	FlatGap
	RoundGap
	CubicGap
	QuadraticGap
)

type JoinOptions struct {
	MiterLimit   fixed.Int26_6 // he miter cutoff value for miter, arc, miterclip and arcClip joinModes
	LineJoin     JoinMode      // JoinMode for curve segments
	TrailLineCap CapMode       // capping functions for leading and trailing line ends. If one is nil, the other function is used at both ends.

	LeadLineCap CapMode // not part of the standard specification
	LineGap     GapMode // not part of the standard specification. determines how a gap on the convex side of two lines joining is filled
}

type StrokeOptions struct {
	LineWidth fixed.Int26_6 // width of the line, in device space
	Join      JoinOptions
	Dash      DashOptions // in device space
}

// Draw the compiled SVG icon into the driver `d`.
// All elements should be contained by the Bounds rectangle of the SvgIcon.
func (s *SvgIcon) Draw(d Driver, opacity float64) {
	drawItems(d, s.Items, opacity, s.Transform)
}

func drawItems(d Driver, items []Item, opacity float64, t svgpath.Matrix2D) {
	for _, item := range items {
		switch item := item.(type) {
		case *SvgPath:
			if !item.Style.Hidden {
				item.drawTransformed(d, opacity, t)
			}
		case *ImageItem:
			if !item.Hidden && item.Opacity > 0 {
				d.DrawImage(item, t.Mult(item.transform), item.Opacity*opacity)
			}
		case *Layer:
			effect := LayerEffect{Filter: item.Filter, FilterTransform: t.Mult(item.transform)}
			for _, clip := range item.Clip {
				effect.Clip = append(effect.Clip, ClipShape{
					Path:              clip.Path,
					Transform:         t.Mult(clip.Style.transform),
					UseNonZeroWinding: clip.Style.UseNonZeroWinding,
				})
			}
			d.PushLayer()
			drawItems(d, item.Items, opacity, t)
			d.PopLayer(effect)
		}
	}
}

// devicePattern maps user space gradients to the device
func devicePattern(p Pattern, m svgpath.Matrix2D) Pattern {
	if grad, ok := p.(Gradient); ok && grad.Units == UserSpaceOnUse {
		grad.Matrix = m.Mult(grad.Matrix)
		return grad
	}
	return p
}

// drawTransformed draws the compiled SvgPath into the driver while applying transform t.
func (svgp *SvgPath) drawTransformed(d Driver, opacity float64, t svgpath.Matrix2D) {
	m := t.Mult(svgp.Style.transform)
	opacity *= svgp.Style.Opacity

	filler, stroker := d.SetupDrawers(svgp.Style.FillerColor != nil, svgp.Style.LinerColor != nil && svgp.Style.LineWidth > 0)
	if filler != nil { // nil color disable filling
		filler.Clear()
		filler.SetWinding(svgp.Style.UseNonZeroWinding)

		svgp.Path.AddTo(filler, m)

		filler.SetColor(devicePattern(svgp.Style.FillerColor, m), svgp.Style.FillOpacity*opacity)
		filler.Draw()
		filler.SetWinding(true) // default is true
	}

	if stroker != nil { // nil color disable lining
		stroker.Clear()

		lineGap := svgp.Style.Join.LineGap
		if lineGap == NilGap {
			lineGap = DefaultStyle.Join.LineGap
		}
		lineCap := svgp.Style.Join.TrailLineCap
		if lineCap == NilCap {
			lineCap = DefaultStyle.Join.TrailLineCap
		}
		leadLineCap := lineCap
		if svgp.Style.Join.LeadLineCap != NilCap {
			leadLineCap = svgp.Style.Join.LeadLineCap
		}
		// lengths are scaled to the device
		scale := m.ScaleFactor()
		dash := DashOptions{DashOffset: svgp.Style.Dash.DashOffset * scale}
		var dashSum float64
		for _, v := range svgp.Style.Dash.Dash {
			dash.Dash = append(dash.Dash, v*scale)
			dashSum += v
		}
		if dashSum <= 0 { // invalid dash arrays render as solid lines
			dash = DashOptions{}
		}
		stroker.SetStrokeOptions(StrokeOptions{
			LineWidth: fToFixed(svgp.Style.LineWidth * scale),
			Join: JoinOptions{
				MiterLimit:   svgp.Style.Join.MiterLimit,
				LineJoin:     svgp.Style.Join.LineJoin,
				LeadLineCap:  leadLineCap,
				TrailLineCap: lineCap,
				LineGap:      lineGap,
			},
			Dash: dash,
		})

		svgp.Path.AddTo(stroker, m)

		stroker.SetColor(devicePattern(svgp.Style.LinerColor, m), svgp.Style.LineOpacity*opacity)
		stroker.Draw()
	}
}
