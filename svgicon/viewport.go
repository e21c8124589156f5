package svgicon

import (
	"fmt"
	"math"
	"strings"

	"github.com/benoitkugler/svgbbox/svgpath"
)

// Align is the alignment of the viewBox in the viewport,
// along one axis.
type Align uint8

const (
	AlignMin Align = iota
	AlignMid
	AlignMax
)

// AspectRatio is the value of a preserveAspectRatio attribute.
type AspectRatio struct {
	// None disables the uniform scaling
	None  bool
	X, Y  Align
	Slice bool // instead of meet
}

var defaultAspectRatio = AspectRatio{X: AlignMid, Y: AlignMid}

func parseAspectRatio(v string) (AspectRatio, error) {
	out := defaultAspectRatio
	fields := strings.Fields(v)
	if len(fields) == 0 || len(fields) > 2 {
		return out, fmt.Errorf("invalid preserveAspectRatio %q", v)
	}
	if len(fields) == 2 {
		switch fields[1] {
		case "meet":
		case "slice":
			out.Slice = true
		default:
			return out, fmt.Errorf("invalid preserveAspectRatio %q", v)
		}
	}
	align := fields[0]
	if align == "none" {
		out.None = true
		return out, nil
	}
	if len(align) != 8 || !strings.HasPrefix(align, "x") || align[4] != 'Y' {
		return out, fmt.Errorf("invalid preserveAspectRatio %q", v)
	}
	readAlign := func(s string) (Align, bool) {
		switch s {
		case "Min":
			return AlignMin, true
		case "Mid":
			return AlignMid, true
		case "Max":
			return AlignMax, true
		}
		return 0, false
	}
	var okX, okY bool
	out.X, okX = readAlign(align[1:4])
	out.Y, okY = readAlign(align[5:8])
	if !okX || !okY {
		return out, fmt.Errorf("invalid preserveAspectRatio %q", v)
	}
	return out, nil
}

func alignOffset(align Align, available, used float64) float64 {
	switch align {
	case AlignMid:
		return (available - used) / 2
	case AlignMax:
		return available - used
	}
	return 0
}

// viewBoxTransform returns the matrix mapping the viewBox
// to a viewport of size (width, height) placed at the origin.
func (ar AspectRatio) viewBoxTransform(vb Bounds, width, height float64) svgpath.Matrix2D {
	if vb.W <= 0 || vb.H <= 0 {
		return svgpath.Identity
	}
	sx, sy := width/vb.W, height/vb.H
	if ar.None {
		return svgpath.Identity.Scale(sx, sy).Translate(-vb.X, -vb.Y)
	}
	s := math.Min(sx, sy)
	if ar.Slice {
		s = math.Max(sx, sy)
	}
	tx := alignOffset(ar.X, width, vb.W*s)
	ty := alignOffset(ar.Y, height, vb.H*s)
	return svgpath.Identity.Translate(tx, ty).Scale(s, s).Translate(-vb.X, -vb.Y)
}

// SetTarget sets the Transform matrix to draw within the bounds of the rectangle arguments,
// according to the root preserveAspectRatio.
func (s *SvgIcon) SetTarget(x, y, w, h float64) {
	s.Transform = svgpath.Identity.Translate(x, y).Mult(s.AspectRatio.viewBoxTransform(s.ViewBox, w, h))
}

// Placement returns the viewport of the image, in the image user space,
// and the matrix mapping the pixels of the image data to this space,
// given the intrinsic size of the data.
// A zero width or height is computed from the intrinsic aspect ratio.
func (img *ImageItem) Placement(intrinsicW, intrinsicH float64) (Bounds, svgpath.Matrix2D) {
	vp := Bounds{X: img.X, Y: img.Y, W: img.Width, H: img.Height}
	switch {
	case vp.W <= 0 && vp.H <= 0:
		vp.W, vp.H = intrinsicW, intrinsicH
	case vp.W <= 0 && intrinsicH > 0:
		vp.W = vp.H * intrinsicW / intrinsicH
	case vp.H <= 0 && intrinsicW > 0:
		vp.H = vp.W * intrinsicH / intrinsicW
	}
	m := img.AspectRatio.viewBoxTransform(Bounds{W: intrinsicW, H: intrinsicH}, vp.W, vp.H)
	return vp, svgpath.Identity.Translate(vp.X, vp.Y).Mult(m)
}
