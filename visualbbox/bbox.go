package visualbbox

import (
	"fmt"
	"math"
)

// BBox is an axis aligned rectangle in root user units
// (the coordinate system of the root viewBox).
type BBox struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Empty returns true if the box has no area.
func (b BBox) Empty() bool { return !(b.Width > 0 && b.Height > 0) }

// Union returns the smallest box enclosing b and other.
func (b BBox) Union(other BBox) BBox {
	minX, minY := math.Min(b.X, other.X), math.Min(b.Y, other.Y)
	maxX := math.Max(b.X+b.Width, other.X+other.Width)
	maxY := math.Max(b.Y+b.Height, other.Y+other.Height)
	return BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Expand grows the box by margin on every side.
// Negative margins shrink it, the dimensions are clamped to zero.
func (b BBox) Expand(margin float64) BBox {
	return BBox{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  math.Max(0, b.Width+2*margin),
		Height: math.Max(0, b.Height+2*margin),
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", b.X, b.Y, b.Width, b.Height)
}

// unionAll returns the union of the non nil boxes, or nil.
func unionAll(boxes []*BBox) *BBox {
	var out *BBox
	for _, b := range boxes {
		if b == nil {
			continue
		}
		if out == nil {
			u := *b
			out = &u
		} else {
			*out = out.Union(*b)
		}
	}
	return out
}
