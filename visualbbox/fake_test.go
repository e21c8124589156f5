package visualbbox

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/benoitkugler/svgbbox/svgdom"
)

// rectRasterizer only draws the <rect> elements, filled with opaque black,
// which is enough to check the geometry of the passes.
type rectRasterizer struct {
	sizes [][2]int // of each Rasterize call
	err   error
}

type rect struct{ x, y, w, h float64 }

func attrFloat(el *svgdom.Element, name string) float64 {
	s, _ := el.Attr(name)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// visibleRects returns the rects not hidden by display or fill-opacity.
func visibleRects(doc *svgdom.Document, all bool) []rect {
	var out []rect
	doc.Root().Walk(func(el *svgdom.Element) bool {
		if v, _ := el.Style("display"); v == "none" && !all {
			return false
		}
		if el.Tag == "defs" {
			return false
		}
		if v, _ := el.Style("fill-opacity"); v == "0" && !all {
			return true
		}
		if el.Tag == "rect" {
			out = append(out, rect{attrFloat(el, "x"), attrFloat(el, "y"), attrFloat(el, "width"), attrFloat(el, "height")})
		}
		return true
	})
	return out
}

func (r *rectRasterizer) Rasterize(_ context.Context, markup []byte, width, height int) (*image.RGBA, error) {
	if r.err != nil {
		return nil, &RenderLoadError{Cause: r.err}
	}
	r.sizes = append(r.sizes, [2]int{width, height})
	doc, err := svgdom.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, &RenderLoadError{Cause: err}
	}
	vbAttr, _ := doc.Root().Attr("viewBox")
	vb, _ := parseViewBox(vbAttr)
	sx, sy := float64(width)/vb.Width, float64(height)/vb.Height

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for _, rc := range visibleRects(doc, false) {
		x0 := max(0, int(math.Floor((rc.x-vb.X)*sx)))
		x1 := min(width, int(math.Ceil((rc.x+rc.w-vb.X)*sx)))
		y0 := max(0, int(math.Floor((rc.y-vb.Y)*sy)))
		y1 := min(height, int(math.Ceil((rc.y+rc.h-vb.Y)*sy)))
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			}
		}
	}
	return img, nil
}

func (r *rectRasterizer) DrawingBounds(_ context.Context, markup []byte) (BBox, bool, error) {
	doc, err := svgdom.Parse(bytes.NewReader(markup))
	if err != nil {
		return BBox{}, false, &RenderLoadError{Cause: err}
	}
	var out *BBox
	for _, rc := range visibleRects(doc, true) {
		out = unionAll([]*BBox{out, {X: rc.x, Y: rc.y, Width: rc.w, Height: rc.h}})
	}
	if out == nil {
		return BBox{}, false, nil
	}
	return *out, true, nil
}

// slowFonts never reports its fonts as ready.
type slowFonts struct {
	rectRasterizer
	waited bool
}

func (s *slowFonts) FontsReady(ctx context.Context) error {
	s.waited = true
	<-ctx.Done()
	return ctx.Err()
}
