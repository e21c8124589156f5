package svgraster

import (
	"image"

	"github.com/anthonynsimon/bild/clone"
	"github.com/benoitkugler/svgbbox/svgicon"
	"golang.org/x/image/draw"
)

var opaqueWhite = svgicon.NewPlainColor(0xff, 0xff, 0xff, 0xff)

// applyClip returns a copy of layer restricted to the union
// of the clip shapes.
func applyClip(layer *image.RGBA, shapes []svgicon.ClipShape) *image.RGBA {
	bounds := layer.Bounds()
	mask := newSurface(image.NewRGBA(bounds))
	for _, shape := range shapes {
		mask.filler.Clear()
		mask.filler.SetWinding(shape.UseNonZeroWinding)
		shape.Path.AddTo(mask.filler, shape.Transform)
		mask.filler.SetColor(opaqueWhite, 1)
		mask.filler.Draw()
	}
	out := image.NewRGBA(bounds)
	draw.DrawMask(out, bounds, layer, bounds.Min, mask.img, bounds.Min, draw.Src)
	return out
}

// withOpacity returns an RGBA copy of img, with
// its alpha multiplied by opacity.
func withOpacity(img image.Image, opacity float64) *image.RGBA {
	out := clone.AsRGBA(img)
	if opacity <= 0 {
		clear(out.Pix)
		return out
	}
	// premultiplied: every channel is scaled
	f := uint32(opacity*0xff + 0.5)
	for i, v := range out.Pix {
		out.Pix[i] = uint8(uint32(v) * f / 0xff)
	}
	return out
}
