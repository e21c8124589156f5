package visualbbox

import (
	"context"
	"image"
	"math"
	"strconv"

	"github.com/benoitkugler/svgbbox/svgdom"
)

// Rasterizer is the rendering capability used by the engine.
type Rasterizer interface {
	// Rasterize decodes the SVG markup and draws it on a cleared,
	// transparent surface of width x height pixels, then reads back its samples.
	// Decoding failures are reported with *RenderLoadError, blocked
	// readbacks with *PixelReadSecurityError.
	Rasterize(ctx context.Context, markup []byte, width, height int) (*image.RGBA, error)

	// DrawingBounds returns the geometric bounding box of the whole
	// drawing, in root user units, ignoring clipping, strokes and effects.
	// The boolean is false if nothing is drawn.
	DrawingBounds(ctx context.Context, markup []byte) (BBox, bool, error)
}

// FontWaiter is optionally implemented by rasterizers which load fonts
// asynchronously. FontsReady blocks until the fonts are available.
type FontWaiter interface {
	FontsReady(ctx context.Context) error
}

// PassKind identifies the rasterization passes.
type PassKind string

const (
	CoarsePass PassKind = "coarse"
	FinePass   PassKind = "fine"
)

// PassInfo describes a rasterization pass, for debugging.
type PassInfo struct {
	Kind PassKind
	// Target is the measured element, in the live document.
	Target *svgdom.Element
	ROI    BBox
	// Resolution is in pixels per user unit.
	Resolution float64
	Raster     *image.RGBA
	// Result is nil if no pixel is visible.
	Result *BBox
}

// pixelSize returns the raster size covering length user units.
func pixelSize(length, res float64) int {
	return max(1, int(math.Round(length*res)))
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// rasterPass draws the isolated clone restricted to roi, at res pixels
// per user unit, and returns the raster.
func rasterPass(ctx context.Context, r Rasterizer, clone *svgdom.Document, roi BBox, res float64) (*image.RGBA, error) {
	width, height := pixelSize(roi.Width, res), pixelSize(roi.Height, res)

	root := clone.Root()
	root.SetAttr("viewBox", formatFloat(roi.X)+" "+formatFloat(roi.Y)+" "+formatFloat(roi.Width)+" "+formatFloat(roi.Height))
	root.SetAttr("width", strconv.Itoa(width))
	root.SetAttr("height", strconv.Itoa(height))
	root.SetAttr("preserveAspectRatio", "none")

	return r.Rasterize(ctx, clone.Markup(), width, height)
}
