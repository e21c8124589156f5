// Package visualbbox computes the visual bounding box of SVG elements:
// the tightest rectangle enclosing every pixel actually rendered,
// including strokes, filters and text shaping effects.
//
// The target is isolated in a clone of its document, then rasterized twice:
// a coarse pass over the whole search region finds the approximate extent,
// and a fine pass over this extent, expanded by a safety margin, refines it.
// Rendering is delegated to a Rasterizer, such as the ones provided by
// the svgraster and rodraster packages.
package visualbbox

import (
	"context"
	"log/slog"

	"github.com/benoitkugler/svgbbox/svgdom"
)

// Engine computes visual bounding boxes with a Rasterizer.
// It holds no state between calls, and may be used concurrently
// if its Rasterizer supports it.
type Engine struct {
	r Rasterizer
}

// New returns an engine rendering with r.
func New(r Rasterizer) *Engine { return &Engine{r: r} }

// plan is shared by the targets of a call, which belong
// to the same document.
type plan struct {
	opts      Options
	roi       BBox // search region of the coarse pass
	coarseRes float64
	fineRes   float64
}

// ComputeBBox returns the visual bounding box of the target,
// in the user space of its root <svg>, or nil if it renders no visible pixel.
func (e *Engine) ComputeBBox(ctx context.Context, target Target, opts Options) (*BBox, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	el, err := target.resolve()
	if err != nil {
		return nil, err
	}
	if err := e.waitFonts(ctx, opts); err != nil {
		return nil, err
	}
	p, err := e.newPlan(ctx, el.Document(), opts)
	if err != nil {
		return nil, err
	}
	return e.computeOne(ctx, el, p)
}

// waitFonts blocks until the fonts of the rasterizer are loaded,
// at most for the font timeout. An expired wait is not an error.
func (e *Engine) waitFonts(ctx context.Context, opts Options) error {
	fw, ok := e.r.(FontWaiter)
	if !ok {
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, opts.fontTimeout())
	defer cancel()
	err := fw.FontsReady(wctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	opts.Logger.Warn("visualbbox: fonts not ready, measuring anyway",
		slog.Duration("timeout", opts.fontTimeout()), slog.Any("err", err))
	return nil
}

// newPlan computes the search region and the resolutions for doc.
func (e *Engine) newPlan(ctx context.Context, doc *svgdom.Document, opts Options) (plan, error) {
	vp := newRootViewport(doc.Root())
	p := plan{opts: opts, roi: vp.box}
	if opts.Mode == Unclipped {
		bounds, ok, err := e.r.DrawingBounds(ctx, doc.Markup())
		if err != nil {
			return plan{}, err
		}
		if !ok {
			bounds = BBox{}
		}
		p.roi = bounds
	}

	base := 1.
	if *opts.UseLayoutScale {
		base = vp.scale
	}
	p.coarseRes = max(minCoarseRes, base*opts.CoarseFactor)
	p.fineRes = max(minFineRes, base*opts.FineFactor)
	return p, nil
}

// computeOne runs the two passes for el.
func (e *Engine) computeOne(ctx context.Context, el *svgdom.Element, p plan) (*BBox, error) {
	logger := p.opts.Logger
	if p.roi.Empty() {
		logger.Debug("visualbbox: empty search region", slog.String("roi", p.roi.String()))
		return nil, nil
	}

	clone, err := isolate(el)
	if err != nil {
		return nil, err
	}

	coarse, err := e.pass(ctx, CoarsePass, el, clone, p.roi, p.coarseRes, p.opts)
	if err != nil || coarse == nil {
		return nil, err
	}

	fineROI := coarse.Expand(p.opts.margin(*coarse))
	if fineROI.Empty() {
		return nil, nil
	}
	return e.pass(ctx, FinePass, el, clone, fineROI, p.fineRes, p.opts)
}

func (e *Engine) pass(ctx context.Context, kind PassKind, el *svgdom.Element, clone *svgdom.Document,
	roi BBox, res float64, opts Options,
) (*BBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := rasterPass(ctx, e.r, clone, roi, res)
	if err != nil {
		return nil, err
	}
	bbox := extractBBox(img, roi, res)

	opts.Logger.Debug("visualbbox: pass",
		slog.String("kind", string(kind)),
		slog.String("roi", roi.String()),
		slog.Float64("res", res),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
		slog.Any("bbox", bbox),
	)
	if opts.PassHook != nil {
		opts.PassHook(PassInfo{Kind: kind, Target: el, ROI: roi, Resolution: res, Raster: img, Result: bbox})
	}
	return bbox, nil
}
