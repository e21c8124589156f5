// Implements a raster backend to render SVG images,
// by wrapping rasterx.
package svgraster

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/benoitkugler/svgbbox/svgicon"
	"github.com/benoitkugler/svgbbox/svgpath"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var _ svgicon.Driver = (*Renderer)(nil) // assert interface conformance

// surface is one layer of the rendering
type surface struct {
	img    *image.RGBA
	filler filler
	dasher dasher
}

func newSurface(img *image.RGBA) surface {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	return surface{
		img:    img,
		filler: filler{rasterx.NewFiller(width, height, scanner)},
		dasher: dasher{rasterx.NewDasher(width, height, scanner)},
	}
}

// Renderer draws on an RGBA image. Layers are rendered
// on temporary surfaces of the same size.
type Renderer struct {
	width, height int
	layers        []surface

	// images maps the href of the image items to their data;
	// missing images are not drawn.
	images map[string]image.Image
}

// NewRenderer returns a renderer drawing on dst, whose
// bounds must start at the origin.
// images provides the data of the image items, and may be nil.
func NewRenderer(dst *image.RGBA, images map[string]image.Image) *Renderer {
	return &Renderer{
		width:  dst.Bounds().Dx(),
		height: dst.Bounds().Dy(),
		layers: []surface{newSurface(dst)},
		images: images,
	}
}

// RasterSVGIconToImage uses a ScannerGV instance to renderer the
// icon into an image of its natural size and returns it.
// Images are not rendered.
func RasterSVGIconToImage(icon io.Reader) (*image.RGBA, error) {
	parsedIcon, err := svgicon.ReadIconStream(icon, svgicon.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	w, h := int(math.Ceil(parsedIcon.Width)), int(math.Ceil(parsedIcon.Height))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	parsedIcon.SetTarget(0, 0, float64(w), float64(h))
	parsedIcon.Draw(NewRenderer(img, nil), 1.0)
	return img, nil
}

func (rd *Renderer) current() surface { return rd.layers[len(rd.layers)-1] }

func (rd *Renderer) SetupDrawers(willFill, willStroke bool) (f svgicon.Filler, s svgicon.Stroker) {
	cur := rd.current()
	if willFill {
		f = cur.filler
	}
	if willStroke {
		s = cur.dasher
	}
	return f, s
}

func (rd *Renderer) PushLayer() {
	rd.layers = append(rd.layers, newSurface(image.NewRGBA(image.Rect(0, 0, rd.width, rd.height))))
}

func (rd *Renderer) PopLayer(effect svgicon.LayerEffect) {
	layer := rd.layers[len(rd.layers)-1].img
	rd.layers = rd.layers[:len(rd.layers)-1]

	if effect.Filter != nil {
		layer = applyFilter(layer, effect.Filter, effect.FilterTransform)
	}
	if effect.Clip != nil {
		layer = applyClip(layer, effect.Clip)
	}
	dst := rd.current().img
	draw.Draw(dst, dst.Bounds(), layer, image.Point{}, draw.Over)
}

func (rd *Renderer) DrawImage(item *svgicon.ImageItem, m svgpath.Matrix2D, opacity float64) {
	src, ok := rd.images[item.Href]
	if !ok {
		return
	}
	b := src.Bounds()
	vp, placement := item.Placement(float64(b.Dx()), float64(b.Dy()))
	if vp.W <= 0 || vp.H <= 0 {
		return
	}
	s2d := m.Mult(placement).Translate(-float64(b.Min.X), -float64(b.Min.Y))
	if s2d.Det() == 0 {
		return
	}
	if opacity < 1 {
		src = withOpacity(src, opacity)
	}

	dst := rd.current().img
	if item.AspectRatio.Slice {
		// the image overflows its viewport, which clips it
		var path svgpath.Path
		path.AddRect(vp.X, vp.Y, vp.X+vp.W, vp.Y+vp.H)
		tmp := image.NewRGBA(dst.Bounds())
		drawTransformedImage(tmp, src, s2d)
		clipped := applyClip(tmp, []svgicon.ClipShape{{Path: path, Transform: m, UseNonZeroWinding: true}})
		draw.Draw(dst, dst.Bounds(), clipped, image.Point{}, draw.Over)
		return
	}
	drawTransformedImage(dst, src, s2d)
}

func drawTransformedImage(dst *image.RGBA, src image.Image, s2d svgpath.Matrix2D) {
	aff := f64.Aff3{s2d.A, s2d.C, s2d.E, s2d.B, s2d.D, s2d.F}
	draw.ApproxBiLinear.Transform(dst, aff, src, src.Bounds(), draw.Over, nil)
}

// filler paints on a surface with the nonzero or evenodd rule
type filler struct{ *rasterx.Filler }

// dasher strokes and dashes paths on a surface
type dasher struct{ *rasterx.Dasher }

func (f filler) SetColor(pattern svgicon.Pattern, opacity float64) {
	setColorFromPattern(pattern, opacity, f.Scanner)
}

func (d dasher) SetColor(pattern svgicon.Pattern, opacity float64) {
	setColorFromPattern(pattern, opacity, d.Scanner)
}

var (
	joinToJoin = [...]rasterx.JoinMode{
		svgicon.Round:     rasterx.Round,
		svgicon.Bevel:     rasterx.Bevel,
		svgicon.Miter:     rasterx.Miter,
		svgicon.MiterClip: rasterx.MiterClip,
		svgicon.Arc:       rasterx.Arc,
		svgicon.ArcClip:   rasterx.ArcClip,
	}

	capToFunc = [...]rasterx.CapFunc{
		svgicon.ButtCap:      rasterx.ButtCap,
		svgicon.SquareCap:    rasterx.SquareCap,
		svgicon.RoundCap:     rasterx.RoundCap,
		svgicon.CubicCap:     rasterx.CubicCap,
		svgicon.QuadraticCap: rasterx.QuadraticCap,
	}

	gapToFunc = [...]rasterx.GapFunc{
		svgicon.FlatGap:      rasterx.FlatGap,
		svgicon.RoundGap:     rasterx.RoundGap,
		svgicon.CubicGap:     rasterx.CubicGap,
		svgicon.QuadraticGap: rasterx.QuadraticGap,
	}
)

func (d dasher) SetStrokeOptions(options svgicon.StrokeOptions) {
	d.SetStroke(
		options.LineWidth, options.Join.MiterLimit, capToFunc[options.Join.LeadLineCap],
		capToFunc[options.Join.TrailLineCap], gapToFunc[options.Join.LineGap],
		joinToJoin[options.Join.LineJoin], options.Dash.Dash, options.Dash.DashOffset,
	)
}

// colorWithOpacity multiplies the alpha of c by opacity
func colorWithOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	opacity = math.Max(0, math.Min(1, opacity))
	c.A = uint8(math.Round(float64(c.A) * opacity))
	return c
}

func toRasterxGradient(grad svgicon.Gradient) rasterx.Gradient {
	out := rasterx.Gradient{
		Stops:  make([]rasterx.GradStop, len(grad.Stops)),
		Matrix: rasterx.Identity,
	}
	for i, stop := range grad.Stops {
		out.Stops[i] = rasterx.GradStop(stop)
	}
	switch grad.Spread {
	case svgicon.ReflectSpread:
		out.Spread = rasterx.ReflectSpread
	case svgicon.RepeatSpread:
		out.Spread = rasterx.RepeatSpread
	default:
		out.Spread = rasterx.PadSpread
	}

	if grad.Units == svgicon.UserSpaceOnUse {
		// grad.Matrix maps to the device: points are resolved here
		out.Units = rasterx.UserSpaceOnUse
		out.Bounds.W, out.Bounds.H = 1, 1
		m := grad.Matrix
		switch dir := grad.Direction.(type) {
		case svgicon.Linear:
			p1 := m.Transform(svgpath.Point{X: dir[0], Y: dir[1]})
			p2 := m.Transform(svgpath.Point{X: dir[2], Y: dir[3]})
			out.Points = [5]float64{p1.X, p1.Y, p2.X, p2.Y}
		case svgicon.Radial:
			c := m.Transform(svgpath.Point{X: dir[0], Y: dir[1]})
			f := m.Transform(svgpath.Point{X: dir[2], Y: dir[3]})
			out.Points = [5]float64{c.X, c.Y, f.X, f.Y, dir[4] * m.ScaleFactor()} // fr is ignored
			out.IsRadial = true
		}
		return out
	}

	out.Units = rasterx.ObjectBoundingBox
	out.Matrix = rasterx.Matrix2D(grad.Matrix)
	switch dir := grad.Direction.(type) {
	case svgicon.Linear:
		out.Points = [5]float64{dir[0], dir[1], dir[2], dir[3]}
	case svgicon.Radial:
		out.Points = [5]float64{dir[0], dir[1], dir[2], dir[3], dir[4]} // fr is ignored
		out.IsRadial = true
	}
	return out
}

// resolve gradient color
func setColorFromPattern(pattern svgicon.Pattern, opacity float64, scanner rasterx.Scanner) {
	switch fillerColor := pattern.(type) {
	case svgicon.PlainColor:
		scanner.SetColor(colorWithOpacity(fillerColor.NRGBA, opacity))
	case svgicon.Gradient:
		grad := toRasterxGradient(fillerColor)
		if fillerColor.Units == svgicon.ObjectBoundingBox {
			fRect := scanner.GetPathExtent()
			mnx, mny := float64(fRect.Min.X)/64, float64(fRect.Min.Y)/64
			mxx, mxy := float64(fRect.Max.X)/64, float64(fRect.Max.Y)/64
			if mxx <= mnx || mxy <= mny {
				// objectBoundingBox units are not defined for flat shapes
				scanner.SetColor(color.NRGBA{})
				return
			}
			grad.Bounds.X, grad.Bounds.Y = mnx, mny
			grad.Bounds.W, grad.Bounds.H = mxx-mnx, mxy-mny
		}
		if degenerate(grad) {
			// painted with the last stop
			last := grad.Stops[len(grad.Stops)-1]
			scanner.SetColor(rasterx.ApplyOpacity(last.StopColor, last.Opacity*opacity))
			return
		}
		scanner.SetColor(grad.GetColorFunction(opacity))
	}
}

// degenerate returns true for zero length linear gradients
// and zero radius radial ones, with at least one stop.
func degenerate(grad rasterx.Gradient) bool {
	if len(grad.Stops) == 0 {
		return false
	}
	if grad.IsRadial {
		return grad.Points[4] <= 0
	}
	return grad.Points[0] == grad.Points[2] && grad.Points[1] == grad.Points[3]
}
