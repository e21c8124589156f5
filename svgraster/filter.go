package svgraster

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/benoitkugler/svgbbox/svgicon"
	"github.com/benoitkugler/svgbbox/svgpath"
	"golang.org/x/image/draw"
)

// filter effects, computed in device space on premultiplied surfaces

// maxCoord bounds the device coordinates of the filter regions
const maxCoord = 1 << 24

func clampCoord(v float64) int {
	return int(math.Max(-maxCoord, math.Min(maxCoord, v)))
}

// deviceRect returns the pixels covered by r
func deviceRect(r svgpath.Rect) image.Rectangle {
	if r.IsEmpty() {
		return image.Rectangle{}
	}
	return image.Rect(
		clampCoord(math.Floor(r.MinX)), clampCoord(math.Floor(r.MinY)),
		clampCoord(math.Ceil(r.MaxX)), clampCoord(math.Ceil(r.MaxY)),
	)
}

type filterContext struct {
	source  *image.RGBA
	results map[string]*image.RGBA
}

func (fc *filterContext) input(name string, last *image.RGBA) *image.RGBA {
	switch name {
	case "":
		return last
	case svgicon.SourceGraphic:
		return fc.source
	case svgicon.SourceAlpha:
		return colorize(fc.source, color.NRGBA{A: 0xff})
	}
	if res, ok := fc.results[name]; ok {
		return res
	}
	return last
}

// applyFilter runs the filter chain on source, whose user space
// is mapped to the device by m. The result is restricted to the filter region.
func applyFilter(source *image.RGBA, filter *svgicon.ResolvedFilter, m svgpath.Matrix2D) *image.RGBA {
	bounds := source.Bounds()
	region := deviceRect(m.TransformRect(filter.Region)).Intersect(bounds)
	if region.Empty() {
		return image.NewRGBA(bounds)
	}
	fc := filterContext{
		source:  restrict(source, region),
		results: make(map[string]*image.RGBA),
	}
	// lengths of the primitives, in device space
	scaleX, scaleY := math.Hypot(m.A, m.B), math.Hypot(m.C, m.D)
	offset := func(dx, dy float64) (int, int) {
		v := m.TransformVector(svgpath.Point{X: dx, Y: dy})
		return int(math.Round(v.X)), int(math.Round(v.Y))
	}

	last := fc.source
	for _, prim := range filter.Primitives {
		in := fc.input(prim.In, last)
		var out *image.RGBA
		switch prim.Kind {
		case svgicon.BlurPrimitive:
			out = gaussianBlur(in, prim.StdDevX*scaleX, prim.StdDevY*scaleY)
		case svgicon.OffsetPrimitive:
			dx, dy := offset(prim.Dx, prim.Dy)
			out = translate(in, dx, dy)
		case svgicon.FloodPrimitive:
			out = flood(bounds, region, prim.Color)
		case svgicon.DropShadowPrimitive:
			shadow := gaussianBlur(colorize(in, prim.Color), prim.StdDevX*scaleX, prim.StdDevY*scaleY)
			dx, dy := offset(prim.Dx, prim.Dy)
			out = merge(bounds, translate(shadow, dx, dy), in)
		case svgicon.MergePrimitive:
			inputs := make([]*image.RGBA, len(prim.Inputs))
			for i, name := range prim.Inputs {
				inputs[i] = fc.input(name, last)
			}
			out = merge(bounds, inputs...)
		case svgicon.CompositePrimitive:
			out = composite(in, fc.input(prim.In2, last), prim.Operator)
		default:
			out = in
		}
		out = restrict(out, region)
		if prim.Result != "" {
			fc.results[prim.Result] = out
		}
		last = out
	}
	return last
}

// restrict returns a copy of img, transparent outside region
func restrict(img *image.RGBA, region image.Rectangle) *image.RGBA {
	if region == img.Bounds() {
		return img
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, region, img, region.Min, draw.Src)
	return out
}

// colorize returns the alpha channel of img, painted with c
func colorize(img *image.RGBA, c color.NRGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	for i := 3; i < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i]) * uint32(c.A) / 0xff
		out.Pix[i-3] = uint8(uint32(c.R) * a / 0xff)
		out.Pix[i-2] = uint8(uint32(c.G) * a / 0xff)
		out.Pix[i-1] = uint8(uint32(c.B) * a / 0xff)
		out.Pix[i] = uint8(a)
	}
	return out
}

// translate moves the content of img by (dx, dy), in device space
func translate(img *image.RGBA, dx, dy int) *image.RGBA {
	// positive vertical offsets of bild go upward
	return transform.Translate(img, dx, -dy)
}

func flood(bounds, region image.Rectangle, c color.NRGBA) *image.RGBA {
	out := image.NewRGBA(bounds)
	draw.Draw(out, region, image.NewUniform(c), image.Point{}, draw.Src)
	return out
}

// merge paints the layers on top of each other, in order
func merge(bounds image.Rectangle, layers ...*image.RGBA) *image.RGBA {
	out := image.NewRGBA(bounds)
	for _, layer := range layers {
		draw.Draw(out, bounds, layer, bounds.Min, draw.Over)
	}
	return out
}

// composite combines a and b with the Porter-Duff operator op.
// The arithmetic operator is approximated by "over".
func composite(a, b *image.RGBA, op string) *image.RGBA {
	out := image.NewRGBA(a.Bounds())
	for i := 0; i+3 < len(a.Pix); i += 4 {
		alphaA, alphaB := uint32(a.Pix[i+3]), uint32(b.Pix[i+3])
		var fa, fb uint32 // factors applied to a and b, in [0, 255]
		switch op {
		case "in":
			fa, fb = alphaB, 0
		case "out":
			fa, fb = 0xff-alphaB, 0
		case "atop":
			fa, fb = alphaB, 0xff-alphaA
		case "xor":
			fa, fb = 0xff-alphaB, 0xff-alphaA
		default:
			fa, fb = 0xff, 0xff-alphaA
		}
		for c := 0; c < 4; c++ {
			v := (uint32(a.Pix[i+c])*fa + uint32(b.Pix[i+c])*fb) / 0xff
			out.Pix[i+c] = uint8(min(v, 0xff))
		}
	}
	return out
}

// gaussianBlur approximates a gaussian blur of standard deviations
// (stdDevX, stdDevY), in pixels, by three successive box blurs.
// A zero deviation disables the blur along its axis.
func gaussianBlur(img *image.RGBA, stdDevX, stdDevY float64) *image.RGBA {
	dX, dY := boxSize(stdDevX), boxSize(stdDevY)
	if dX == 0 && dY == 0 {
		return img
	}
	out := clone.AsRGBA(img)
	tripleBoxBlur(out, dX, false)
	tripleBoxBlur(out, dY, true)
	return out
}

// boxSize returns the size of the box blurs
// approximating a gaussian of deviation s.
func boxSize(s float64) int {
	if s <= 0 {
		return 0
	}
	return int(math.Floor(s*3*math.Sqrt(2*math.Pi)/4 + 0.5))
}

func tripleBoxBlur(img *image.RGBA, d int, vertical bool) {
	if d <= 1 {
		return
	}
	if d%2 == 1 {
		for i := 0; i < 3; i++ {
			boxBlur(img, d, d/2, vertical)
		}
		return
	}
	// centered on the pixel boundaries on each side, then on the pixel
	boxBlur(img, d, d/2, vertical)
	boxBlur(img, d, d/2-1, vertical)
	boxBlur(img, d+1, d/2, vertical)
}

// boxBlur averages, in place, the pixels of each line (or column)
// over the window [i-left, i-left+size).
func boxBlur(img *image.RGBA, size, left int, vertical bool) {
	b := img.Bounds()
	n, lines := b.Dx(), b.Dy()
	step, lineStep := 4, img.Stride
	if vertical {
		n, lines = b.Dy(), b.Dx()
		step, lineStep = img.Stride, 4
	}
	line := make([]uint8, 4*n)
	half := size / 2
	for l := 0; l < lines; l++ {
		base := l * lineStep
		for i := 0; i < n; i++ {
			copy(line[4*i:4*i+4], img.Pix[base+i*step:])
		}
		var sum [4]int
		for j := -left; j < size-left; j++ {
			if j >= 0 && j < n {
				for c := 0; c < 4; c++ {
					sum[c] += int(line[4*j+c])
				}
			}
		}
		for i := 0; i < n; i++ {
			o := base + i*step
			for c := 0; c < 4; c++ {
				img.Pix[o+c] = uint8((sum[c] + half) / size)
			}
			if j := i - left; j >= 0 && j < n {
				for c := 0; c < 4; c++ {
					sum[c] -= int(line[4*j+c])
				}
			}
			if j := i - left + size; j >= 0 && j < n {
				for c := 0; c < 4; c++ {
					sum[c] += int(line[4*j+c])
				}
			}
		}
	}
}
