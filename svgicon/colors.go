package svgicon

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svgbbox/svgpath"
	"golang.org/x/image/colornames"
)

// Pattern groups the possible paint servers:
// PlainColor or Gradient.
type Pattern interface {
	isPattern()
}

// PlainColor is a uniform, non premultiplied color.
type PlainColor struct {
	color.NRGBA
}

// NewPlainColor returns the color (r, g, b, a), not premultiplied.
func NewPlainColor(r, g, b, a uint8) PlainColor {
	return PlainColor{color.NRGBA{R: r, G: g, B: b, A: a}}
}

func (PlainColor) isPattern() {}
func (Gradient) isPattern()   {}

// GradientUnits is the type for gradient units
type GradientUnits byte

// SVG bounds paremater constants
const (
	ObjectBoundingBox GradientUnits = iota
	UserSpaceOnUse
)

// SpreadMethod is the type for spread parameters
type SpreadMethod byte

// SVG spread parameter constants
const (
	PadSpread SpreadMethod = iota
	ReflectSpread
	RepeatSpread
)

// GradStop represents a stop in the SVG 2.0 gradient specification
type GradStop struct {
	StopColor color.Color
	Offset    float64
	Opacity   float64
}

// Gradient holds a description of an SVG 2.0 gradient
type Gradient struct {
	Direction gradientDirecter
	Stops     []GradStop
	// Matrix is the gradientTransform
	Matrix svgpath.Matrix2D
	Spread SpreadMethod
	Units  GradientUnits
}

// radial or linear
type gradientDirecter interface {
	isRadial() bool
}

// x1, y1, x2, y2
type Linear [4]float64

func (Linear) isRadial() bool { return false }

// cx, cy, fx, fy, r, fr
type Radial [6]float64

func (Radial) isRadial() bool { return true }

var errColorFormat = errors.New("invalid color format")

// optionnalColor is not valid for "none"
type optionnalColor struct {
	valid bool
	color PlainColor
}

func someColor(c PlainColor) optionnalColor { return optionnalColor{valid: true, color: c} }

func parseColorValue(v string, percentScale float64) (float64, error) {
	v = strings.TrimSpace(v)
	scale := 1.
	if strings.HasSuffix(v, "%") {
		v = strings.TrimSuffix(v, "%")
		scale = percentScale / 100
	}
	f, err := strconv.ParseFloat(v, 64)
	return f * scale, err
}

func clampByte(f float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(f))))
}

// parseFunctionalColor parses the arguments of rgb(), rgba(), hsl() and hsla().
func parseFunctionalColor(name, args string) (PlainColor, error) {
	args = strings.ReplaceAll(args, "/", " ")
	values := splitOnCommaOrSpace(args)
	if len(values) != 3 && len(values) != 4 {
		return PlainColor{}, errColorFormat
	}
	alpha := 1.
	if len(values) == 4 {
		a, err := parseColorValue(values[3], 1)
		if err != nil {
			return PlainColor{}, err
		}
		alpha = math.Max(0, math.Min(1, a))
	}
	a := clampByte(alpha * 255)
	if strings.HasPrefix(name, "rgb") {
		var rgb [3]uint8
		for i := range rgb {
			f, err := parseColorValue(values[i], 255)
			if err != nil {
				return PlainColor{}, err
			}
			rgb[i] = clampByte(f)
		}
		return NewPlainColor(rgb[0], rgb[1], rgb[2], a), nil
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(values[0]), "deg"), 64)
	if err != nil {
		return PlainColor{}, err
	}
	s, err := parseColorValue(values[1], 1)
	if err != nil {
		return PlainColor{}, err
	}
	l, err := parseColorValue(values[2], 1)
	if err != nil {
		return PlainColor{}, err
	}
	r, g, b := hslToRGB(h, s, l)
	return NewPlainColor(clampByte(r*255), clampByte(g*255), clampByte(b*255), a), nil
}

func hslToRGB(h, s, l float64) (r, g, b float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}

func parseHexColor(v string) (PlainColor, error) {
	expand := len(v) == 3 || len(v) == 4
	if expand {
		var b strings.Builder
		for _, r := range v {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		v = b.String()
	}
	if len(v) == 6 {
		v += "ff"
	}
	if len(v) != 8 {
		return PlainColor{}, errColorFormat
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return PlainColor{}, errColorFormat
	}
	return NewPlainColor(uint8(n>>24), uint8(n>>16), uint8(n>>8), uint8(n)), nil
}

// parseSVGColor parses a color, resolving currentColor to current.
// The returned color is not valid for "none".
func parseSVGColor(colorStr string, current PlainColor) (optionnalColor, error) {
	v := strings.ToLower(strings.TrimSpace(colorStr))
	switch v {
	case "none", "":
		return optionnalColor{}, nil
	case "currentcolor":
		return someColor(current), nil
	case "transparent":
		return someColor(NewPlainColor(0, 0, 0, 0)), nil
	}
	if strings.HasPrefix(v, "#") {
		out, err := parseHexColor(v[1:])
		if err != nil {
			return optionnalColor{}, fmt.Errorf("%w: %s", err, colorStr)
		}
		return someColor(out), nil
	}
	if i := strings.IndexByte(v, '('); i != -1 && strings.HasSuffix(v, ")") {
		name := strings.TrimSpace(v[:i])
		switch name {
		case "rgb", "rgba", "hsl", "hsla":
			out, err := parseFunctionalColor(name, v[i+1:len(v)-1])
			if err != nil {
				return optionnalColor{}, fmt.Errorf("%w: %s", errColorFormat, colorStr)
			}
			return someColor(out), nil
		}
	}
	if named, ok := colornames.Map[v]; ok {
		return someColor(NewPlainColor(named.R, named.G, named.B, named.A)), nil
	}
	return optionnalColor{}, fmt.Errorf("%w: %s", errColorFormat, colorStr)
}

// asPattern returns nil for "none"
func (o optionnalColor) asPattern() Pattern {
	if !o.valid {
		return nil
	}
	return o.color
}

// asColor returns transparent for "none"
func (o optionnalColor) asColor() color.Color {
	if !o.valid {
		return color.Transparent
	}
	return o.color.NRGBA
}
