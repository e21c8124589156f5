package visualbbox

import (
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svgbbox/svgdom"
)

// size of the viewport when the root has no usable width and height
const (
	defaultViewportWidth  = 300
	defaultViewportHeight = 150
)

// parseViewBox returns the root viewBox, or false if it is
// missing or invalid.
func parseViewBox(s string) (BBox, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	if len(fields) != 4 {
		return BBox{}, false
	}
	var v [4]float64
	for i, f := range fields {
		var err error
		v[i], err = strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return BBox{}, false
		}
	}
	if v[2] <= 0 || v[3] <= 0 {
		return BBox{}, false
	}
	return BBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}

// absoluteLength resolves the width or height attribute of the root,
// returning false for missing, relative or non positive values.
func absoluteLength(root *svgdom.Element, name string) (float64, bool) {
	s, ok := root.Attr(name)
	if !ok || strings.HasSuffix(strings.TrimSpace(s), "%") {
		return 0, false
	}
	l, err := svgdom.ParseLength(s, 0)
	if err != nil || l <= 0 {
		return 0, false
	}
	return l, true
}

// rootViewport describes the coordinate system of a root <svg>.
type rootViewport struct {
	// viewBox, or the viewport rectangle when there is no viewBox
	box BBox
	// pixels per user unit of the on screen layout
	scale float64
}

func newRootViewport(root *svgdom.Element) rootViewport {
	w, hasW := absoluteLength(root, "width")
	h, hasH := absoluteLength(root, "height")
	vbAttr, _ := root.Attr("viewBox")
	vb, hasVB := parseViewBox(vbAttr)
	if !hasVB {
		if !hasW {
			w = defaultViewportWidth
		}
		if !hasH {
			h = defaultViewportHeight
		}
		return rootViewport{box: BBox{Width: w, Height: h}, scale: 1}
	}
	out := rootViewport{box: vb, scale: 1}
	if hasW && hasH {
		out.scale = math.Min(w/vb.Width, h/vb.Height)
	}
	return out
}
