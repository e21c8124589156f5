package svgpath

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	errParamMismatch  = errors.New("param mismatch")
	errCommandUnknown = errors.New("unknown command")
)

// pathCursor is used to compile a path data attribute.
type pathCursor struct {
	path                   Path
	placeX, placeY         float64 // current point
	cntlPtX, cntlPtY       float64 // last control point, for smooth curves
	pathStartX, pathStartY float64
	points                 []float64
	lastKey                byte
	inPath                 bool
}

// ParsePath compiles the content of a 'd' attribute, and
// returns the path in user space.
// When an error occurs, the path compiled so far is returned along with it:
// per the SVG error handling rules, it should still be rendered.
func ParsePath(d string) (Path, error) {
	var c pathCursor
	err := c.compilePath(d)
	return c.path, err
}

// ParseNumbers reads a list of numbers separated by
// comma or white spaces, as found in viewBox, points or transform arguments.
func ParseNumbers(s string) ([]float64, error) {
	var out []float64
	i := skipSeparators(s, 0)
	for i < len(s) {
		f, next, err := scanNumber(s, i)
		if err != nil {
			return out, err
		}
		out = append(out, f)
		i = skipSeparators(s, next)
	}
	return out, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func skipSeparators(s string, i int) int {
	for i < len(s) && (isSpace(s[i]) || s[i] == ',') {
		i++
	}
	return i
}

// scanNumber reads the number starting at s[i], following the
// SVG grammar: "1.5.5" is read as 1.5 then .5, "1-2" as 1 then -2.
func scanNumber(s string, i int) (float64, int, error) {
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, i, fmt.Errorf("invalid number at offset %d in %q", start, s)
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > expStart { // otherwise 'e' is not part of the number
			i = j
		}
	}
	f, err := strconv.ParseFloat(s[start:i], 64)
	return f, i, err
}

func isCommand(b byte) bool {
	switch b {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's',
		'Q', 'q', 'T', 't', 'A', 'a', 'Z', 'z':
		return true
	}
	return false
}

func (c *pathCursor) compilePath(d string) error {
	i := skipSeparators(d, 0)
	for i < len(d) {
		key := d[i]
		if !isCommand(key) {
			return fmt.Errorf("%w: %q", errCommandUnknown, key)
		}
		i++
		c.points = c.points[:0]
		isArc := key == 'A' || key == 'a'
		for {
			i = skipSeparators(d, i)
			if i >= len(d) || isCommand(d[i]) {
				break
			}
			// arc flags are single digits, possibly not separated
			if isArc && (len(c.points)%7 == 3 || len(c.points)%7 == 4) {
				switch d[i] {
				case '0':
					c.points = append(c.points, 0)
				case '1':
					c.points = append(c.points, 1)
				default:
					return fmt.Errorf("%w: invalid arc flag %q", errParamMismatch, d[i])
				}
				i++
				continue
			}
			f, next, err := scanNumber(d, i)
			if err != nil {
				return err
			}
			c.points = append(c.points, f)
			i = next
		}
		if err := c.addSeg(key); err != nil {
			return err
		}
	}
	return nil
}

// reflect returns the reflection of the last control point,
// used by smooth curve commands
func (c *pathCursor) reflect() (float64, float64) {
	switch c.lastKey {
	case 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't':
		return 2*c.placeX - c.cntlPtX, 2*c.placeY - c.cntlPtY
	}
	return c.placeX, c.placeY
}

func (c *pathCursor) start() {
	c.path.Start(Point{c.placeX, c.placeY})
	c.pathStartX, c.pathStartY = c.placeX, c.placeY
	c.inPath = true
}

// addSeg decodes the command `key`, whose arguments
// are in c.points
func (c *pathCursor) addSeg(key byte) error {
	l := len(c.points)
	rel := key >= 'a' && key <= 'z'
	upper := key
	if rel {
		upper = key - 'a' + 'A'
	}
	if upper != 'M' && upper != 'Z' && !c.inPath {
		c.start() // segment without a move to: start at the current point
	}
	switch upper {
	case 'Z':
		if l != 0 {
			return errParamMismatch
		}
		if c.inPath {
			c.path.Stop(true)
			c.placeX, c.placeY = c.pathStartX, c.pathStartY
			c.inPath = false
		}
	case 'M':
		if l < 2 || l%2 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 2 {
			x, y := c.points[i], c.points[i+1]
			if rel {
				x += c.placeX
				y += c.placeY
			}
			c.placeX, c.placeY = x, y
			if i == 0 {
				c.start()
			} else { // subsequent pairs are implicit line to
				c.path.Line(Point{x, y})
			}
		}
	case 'L':
		if l < 2 || l%2 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 2 {
			x, y := c.points[i], c.points[i+1]
			if rel {
				x += c.placeX
				y += c.placeY
			}
			c.placeX, c.placeY = x, y
			c.path.Line(Point{x, y})
		}
	case 'H':
		if l == 0 {
			return errParamMismatch
		}
		for _, x := range c.points {
			if rel {
				x += c.placeX
			}
			c.placeX = x
			c.path.Line(Point{c.placeX, c.placeY})
		}
	case 'V':
		if l == 0 {
			return errParamMismatch
		}
		for _, y := range c.points {
			if rel {
				y += c.placeY
			}
			c.placeY = y
			c.path.Line(Point{c.placeX, c.placeY})
		}
	case 'C':
		if l < 6 || l%6 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 6 {
			pts := c.points[i : i+6]
			if rel {
				for j := 0; j < 6; j += 2 {
					pts[j] += c.placeX
					pts[j+1] += c.placeY
				}
			}
			c.path.CubeBezier(Point{pts[0], pts[1]}, Point{pts[2], pts[3]}, Point{pts[4], pts[5]})
			c.cntlPtX, c.cntlPtY = pts[2], pts[3]
			c.placeX, c.placeY = pts[4], pts[5]
			c.lastKey = key
		}
	case 'S':
		if l < 4 || l%4 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 4 {
			pts := c.points[i : i+4]
			if rel {
				for j := 0; j < 4; j += 2 {
					pts[j] += c.placeX
					pts[j+1] += c.placeY
				}
			}
			rx, ry := c.reflect()
			c.path.CubeBezier(Point{rx, ry}, Point{pts[0], pts[1]}, Point{pts[2], pts[3]})
			c.cntlPtX, c.cntlPtY = pts[0], pts[1]
			c.placeX, c.placeY = pts[2], pts[3]
			c.lastKey = key
		}
	case 'Q':
		if l < 4 || l%4 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 4 {
			pts := c.points[i : i+4]
			if rel {
				for j := 0; j < 4; j += 2 {
					pts[j] += c.placeX
					pts[j+1] += c.placeY
				}
			}
			c.path.QuadBezier(Point{pts[0], pts[1]}, Point{pts[2], pts[3]})
			c.cntlPtX, c.cntlPtY = pts[0], pts[1]
			c.placeX, c.placeY = pts[2], pts[3]
			c.lastKey = key
		}
	case 'T':
		if l < 2 || l%2 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 2 {
			x, y := c.points[i], c.points[i+1]
			if rel {
				x += c.placeX
				y += c.placeY
			}
			rx, ry := c.reflect()
			c.path.QuadBezier(Point{rx, ry}, Point{x, y})
			c.cntlPtX, c.cntlPtY = rx, ry
			c.placeX, c.placeY = x, y
			c.lastKey = key
		}
	case 'A':
		if l < 7 || l%7 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 7 {
			pts := c.points[i : i+7]
			if rel {
				pts[5] += c.placeX
				pts[6] += c.placeY
			}
			pts[0], pts[1] = math.Abs(pts[0]), math.Abs(pts[1])
			if pts[0] == 0 || pts[1] == 0 { // degenerate arc: straight line
				c.path.Line(Point{pts[5], pts[6]})
				c.placeX, c.placeY = pts[5], pts[6]
				continue
			}
			if pts[5] == c.placeX && pts[6] == c.placeY { // arc is omitted
				continue
			}
			cx, cy := findEllipseCenter(&pts[0], &pts[1], pts[2]*math.Pi/180, c.placeX, c.placeY,
				pts[5], pts[6], pts[4] == 0, pts[3] == 0)
			c.placeX, c.placeY = c.path.addArc(pts, cx, cy, c.placeX, c.placeY)
		}
	}
	if upper != 'C' && upper != 'S' && upper != 'Q' && upper != 'T' {
		c.lastKey = key
	}
	return nil
}
