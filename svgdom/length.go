package svgdom

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFontSize is the size, in pixels, used to resolve
// font relative units.
const DefaultFontSize = 16

var unitScales = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96. / 72,
	"pc": 16,
	"mm": 96 / 25.4,
	"cm": 96 / 2.54,
	"in": 96,
	"q":  96 / 101.6,
	"em": DefaultFontSize,
	"ex": DefaultFontSize / 2,
}

// ParseLength resolves an SVG length to user units.
// Percentages are taken relative to percentBase.
func ParseLength(s string, percentBase float64) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid length %q", s)
		}
		return f * percentBase / 100, nil
	}
	i := len(s)
	for i > 0 && (s[i-1] >= 'a' && s[i-1] <= 'z' || s[i-1] >= 'A' && s[i-1] <= 'Z') {
		i--
	}
	scale, ok := unitScales[strings.ToLower(s[i:])]
	if !ok {
		return 0, fmt.Errorf("unsupported unit in length %q", s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	return f * scale, nil
}
