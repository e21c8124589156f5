package svgicon

import (
	"strings"
	"sync"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgpath"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Anchor is the value of the text-anchor property
type Anchor uint8

const (
	AnchorStart Anchor = iota
	AnchorMiddle
	AnchorEnd
)

// TextStyle groups the inherited font properties.
type TextStyle struct {
	Family       string
	Size         float64
	Bold, Italic bool
	Anchor       Anchor
}

type fontSet struct {
	regular, bold, italic, boldItalic, mono *sfnt.Font
}

var (
	fontsOnce sync.Once
	fonts     fontSet
	fontsErr  error
)

// LoadFonts parses the embedded Go fonts used to lay out text.
// Only the first call does the work; it is safe for concurrent use.
func LoadFonts() error {
	fontsOnce.Do(func() {
		for _, src := range []struct {
			dst  **sfnt.Font
			data []byte
		}{
			{&fonts.regular, goregular.TTF},
			{&fonts.bold, gobold.TTF},
			{&fonts.italic, goitalic.TTF},
			{&fonts.boldItalic, gobolditalic.TTF},
			{&fonts.mono, gomono.TTF},
		} {
			*src.dst, fontsErr = opentype.Parse(src.data)
			if fontsErr != nil {
				return
			}
		}
	})
	return fontsErr
}

func (ts TextStyle) face() *sfnt.Font {
	if strings.Contains(strings.ToLower(ts.Family), "mono") || strings.Contains(ts.Family, "Courier") {
		return fonts.mono
	}
	switch {
	case ts.Bold && ts.Italic:
		return fonts.boldItalic
	case ts.Bold:
		return fonts.bold
	case ts.Italic:
		return fonts.italic
	default:
		return fonts.regular
	}
}

// outline appends to path the glyph outlines of text, with the baseline
// starting at (x, y). It returns the advance of the text.
func (ts TextStyle) outline(text string, x, y float64, path *svgpath.Path) float64 {
	f := ts.face()
	if f == nil || ts.Size <= 0 {
		return 0
	}
	var buf sfnt.Buffer
	upem := int(f.UnitsPerEm())
	ppem := fixed.I(upem) // segments in font units
	scale := ts.Size / float64(upem)
	toUser := func(p fixed.Point26_6, penX float64) svgpath.Point {
		return svgpath.Point{X: penX + float64(p.X)/64*scale, Y: y + float64(p.Y)/64*scale}
	}

	penX := x
	var prev sfnt.GlyphIndex
	for i, r := range text {
		gi, err := f.GlyphIndex(&buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if kern, err := f.Kern(&buf, prev, gi, ppem, font.HintingNone); err == nil {
				penX += float64(kern) / 64 * scale
			}
		}
		segments, err := f.LoadGlyph(&buf, gi, ppem, nil)
		if err == nil {
			open := false
			for _, seg := range segments {
				switch seg.Op {
				case sfnt.SegmentOpMoveTo:
					if open {
						path.Stop(true)
					}
					path.Start(toUser(seg.Args[0], penX))
					open = true
				case sfnt.SegmentOpLineTo:
					path.Line(toUser(seg.Args[0], penX))
				case sfnt.SegmentOpQuadTo:
					path.QuadBezier(toUser(seg.Args[0], penX), toUser(seg.Args[1], penX))
				case sfnt.SegmentOpCubeTo:
					path.CubeBezier(toUser(seg.Args[0], penX), toUser(seg.Args[1], penX), toUser(seg.Args[2], penX))
				}
			}
			if open {
				path.Stop(true)
			}
		}
		if adv, err := f.GlyphAdvance(&buf, gi, ppem, font.HintingNone); err == nil {
			penX += float64(adv) / 64 * scale
		}
		prev = gi
	}
	return penX - x
}

// textRun is a piece of text with an uniform style
type textRun struct {
	text  string
	style PathStyle
	// absolute repositionning, applied before the run
	x, y       *float64
	dx, dy     float64
	startChunk bool
}

// textCollector walks the content of a <text> element
type textCollector struct {
	c         *iconCursor
	runs      []textRun
	lastSpace bool // for whitespace collapsing across runs
}

// collapse applies the default xml:space handling
func (tc *textCollector) collapse(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n', '\r':
			continue
		case '\t':
			r = ' '
		}
		if r == ' ' {
			if tc.lastSpace {
				continue
			}
			tc.lastSpace = true
		} else {
			tc.lastSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// firstLength returns the first value of a list of lengths
func (tc *textCollector) firstLength(el *svgdom.Element, name string, ref percentageReference) (float64, bool) {
	v, ok := el.Attr(name)
	if !ok {
		return 0, false
	}
	fields := splitOnCommaOrSpace(v)
	if len(fields) == 0 {
		return 0, false
	}
	f, err := tc.c.parseUnit(fields[0], ref)
	if err != nil {
		return 0, false
	}
	return f, true
}

// positioning reads the x, y, dx, dy attributes into the next run
func (tc *textCollector) positioning(el *svgdom.Element) textRun {
	var run textRun
	if x, ok := tc.firstLength(el, "x", widthPercentage); ok {
		run.x = &x
		run.startChunk = true
	}
	if y, ok := tc.firstLength(el, "y", heightPercentage); ok {
		run.y = &y
		run.startChunk = true
	}
	run.dx, _ = tc.firstLength(el, "dx", widthPercentage)
	run.dy, _ = tc.firstLength(el, "dy", heightPercentage)
	return run
}

func (tc *textCollector) collect(el *svgdom.Element, pending textRun) (textRun, error) {
	style := tc.c.currentStyle()
	for _, child := range el.Children {
		switch child := child.(type) {
		case *svgdom.CharData:
			text := tc.collapse(child.Data)
			if text == "" {
				continue
			}
			run := pending
			run.text, run.style = text, style
			tc.runs = append(tc.runs, run)
			pending = textRun{}
		case *svgdom.Element:
			if child.Tag != "tspan" && child.Tag != "a" && child.Tag != "textPath" {
				continue
			}
			local, err := tc.c.pushStyle(child)
			if err != nil {
				return pending, err
			}
			if local.display != "none" {
				next := tc.positioning(child)
				if !next.startChunk {
					next.x, next.y, next.startChunk = pending.x, pending.y, pending.startChunk
				}
				next.dx += pending.dx
				next.dy += pending.dy
				pending, err = tc.collect(child, next)
			}
			tc.c.popStyle()
			if err != nil {
				return pending, err
			}
		}
	}
	return pending, nil
}

// textF lays out the text as glyph outlines, one path per run.
func textF(c *iconCursor, el *svgdom.Element) error {
	if err := LoadFonts(); err != nil {
		return err
	}
	tc := textCollector{c: c, lastSpace: true} // leading spaces are removed
	first := tc.positioning(el)
	first.startChunk = true
	if _, err := tc.collect(el, first); err != nil {
		return err
	}
	// remove the trailing space
	if n := len(tc.runs); n > 0 {
		tc.runs[n-1].text = strings.TrimSuffix(tc.runs[n-1].text, " ")
	}

	anchor := c.currentStyle().Font.Anchor
	var (
		penX, penY float64
		chunk      []*SvgPath
		chunkWidth float64
	)
	flushChunk := func() {
		shift := 0.
		switch anchor {
		case AnchorMiddle:
			shift = -chunkWidth / 2
		case AnchorEnd:
			shift = -chunkWidth
		}
		for _, item := range chunk {
			if shift != 0 {
				item.Style.transform = item.Style.transform.Translate(shift, 0)
			}
			if len(item.Path) != 0 {
				*c.items = append(*c.items, item)
			}
		}
		chunk, chunkWidth = nil, 0
	}
	for _, run := range tc.runs {
		if run.startChunk {
			flushChunk()
		}
		if run.x != nil {
			penX = *run.x
		}
		if run.y != nil {
			penY = *run.y
		}
		penX += run.dx
		penY += run.dy
		item := &SvgPath{Style: run.style}
		advance := run.style.Font.outline(run.text, penX, penY, &item.Path)
		penX += advance
		chunkWidth += advance + run.dx
		chunk = append(chunk, item)
	}
	flushChunk()
	return nil
}
