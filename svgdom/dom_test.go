package svgdom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"
	xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" viewBox="0 0 100 100">
	<style>
		rect { fill: green }
		.warn { fill: orange }
		#special { stroke: blue !important }
		g > circle { fill: purple }
	</style>
	<defs><circle id="dot" r="2"/></defs>
	<g id="layer" inkscape:label="Layer 1">
		<rect id="a" x="10" y="10" width="20" height="20" fill="red"/>
		<rect id="b" class="big warn" x="40" y="40" width="20" height="20" style="fill: black"/>
		<rect id="special" style="stroke: red"/>
		<circle id="c" r="3"/>
		<use id="u" xlink:href="#dot" x="5"/>
		<text id="t">Hello &amp; <tspan>world</tspan></text>
	</g>
</svg>`

func parseSample(t *testing.T) *Document {
	doc, err := ParseString(sample)
	require.NoError(t, err)
	return doc
}

func TestParse(t *testing.T) {
	doc := parseSample(t)
	assert.True(t, doc.IsSVG())
	assert.Equal(t, "svg", doc.Root().Tag)
	assert.Equal(t, SVGNamespace, doc.Root().Space)

	layer := doc.ElementByID("layer")
	require.NotNil(t, layer)
	assert.Len(t, layer.ChildElements(), 6)
	assert.Equal(t, "Hello & world", doc.ElementByID("t").Text())

	href, ok := doc.ElementByID("u").Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "#dot", href)

	assert.Nil(t, doc.ElementByID("missing"))
	assert.Nil(t, doc.ElementByID(""))

	_, err := ParseString("")
	assert.Error(t, err)
	_, err = ParseString("<svg><g></svg>")
	assert.Error(t, err)
}

func TestTreeNavigation(t *testing.T) {
	doc := parseSample(t)
	a := doc.ElementByID("a")
	layer := doc.ElementByID("layer")

	ancestors := a.Ancestors()
	require.Len(t, ancestors, 2)
	assert.Same(t, layer, ancestors[0])
	assert.Same(t, doc.Root(), ancestors[1])

	assert.True(t, layer.Contains(a))
	assert.True(t, a.Contains(a))
	assert.False(t, a.Contains(layer))

	var ids []string
	layer.Walk(func(el *Element) bool {
		ids = append(ids, el.ID())
		return el.Tag != "text"
	})
	assert.Equal(t, []string{"layer", "a", "b", "special", "c", "u", "t"}, ids)
}

func TestClone(t *testing.T) {
	doc := parseSample(t)
	clone := doc.Clone()

	ca := clone.ElementByID("a")
	require.NotNil(t, ca)
	assert.NotSame(t, doc.ElementByID("a"), ca)
	assert.Same(t, clone, ca.Document())

	ca.SetAttr("fill", "blue")
	ca.RemoveAttr("id")
	fill, _ := doc.ElementByID("a").Attr("fill")
	assert.Equal(t, "red", fill)
	assert.Nil(t, clone.ElementByID("a"))
	assert.NotNil(t, doc.ElementByID("a"))
}

func TestStyleCascade(t *testing.T) {
	doc := parseSample(t)

	for _, test := range []struct {
		id, property, expected string
	}{
		{"a", "fill", "green"},        // sheet beats presentation attribute
		{"b", "fill", "black"},        // inline beats sheet
		{"special", "stroke", "blue"}, // important sheet beats inline
		{"special", "fill", "green"},
		{"c", "fill", "purple"},
	} {
		got, ok := doc.ElementByID(test.id).Style(test.property)
		assert.True(t, ok, test.id)
		assert.Equal(t, test.expected, got, test.id)
	}

	_, ok := doc.ElementByID("layer").Style("fill")
	assert.False(t, ok)

	// the cache is invalidated by modifications
	b := doc.ElementByID("b")
	b.SetStyle("display", "none")
	display, _ := b.Style("display")
	assert.Equal(t, "none", display)
	fill, _ := b.Style("fill")
	assert.Equal(t, "black", fill)

	b.SetStyle("display", "inline")
	style, _ := b.Attr("style")
	assert.Equal(t, 1, strings.Count(style, "display"))
}

func TestSelectors(t *testing.T) {
	for _, test := range []struct {
		input       string
		specificity int
		ok          bool
	}{
		{"rect", 1, true},
		{"*", 0, true},
		{"#a", 100, true},
		{"rect.big.warn", 21, true},
		{"g > rect#b", 102, true},
		{"a:hover", 0, false},
		{"[fill]", 0, false},
	} {
		_, spec, ok := parseSelector(test.input)
		assert.Equal(t, test.ok, ok, test.input)
		if ok {
			assert.Equal(t, test.specificity, spec, test.input)
		}
	}
}

func TestSerialize(t *testing.T) {
	doc := parseSample(t)
	markup := string(doc.Markup())

	assert.True(t, strings.HasPrefix(markup, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"`))
	assert.Contains(t, markup, `xlink:href="#dot"`)
	assert.Contains(t, markup, `Hello &amp; <tspan>world</tspan>`)
	assert.NotContains(t, markup, "inkscape")

	// round trip
	again, err := ParseString(markup)
	require.NoError(t, err)
	assert.Equal(t, markup, string(again.Markup()))
}

func TestParseLength(t *testing.T) {
	for _, test := range []struct {
		input    string
		base     float64
		expected float64
	}{
		{"12", 0, 12},
		{" 12px ", 0, 12},
		{"1in", 0, 96},
		{"72pt", 0, 96},
		{"50%", 300, 150},
		{"1e2", 0, 100},
		{"2em", 0, 32},
	} {
		got, err := ParseLength(test.input, test.base)
		require.NoError(t, err, test.input)
		assert.InDelta(t, test.expected, got, 1e-9, test.input)
	}

	_, err := ParseLength("12furlongs", 0)
	assert.Error(t, err)
	_, err = ParseLength("px", 0)
	assert.Error(t, err)
}
