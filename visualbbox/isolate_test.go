package visualbbox

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isHidden(el *svgdom.Element) bool {
	v, _ := el.Style("display")
	return v == "none"
}

func TestIsolate(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 100 100">
		<defs><circle id="dot" r="2"/></defs>
		<rect id="sibling" width="10" height="10"/>
		<g id="parent">
			<rect id="before" width="10" height="10"/>
			<g id="target"><rect id="child" width="5" height="5"/><use id="ref" xlink:href="#sibling"/></g>
			<g id="after"><rect id="nested" width="10" height="10"/></g>
		</g>
	</svg>`)
	before := string(doc.Markup())

	clone, err := isolate(doc.ElementByID("target"))
	require.NoError(t, err)
	assert.Equal(t, before, string(doc.Markup()), "the live document is modified")

	for _, id := range []string{"parent", "target", "child", "ref", "dot"} {
		el := clone.ElementByID(id)
		require.NotNil(t, el, id)
		assert.False(t, isHidden(el), id)
	}
	for _, id := range []string{"sibling", "before", "after"} {
		assert.True(t, isHidden(clone.ElementByID(id)), id)
	}
	// only the top hidden element is modified
	_, hasStyle := clone.ElementByID("nested").Attr("style")
	assert.False(t, hasStyle)

	// the hidden referenced element is copied
	href, _ := clone.ElementByID("ref").Attr("href")
	require.True(t, strings.HasPrefix(href, "#"+tempIDPrefix))
	copied := clone.ElementByID(href[1:])
	require.NotNil(t, copied)
	assert.Equal(t, "rect", copied.Tag)
	assert.Equal(t, "defs", copied.Parent().Tag)
	assert.False(t, isHidden(copied))
}

func TestIsolateTemporaryID(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g><rect width="10" height="10"/></g>
		<rect id="dup" width="1" height="1"/>
		<rect id="dup" width="2" height="2"/>
	</svg>`)
	before := string(doc.Markup())
	root := doc.Root().ChildElements()

	// no id
	target := root[0].ChildElements()[0]
	clone, err := isolate(target)
	require.NoError(t, err)
	assert.Equal(t, before, string(doc.Markup()))
	_, hasID := target.Attr("id")
	assert.False(t, hasID)
	cloned := clone.Root().ChildElements()[0].ChildElements()[0]
	_, hasID = cloned.Attr("id")
	assert.False(t, hasID)
	assert.False(t, isHidden(cloned))

	// duplicated id: the second one is measured
	clone, err = isolate(root[2])
	require.NoError(t, err)
	assert.Equal(t, before, string(doc.Markup()))
	elements := clone.Root().ChildElements()
	assert.True(t, isHidden(elements[1]))
	assert.False(t, isHidden(elements[2]))
	assert.Equal(t, "dup", elements[2].ID())
}

func TestIsolateRecursiveUse(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg">
		<g id="a"><use href="#b"/></g>
		<g id="b"><use href="#a"/></g>
		<use id="target" href="#a"/>
	</svg>`)
	clone, err := isolate(doc.ElementByID("target"))
	require.NoError(t, err)
	// a and b are copied once each
	var defs *svgdom.Element
	for _, el := range clone.Root().ChildElements() {
		if el.Tag == "defs" {
			defs = el
		}
	}
	require.NotNil(t, defs)
	assert.Len(t, defs.ChildElements(), 2)
}

func TestExtractBBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	roi := BBox{X: 100, Y: 50, Width: 10, Height: 5}
	assert.Nil(t, extractBBox(img, roi, 2))

	img.SetRGBA(4, 2, color.RGBA{A: 1})
	img.SetRGBA(9, 7, color.RGBA{R: 10, A: 200})
	assertBBox(t, BBox{102, 51, 3, 3}, extractBBox(img, roi, 2))

	// not starting at the origin
	sub := img.SubImage(image.Rect(5, 5, 20, 10)).(*image.RGBA)
	assertBBox(t, BBox{102, 51, 0.5, 0.5}, extractBBox(sub, roi, 2))
}

func TestBBox(t *testing.T) {
	a, b := BBox{10, 10, 50, 50}, BBox{100, 100, 50, 50}
	assert.Equal(t, BBox{10, 10, 140, 140}, a.Union(b))
	assert.Equal(t, BBox{0, 0, 70, 70}, a.Expand(10))
	assert.Equal(t, BBox{40, 40, 0, 0}, a.Expand(-30))
	assert.True(t, a.Expand(-30).Empty())
	assert.False(t, a.Empty())
	assert.Nil(t, unionAll([]*BBox{nil, nil}))
	assert.Equal(t, &a, unionAll([]*BBox{nil, &a}))
}

func TestRootViewport(t *testing.T) {
	for _, test := range []struct {
		svg   string
		box   BBox
		scale float64
	}{
		{`<svg viewBox="0 0 100 50"/>`, BBox{0, 0, 100, 50}, 1},
		{`<svg viewBox="-10,-10 100 50" width="200" height="200"/>`, BBox{-10, -10, 100, 50}, 2},
		{`<svg viewBox="0 0 100 50" width="100%" height="200"/>`, BBox{0, 0, 100, 50}, 1},
		{`<svg viewBox="0 0 0 50" width="40" height="20"/>`, BBox{0, 0, 40, 20}, 1},
		{`<svg width="1in" height="20"/>`, BBox{0, 0, 96, 20}, 1},
		{`<svg/>`, BBox{0, 0, 300, 150}, 1},
	} {
		vp := newRootViewport(parse(t, test.svg).Root())
		assert.Equal(t, test.box, vp.box, test.svg)
		assert.Equal(t, test.scale, vp.scale, test.svg)
	}
}
