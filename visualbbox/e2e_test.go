package visualbbox_test

import (
	"context"
	"testing"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgraster"
	"github.com/benoitkugler/svgbbox/visualbbox"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	opts   = visualbbox.Options{CoarseFactor: 1, FineFactor: 4}
	engine = visualbbox.New(svgraster.New(svgraster.Config{}))
)

func parse(t *testing.T, s string) *svgdom.Document {
	t.Helper()
	doc, err := svgdom.ParseString(s)
	require.NoError(t, err)
	return doc
}

// within one user unit
func assertNear(t *testing.T, want visualbbox.BBox, got *visualbbox.BBox) {
	t.Helper()
	require.NotNil(t, got)
	if diff := cmp.Diff(want, *got, cmpopts.EquateApprox(0, 1)); diff != "" {
		t.Errorf("unexpected bbox (-want +got):\n%s", diff)
	}
}

func TestRect(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
		<rect id="r" x="10" y="10" width="80" height="80" fill="red"/>
	</svg>`)
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "r"), opts)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 10, Y: 10, Width: 80, Height: 80}, bbox)
}

func TestStrokeAndTransform(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200">
		<rect id="stroked" x="20" y="20" width="40" height="40" fill="none" stroke="black" stroke-width="10"/>
		<g transform="translate(100 100) scale(2)">
			<circle id="circle" cx="10" cy="10" r="10" fill="blue"/>
		</g>
	</svg>`)
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "stroked"), opts)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 15, Y: 15, Width: 50, Height: 50}, bbox)

	bbox, err = engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "circle"), opts)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 100, Y: 100, Width: 40, Height: 40}, bbox)
}

func TestInvisible(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
		<rect id="transparent" x="10" y="10" width="80" height="80" fill-opacity="0"/>
		<rect id="none" x="10" y="10" width="80" height="80" display="none"/>
		<g style="display:none"><rect id="inHidden" x="10" y="10" width="80" height="80"/></g>
		<rect id="zeroOpacity" x="10" y="10" width="80" height="80" opacity="0"/>
		<defs><rect id="inDefs" x="10" y="10" width="80" height="80"/></defs>
	</svg>`)
	for _, id := range []string{"transparent", "none", "inHidden", "zeroOpacity", "inDefs"} {
		bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, id), opts)
		require.NoError(t, err)
		assert.Nil(t, bbox, id)
	}
}

func TestBlurWidens(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200">
		<filter id="blur" x="-2" y="-2" width="5" height="5">
			<feGaussianBlur stdDeviation="10"/>
		</filter>
		<rect id="r" x="90" y="90" width="20" height="20" filter="url(#blur)"/>
	</svg>`)
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "r"), opts)
	require.NoError(t, err)
	require.NotNil(t, bbox)
	assert.Greater(t, bbox.Width, 40.)
	assert.Less(t, bbox.X, 80.)
	// the result stays inside the filter region
	assert.GreaterOrEqual(t, bbox.X, 50.)
}

func TestClippedUnclipped(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
		<rect id="in" x="10" y="10" width="80" height="80"/>
		<rect id="out" x="200" y="200" width="50" height="50"/>
		<rect id="far" x="500" y="500" width="10" height="10"/>
	</svg>`)
	vf, err := engine.ComputeVisibleAndFull(context.Background(), visualbbox.ByID(doc, "out"), opts)
	require.NoError(t, err)
	assert.Nil(t, vf.Visible)
	assertNear(t, visualbbox.BBox{X: 200, Y: 200, Width: 50, Height: 50}, vf.Full)

	unclipped := opts
	unclipped.Mode = visualbbox.Unclipped
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByElement(doc.Root()), unclipped)
	require.NoError(t, err)
	require.NotNil(t, bbox)
	assert.LessOrEqual(t, bbox.X, 10.)
	assert.GreaterOrEqual(t, bbox.X+bbox.Width, 510.)
	assert.GreaterOrEqual(t, bbox.Y+bbox.Height, 510.)

	exp, err := engine.ComputeViewBoxExpansion(context.Background(), doc, opts)
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.InDelta(t, 410, exp.Right, 1)
	assert.InDelta(t, 410, exp.Bottom, 1)
	assert.Zero(t, exp.Left)
	assert.Zero(t, exp.Top)
}

func TestUnion(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200">
		<rect id="a" x="10" y="10" width="50" height="50"/>
		<rect id="b" x="100" y="100" width="50" height="50"/>
	</svg>`)
	res, err := engine.ComputeUnionBBox(context.Background(),
		[]visualbbox.Target{visualbbox.ByID(doc, "a"), visualbbox.ByID(doc, "b")}, opts)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 10, Y: 10, Width: 140, Height: 140}, res.Union)
}

func TestUseInstance(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 200 200">
		<rect id="model" x="0" y="0" width="30" height="30"/>
		<use id="instance" xlink:href="#model" x="100" y="50"/>
	</svg>`)
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "instance"), opts)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 100, Y: 50, Width: 30, Height: 30}, bbox)
}

func TestText(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 100">
		<text id="t" x="10" y="50" font-size="20">Hello</text>
	</svg>`)
	bbox, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "t"), opts)
	require.NoError(t, err)
	require.NotNil(t, bbox)
	assert.Greater(t, bbox.Width, 20.)
	assert.Less(t, bbox.Y+bbox.Height, 56.)
	assert.Greater(t, bbox.Y, 30.)
}

func TestPixelReadSecurity(t *testing.T) {
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
		<image id="remote" href="https://example.com/logo.png" x="0" y="0" width="50" height="50"/>
	</svg>`)
	_, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "remote"), opts)
	var secErr *visualbbox.PixelReadSecurityError
	require.ErrorAs(t, err, &secErr)
	assert.Contains(t, secErr.Source, "example.com")
}

func TestFinePrecision(t *testing.T) {
	// extent: x in [30.1, 70.5], y in [20.5, 60.9]
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
		<circle id="c" cx="50.3" cy="40.7" r="20.2"/>
	</svg>`)
	const slack = 1e-3 // curve approximation of the circle
	for _, fine := range []float64{4, 8, 16, 32} {
		o := visualbbox.Options{CoarseFactor: 1, FineFactor: fine, SafetyMarginUser: visualbbox.Ptr(5.0)}
		got, err := engine.ComputeBBox(context.Background(), visualbbox.ByID(doc, "c"), o)
		require.NoError(t, err)
		require.NotNil(t, got)

		pixel := 1 / fine
		assert.LessOrEqual(t, got.X, 30.1+pixel, "fine %v", fine)
		assert.GreaterOrEqual(t, got.X, 30.1-pixel-slack, "fine %v", fine)
		assert.GreaterOrEqual(t, got.X+got.Width, 70.5-pixel, "fine %v", fine)
		assert.LessOrEqual(t, got.X+got.Width, 70.5+pixel+slack, "fine %v", fine)
		assert.LessOrEqual(t, got.Y, 20.5+pixel, "fine %v", fine)
		assert.GreaterOrEqual(t, got.Y+got.Height, 60.9-pixel, "fine %v", fine)
	}
}

func TestLayoutScaleMargin(t *testing.T) {
	// 32 pixels per user unit
	doc := parse(t, `<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 16 16">
		<rect x="2" y="3" width="10" height="8"/>
	</svg>`)
	target := visualbbox.ByElement(doc.Root())

	// the default margin of 100 units is too large at this scale
	_, err := engine.ComputeBBox(context.Background(), target, opts)
	var loadErr *visualbbox.RenderLoadError
	require.ErrorAs(t, err, &loadErr)

	small := opts
	small.SafetyMarginUser = visualbbox.Ptr(1.0)
	got, err := engine.ComputeBBox(context.Background(), target, small)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 2, Y: 3, Width: 10, Height: 8}, got)

	unscaled := opts
	unscaled.UseLayoutScale = visualbbox.Ptr(false)
	got, err = engine.ComputeBBox(context.Background(), target, unscaled)
	require.NoError(t, err)
	assertNear(t, visualbbox.BBox{X: 2, Y: 3, Width: 10, Height: 8}, got)
}
