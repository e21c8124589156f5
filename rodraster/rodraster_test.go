package rodraster

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/visualbbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRasterizer starts Chrome from SVGBBOX_CHROME, which is either
// the path of a Chrome binary, "auto" to let the launcher find one,
// or the WebSocket URL of a running instance.
func newTestRasterizer(t *testing.T) *Rasterizer {
	t.Helper()
	target := os.Getenv("SVGBBOX_CHROME")
	if target == "" {
		t.Skip("SVGBBOX_CHROME is not set")
	}
	cfg := Config{NoSandbox: true}
	switch {
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		cfg.RemoteURL = target
	case target != "auto":
		cfg.Bin = target
	}
	r, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

const square = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">
	<rect x="10" y="20" width="30" height="40" fill="red"/>
</svg>`

func TestRasterize(t *testing.T) {
	r := newTestRasterizer(t)
	ctx := context.Background()
	require.NoError(t, r.FontsReady(ctx))

	img, err := r.Rasterize(ctx, []byte(square), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, uint8(0xff), img.RGBAAt(20, 30).A)
	assert.Equal(t, uint8(0xff), img.RGBAAt(20, 30).R)
	assert.Zero(t, img.RGBAAt(5, 5).A)
	assert.Zero(t, img.RGBAAt(50, 30).A)

	_, err = r.Rasterize(ctx, []byte("<svg"), 10, 10)
	var loadErr *visualbbox.RenderLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestDrawingBounds(t *testing.T) {
	r := newTestRasterizer(t)
	b, ok, err := r.DrawingBounds(context.Background(), []byte(square))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, visualbbox.BBox{X: 10, Y: 20, Width: 30, Height: 40}, b)

	_, ok, err = r.DrawingBounds(context.Background(), []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine(t *testing.T) {
	r := newTestRasterizer(t)
	doc, err := svgdom.ParseString(square)
	require.NoError(t, err)
	bbox, err := visualbbox.New(r).ComputeBBox(context.Background(), visualbbox.ByElement(doc.Root()),
		visualbbox.Options{CoarseFactor: 1, FineFactor: 4})
	require.NoError(t, err)
	require.NotNil(t, bbox)
	assert.InDelta(t, 10, bbox.X, 1)
	assert.InDelta(t, 20, bbox.Y, 1)
	assert.InDelta(t, 30, bbox.Width, 1)
	assert.InDelta(t, 40, bbox.Height, 1)
}
