package svgraster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/benoitkugler/svgbbox/visualbbox"
)

func newTestRasterizer(cfg Config) *Rasterizer {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg)
}

func toPngBytes(m image.Image) ([]byte, error) {
	var b bytes.Buffer
	if err := png.Encode(&b, m); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// greenPNG returns an opaque 2x2 green image
func greenPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}
	b, err := toPngBytes(img)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func svg(content string) []byte {
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="100" height="100" viewBox="0 0 100 100">` +
		content + `</svg>`)
}

func rasterize(t *testing.T, r *Rasterizer, markup []byte, w, h int) *image.RGBA {
	t.Helper()
	img, err := r.Rasterize(context.Background(), markup, w, h)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, w, h) {
		t.Fatalf("unexpected raster bounds %v", img.Bounds())
	}
	return img
}

func expectAlpha(t *testing.T, img *image.RGBA, x, y int, opaque bool) {
	t.Helper()
	a := img.RGBAAt(x, y).A
	if opaque && a == 0 {
		t.Errorf("expected a painted pixel at (%d, %d)", x, y)
	} else if !opaque && a != 0 {
		t.Errorf("expected a transparent pixel at (%d, %d), got alpha %d", x, y, a)
	}
}

func TestRasterizeRect(t *testing.T) {
	r := newTestRasterizer(Config{})
	markup := svg(`<rect x="10" y="20" width="30" height="40" fill="red"/>`)

	img := rasterize(t, r, markup, 100, 100)
	if c := img.RGBAAt(20, 30); c != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("expected red, got %v", c)
	}
	expectAlpha(t, img, 5, 5, false)
	expectAlpha(t, img, 50, 30, false)

	// the viewport maps to the whole surface
	img = rasterize(t, r, markup, 200, 200)
	expectAlpha(t, img, 70, 100, true)
	expectAlpha(t, img, 90, 100, false)
	expectAlpha(t, img, 30, 30, false)
}

func TestRasterizeOpacity(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<rect width="50" height="100" fill-opacity="0"/>
		<rect x="50" width="50" height="100" style="opacity:0.5"/>`), 100, 100)
	expectAlpha(t, img, 25, 50, false)
	if a := img.RGBAAt(75, 50).A; a < 120 || a > 135 {
		t.Errorf("expected half transparency, got alpha %d", a)
	}
}

func TestRasterizeStroke(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<rect x="20" y="20" width="60" height="60" fill="none" stroke="black" stroke-width="10"/>`), 100, 100)
	expectAlpha(t, img, 17, 50, true)
	expectAlpha(t, img, 50, 50, false)
	expectAlpha(t, img, 10, 50, false)
}

func TestRasterizeBlur(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<filter id="f"><feGaussianBlur stdDeviation="2"/></filter>
		<rect x="30" y="30" width="40" height="40" filter="url(#f)"/>`), 100, 100)
	// the blur spreads outside of the shape, up to the filter region
	expectAlpha(t, img, 28, 50, true)
	expectAlpha(t, img, 20, 50, false)
	expectAlpha(t, img, 50, 50, true)
}

func TestRasterizeDropShadow(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<filter id="f" x="0" y="0" width="2" height="2">
			<feOffset dx="20" dy="0" result="o"/>
			<feMerge><feMergeNode in="o"/><feMergeNode in="SourceGraphic"/></feMerge>
		</filter>
		<rect x="10" y="10" width="20" height="20" filter="url(#f)"/>`), 100, 100)
	expectAlpha(t, img, 15, 15, true)
	expectAlpha(t, img, 45, 15, true)
	expectAlpha(t, img, 60, 15, false)
}

func TestRasterizeGradient(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<linearGradient id="g">
			<stop offset="0" stop-color="red"/><stop offset="1" stop-color="blue"/>
		</linearGradient>
		<rect width="100" height="100" fill="url(#g)"/>`), 100, 100)
	left, right := img.RGBAAt(5, 50), img.RGBAAt(95, 50)
	if left.R <= left.B || right.B <= right.R {
		t.Errorf("unexpected gradient colors %v %v", left, right)
	}
}

func TestRasterizeClip(t *testing.T) {
	r := newTestRasterizer(Config{})
	img := rasterize(t, r, svg(`<clipPath id="c"><circle cx="50" cy="50" r="10"/></clipPath>
		<rect width="100" height="100" clip-path="url(#c)"/>`), 100, 100)
	expectAlpha(t, img, 50, 50, true)
	expectAlpha(t, img, 5, 5, false)
	expectAlpha(t, img, 50, 65, false)
}

func TestRasterizeDataURI(t *testing.T) {
	r := newTestRasterizer(Config{})
	href := "data:image/png;base64," + base64.StdEncoding.EncodeToString(greenPNG(t))
	img := rasterize(t, r, svg(fmt.Sprintf(`<image href="%s" x="0" y="0" width="10" height="10"/>`, href)), 100, 100)
	if c := img.RGBAAt(5, 5); c.G < 0xf0 || c.A < 0xf0 {
		t.Errorf("expected green, got %v", c)
	}
	expectAlpha(t, img, 20, 20, false)

	svgHref := "data:image/svg+xml," + url.PathEscape(
		`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	img = rasterize(t, r, svg(fmt.Sprintf(`<image xlink:href='%s' x="50" y="50"/>`, svgHref)), 100, 100)
	expectAlpha(t, img, 55, 55, true)
	expectAlpha(t, img, 65, 65, false)
}

func TestParseDataURI(t *testing.T) {
	for _, test := range []struct {
		uri       string
		mediaType string
		data      string
	}{
		{"data:text/plain;base64,aGVsbG8=", "text/plain", "hello"},
		{"data:text/plain;base64,aGVs\nbG8", "text/plain", "hello"},
		{"DATA:image/SVG+xml;charset=utf8,%3Csvg%3E", "image/svg+xml", "<svg>"},
		{"data:,abc", "", "abc"},
	} {
		mediaType, data, err := parseDataURI(test.uri)
		if err != nil {
			t.Fatalf("%s: %s", test.uri, err)
		}
		if mediaType != test.mediaType || string(data) != test.data {
			t.Errorf("%s: expected %s %q, got %s %q", test.uri, test.mediaType, test.data, mediaType, data)
		}
	}
	for _, uri := range []string{"data:text/plain", "data:;base64,!!", "http://a.com"} {
		if _, _, err := parseDataURI(uri); err == nil {
			t.Errorf("%s: expected error", uri)
		}
	}
}

func TestRasterizeTainted(t *testing.T) {
	r := newTestRasterizer(Config{})
	_, err := r.Rasterize(context.Background(),
		svg(`<image href="https://example.com/a.png" width="10" height="10"/>`), 100, 100)
	var secErr *visualbbox.PixelReadSecurityError
	if !errors.As(err, &secErr) {
		t.Fatalf("expected a security error, got %v", err)
	}
	if secErr.Source != "https://example.com/a.png" {
		t.Errorf("unexpected source %s", secErr.Source)
	}
}

func TestRasterizeAllowedOrigin(t *testing.T) {
	data := greenPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/a.png" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	r := newTestRasterizer(Config{AllowedOrigins: []string{srv.URL}, HTTPClient: srv.Client()})
	img := rasterize(t, r, svg(fmt.Sprintf(`<image href="%s/a.png" width="10" height="10"/>
		<image href="%s/missing.png" x="20" width="10" height="10"/>`, srv.URL, srv.URL)), 100, 100)
	expectAlpha(t, img, 5, 5, true)
	// images which can't be loaded are skipped
	expectAlpha(t, img, 25, 5, false)
}

func TestRasterizeLocalImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), greenPNG(t), 0o644); err != nil {
		t.Fatal(err)
	}
	markup := svg(`<image href="a.png" width="10" height="10"/>
		<image href="../a.png" x="20" width="10" height="10"/>`)

	img := rasterize(t, newTestRasterizer(Config{BaseDir: dir}), markup, 100, 100)
	expectAlpha(t, img, 5, 5, true)
	expectAlpha(t, img, 25, 5, false)

	// no base directory: local images are disabled
	img = rasterize(t, newTestRasterizer(Config{}), markup, 100, 100)
	expectAlpha(t, img, 5, 5, false)
}

func TestRasterizeErrors(t *testing.T) {
	r := newTestRasterizer(Config{MaxPixels: 100})
	var loadErr *visualbbox.RenderLoadError

	_, err := r.Rasterize(context.Background(), svg(""), 20, 20)
	if !errors.As(err, &loadErr) {
		t.Errorf("expected a load error for a large raster, got %v", err)
	}
	_, err = r.Rasterize(context.Background(), []byte("<svg"), 10, 10)
	if !errors.As(err, &loadErr) {
		t.Errorf("expected a load error for invalid markup, got %v", err)
	}
	if _, err = r.Rasterize(context.Background(), svg(""), 0, 10); err == nil {
		t.Error("expected an error for an empty raster")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = r.Rasterize(ctx, svg(""), 10, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestDrawingBounds(t *testing.T) {
	r := newTestRasterizer(Config{})
	ctx := context.Background()

	b, ok, err := r.DrawingBounds(ctx, svg(`<rect x="10" y="20" width="30" height="40"/>
		<g transform="translate(200 0)"><circle r="5"/></g>`))
	if err != nil {
		t.Fatal(err)
	}
	expected := visualbbox.BBox{X: 10, Y: -5, Width: 195, Height: 65}
	if !ok || math.Abs(b.X-expected.X) > 1e-6 || math.Abs(b.Y-expected.Y) > 1e-6 ||
		math.Abs(b.Width-expected.Width) > 1e-6 || math.Abs(b.Height-expected.Height) > 1e-6 {
		t.Errorf("expected %v, got %v (%v)", expected, b, ok)
	}

	if _, ok, err = r.DrawingBounds(ctx, svg(`<g/>`)); err != nil || ok {
		t.Errorf("expected no drawing, got %v %v", ok, err)
	}
}

func TestFontsReady(t *testing.T) {
	r := newTestRasterizer(Config{})
	if err := r.FontsReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	img := rasterize(t, r, svg(`<text x="10" y="60" font-size="40">Hi</text>`), 100, 100)
	painted := false
	for x := 10; x < 60 && !painted; x++ {
		for y := 30; y < 60 && !painted; y++ {
			painted = img.RGBAAt(x, y).A != 0
		}
	}
	if !painted {
		t.Error("expected text pixels")
	}
}

func TestRasterSVGIconToImage(t *testing.T) {
	img, err := RasterSVGIconToImage(bytes.NewReader([]byte(
		`<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 4 2"><rect width="2" height="2"/></svg>`)))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	expectAlpha(t, img, 10, 10, true)
	expectAlpha(t, img, 30, 10, false)

	if _, err := toPngBytes(img); err != nil {
		t.Fatal(err)
	}
}
