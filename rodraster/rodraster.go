// Package rodraster renders SVG documents in a headless Chrome, driven
// through the DevTools protocol with Rod.
//
// The markup is loaded as an <img>, drawn on a <canvas> and read back
// with getImageData, so the raster matches what a browser displays,
// including text shaping and filter effects.
package rodraster

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"

	"github.com/benoitkugler/svgbbox/visualbbox"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

var (
	_ visualbbox.Rasterizer = (*Rasterizer)(nil)
	_ visualbbox.FontWaiter = (*Rasterizer)(nil)
)

// Config configures the browser backend.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string `yaml:"remote_url"`

	// Bin is the path of the Chrome binary to launch.
	// Empty = let the launcher find (or download) one.
	Bin string `yaml:"bin"`

	// Flags are additional command line flags of the launched Chrome,
	// without the leading dashes.
	Flags map[string]string `yaml:"flags"`

	// NoSandbox disables the Chrome sandbox, which is required
	// when running as root in containers.
	NoSandbox bool `yaml:"no_sandbox"`

	// Stealth opens the page with the anti-detection scripts of go-rod/stealth.
	Stealth bool `yaml:"stealth"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Rasterizer renders with a single Chrome page.
// It is safe for concurrent use, the calls being serialized.
type Rasterizer struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// New launches Chrome (or connects to a remote instance) and opens the
// rendering page. Call Close to release the browser.
func New(cfg Config) (*Rasterizer, error) {
	cfg.defaults()
	r := &Rasterizer{cfg: cfg}
	if err := r.launch(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Rasterizer) launch() error {
	log := r.cfg.Logger

	wsURL := r.cfg.RemoteURL
	if wsURL != "" {
		log.Info("rodraster: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(true).NoSandbox(r.cfg.NoSandbox)
		if r.cfg.Bin != "" {
			l = l.Bin(r.cfg.Bin)
		}
		for name, value := range r.cfg.Flags {
			if value == "" {
				l = l.Set(flags.Flag(name))
			} else {
				l = l.Set(flags.Flag(name), value)
			}
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("rodraster: launch: %w", err)
		}
		wsURL = u
		r.lnch = l
		log.Info("rodraster: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("rodraster: connect: %w", err)
	}
	r.browser = b

	var (
		page *rod.Page
		err  error
	)
	if r.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return fmt.Errorf("rodraster: create page: %w", err)
	}
	r.page = page
	return nil
}

// Close shuts down the page and the browser.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			r.cfg.Logger.Warn("rodraster: closing page", "error", err)
		}
		r.page = nil
	}
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}

// evalResult is returned by the page scripts
type evalResult struct {
	Error   string `json:"error"` // "load", "security", "read", "parse"
	Message string `json:"message"`

	Pixels string `json:"pixels"` // base64 encoded RGBA samples, not premultiplied

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r *Rasterizer) eval(ctx context.Context, js string, args ...any) (evalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page == nil {
		return evalResult{}, fmt.Errorf("rodraster: rasterizer is closed")
	}
	res, err := r.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return evalResult{}, fmt.Errorf("rodraster: eval: %w", err)
	}
	var out evalResult
	if err := res.Value.Unmarshal(&out); err != nil {
		return evalResult{}, fmt.Errorf("rodraster: invalid script result: %w", err)
	}
	return out, nil
}

// Rasterize draws the markup on a width x height canvas
// and reads its pixels back.
func (r *Rasterizer) Rasterize(ctx context.Context, markup []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rodraster: invalid raster size %dx%d", width, height)
	}
	res, err := r.eval(ctx, rasterizeJS, string(markup), width, height)
	if err != nil {
		return nil, err
	}
	switch res.Error {
	case "":
	case "load":
		return nil, &visualbbox.RenderLoadError{Cause: fmt.Errorf("rodraster: %s", res.Message)}
	case "security":
		return nil, &visualbbox.PixelReadSecurityError{Cause: fmt.Errorf("rodraster: %s", res.Message)}
	default:
		return nil, fmt.Errorf("rodraster: reading pixels: %s", res.Message)
	}

	pix, err := base64.StdEncoding.DecodeString(res.Pixels)
	if err != nil {
		return nil, fmt.Errorf("rodraster: decoding pixels: %w", err)
	}
	if len(pix) != 4*width*height {
		return nil, fmt.Errorf("rodraster: expected %d samples, got %d", 4*width*height, len(pix))
	}
	src := &image.NRGBA{Pix: pix, Stride: 4 * width, Rect: image.Rect(0, 0, width, height)}
	dst := image.NewRGBA(src.Rect)
	draw.Draw(dst, dst.Rect, src, image.Point{}, draw.Src)
	return dst, nil
}

// DrawingBounds inserts the markup in the page and returns the
// result of getBBox() on its root.
func (r *Rasterizer) DrawingBounds(ctx context.Context, markup []byte) (visualbbox.BBox, bool, error) {
	res, err := r.eval(ctx, boundsJS, string(markup))
	if err != nil {
		return visualbbox.BBox{}, false, err
	}
	if res.Error != "" {
		return visualbbox.BBox{}, false, &visualbbox.RenderLoadError{Cause: fmt.Errorf("rodraster: %s", res.Message)}
	}
	b := visualbbox.BBox{X: res.X, Y: res.Y, Width: res.Width, Height: res.Height}
	if b.Width <= 0 && b.Height <= 0 {
		return visualbbox.BBox{}, false, nil
	}
	return b, true, nil
}

// FontsReady waits for document.fonts.ready.
func (r *Rasterizer) FontsReady(ctx context.Context) error {
	_, err := r.eval(ctx, fontsJS)
	return err
}
