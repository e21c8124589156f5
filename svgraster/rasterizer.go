package svgraster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgicon"
	"github.com/benoitkugler/svgbbox/visualbbox"
)

var (
	_ visualbbox.Rasterizer = (*Rasterizer)(nil)
	_ visualbbox.FontWaiter = (*Rasterizer)(nil)
)

// Config configures the native rasterizer.
type Config struct {
	// AllowedOrigins lists the origins (scheme://host[:port]) whose
	// remote images may be drawn. Images from other origins taint the
	// raster, whose pixels then can't be read.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// BaseDir resolves the relative and file: image references.
	// Empty disables local images.
	BaseDir string `yaml:"base_dir"`

	// HTTPClient fetches the images of the allowed origins.
	// Default: a client with a 30s timeout.
	HTTPClient *http.Client `yaml:"-"`

	// MaxImageBytes bounds the size of a fetched or read image. Default: 32MB.
	MaxImageBytes int64 `yaml:"max_image_bytes"`

	// MaxPixels bounds the size of a raster. Default: 1<<28.
	MaxPixels int `yaml:"max_pixels"`

	// ErrorMode is passed to the SVG decoder. Default: ignore unsupported content.
	ErrorMode svgicon.ErrorMode `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 32 << 20
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = 1 << 28
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Rasterizer renders serialized SVG documents with rasterx.
// It is safe for concurrent use.
type Rasterizer struct {
	cfg Config
}

// New returns a rasterizer using cfg, where zero fields take their default value.
func New(cfg Config) *Rasterizer {
	cfg.defaults()
	return &Rasterizer{cfg: cfg}
}

// decode parses the markup into a drawable icon
func (r *Rasterizer) decode(markup []byte) (*svgicon.SvgIcon, error) {
	doc, err := svgdom.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, &visualbbox.RenderLoadError{Cause: err}
	}
	icon, err := svgicon.ReadDocument(doc, r.cfg.ErrorMode)
	if err != nil {
		return nil, &visualbbox.RenderLoadError{Cause: err}
	}
	return icon, nil
}

// Rasterize draws the document on a transparent surface of
// width x height pixels, the root viewport mapping to the whole surface.
func (r *Rasterizer) Rasterize(ctx context.Context, markup []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("svgraster: invalid raster size %dx%d", width, height)
	}
	if int64(width)*int64(height) > int64(r.cfg.MaxPixels) {
		return nil, &visualbbox.RenderLoadError{Cause: fmt.Errorf("raster of %dx%d pixels exceeds the limit of %d", width, height, r.cfg.MaxPixels)}
	}
	icon, err := r.decode(markup)
	if err != nil {
		return nil, err
	}
	images, err := r.loadImages(ctx, icon)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	icon.SetTarget(0, 0, float64(width), float64(height))
	icon.Draw(NewRenderer(img, images.images), 1)

	if images.tainted != "" {
		return nil, &visualbbox.PixelReadSecurityError{
			Source: images.tainted,
			Cause:  fmt.Errorf("origin of %s is not allowed", images.tainted),
		}
	}
	return img, nil
}

// DrawingBounds returns the geometric bounding box of the whole
// drawing, in root user units, ignoring clipping. The boolean is false
// if nothing is drawn.
func (r *Rasterizer) DrawingBounds(ctx context.Context, markup []byte) (visualbbox.BBox, bool, error) {
	if err := ctx.Err(); err != nil {
		return visualbbox.BBox{}, false, err
	}
	icon, err := r.decode(markup)
	if err != nil {
		return visualbbox.BBox{}, false, err
	}
	b := icon.Bounds()
	if b.IsEmpty() {
		return visualbbox.BBox{}, false, nil
	}
	return visualbbox.BBox{X: b.MinX, Y: b.MinY, Width: b.MaxX - b.MinX, Height: b.MaxY - b.MinY}, true, nil
}

// FontsReady loads the fonts used to lay out text.
func (r *Rasterizer) FontsReady(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- svgicon.LoadFonts() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
