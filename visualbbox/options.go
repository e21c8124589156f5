package visualbbox

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the region searched by the coarse pass.
type Mode string

const (
	// Clipped restricts the search to the root viewBox:
	// only what is visible in the viewport is measured.
	Clipped Mode = "clipped"
	// Unclipped searches the geometric bounds of the whole drawing,
	// including content outside the viewport.
	Unclipped Mode = "unclipped"
)

// Default values of the options.
const (
	DefaultCoarseFactor  = 3
	DefaultFineFactor    = 24
	DefaultFontTimeoutMs = 8000
)

// minimal resolutions, in pixels per user unit
const (
	minCoarseRes = 1
	minFineRes   = 4
)

// Options parametrize a computation. The zero value is valid
// and selects the defaults.
type Options struct {
	// Mode defaults to Clipped.
	Mode Mode `yaml:"mode"`

	// CoarseFactor and FineFactor are the resolutions of the two passes,
	// in pixels per user unit, before the layout scale is applied.
	// Zero means default.
	CoarseFactor float64 `yaml:"coarse_factor"`
	FineFactor   float64 `yaml:"fine_factor"`

	// SafetyMarginUser is the margin added around the coarse result
	// to define the region of the fine pass, in user units.
	// Nil selects max(size*0.25, 0) + 100, where size is the
	// largest dimension of the coarse result.
	// The fixed 100 units are large for small viewBoxes drawn at a large
	// layout scale: a 512px icon with viewBox "0 0 16 16" asks for a fine
	// raster of about 167000 pixels per side, rejected as a RenderLoadError.
	// Such documents need a smaller margin or UseLayoutScale set to false.
	SafetyMarginUser *float64 `yaml:"safety_margin_user"`

	// UseLayoutScale multiplies the factors by the scale
	// of the root viewport (pixels per user unit). Default: true.
	// See SafetyMarginUser for its effect on the raster sizes.
	UseLayoutScale *bool `yaml:"use_layout_scale"`

	// FontTimeoutMs bounds the wait for the fonts, in milliseconds. Default: 8000.
	FontTimeoutMs int `yaml:"font_timeout_ms"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// PassHook, if not nil, is called after each rasterization pass.
	PassHook func(PassInfo) `yaml:"-"`
}

// Ptr returns a pointer to v, for the optional fields of Options.
func Ptr[T any](v T) *T { return &v }

func validFactor(f float64) bool { return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0) }

// withDefaults validates opts and returns a copy with
// the default values filled in.
func (opts Options) withDefaults() (Options, error) {
	switch opts.Mode {
	case "":
		opts.Mode = Clipped
	case Clipped, Unclipped:
	default:
		return opts, &OptionError{Field: "Mode", Value: opts.Mode}
	}
	if !validFactor(opts.CoarseFactor) {
		return opts, &OptionError{Field: "CoarseFactor", Value: opts.CoarseFactor}
	}
	if opts.CoarseFactor == 0 {
		opts.CoarseFactor = DefaultCoarseFactor
	}
	if !validFactor(opts.FineFactor) {
		return opts, &OptionError{Field: "FineFactor", Value: opts.FineFactor}
	}
	if opts.FineFactor == 0 {
		opts.FineFactor = DefaultFineFactor
	}
	if m := opts.SafetyMarginUser; m != nil && !validFactor(*m) {
		return opts, &OptionError{Field: "SafetyMarginUser", Value: *m}
	}
	if opts.UseLayoutScale == nil {
		opts.UseLayoutScale = Ptr(true)
	}
	if opts.FontTimeoutMs < 0 {
		return opts, &OptionError{Field: "FontTimeoutMs", Value: opts.FontTimeoutMs}
	}
	if opts.FontTimeoutMs == 0 {
		opts.FontTimeoutMs = DefaultFontTimeoutMs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts, nil
}

func (opts Options) fontTimeout() time.Duration {
	return time.Duration(opts.FontTimeoutMs) * time.Millisecond
}

// margin returns the expansion of the coarse result.
func (opts Options) margin(coarse BBox) float64 {
	if opts.SafetyMarginUser != nil {
		return *opts.SafetyMarginUser
	}
	size := math.Max(coarse.Width, coarse.Height)
	return math.Max(size*0.25, 0) + 100
}

// LoadOptions reads options from a YAML file.
// Unset fields keep their default value.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("visualbbox: parsing options %s: %w", path, err)
	}
	if _, err := opts.withDefaults(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
