// svgbbox prints the visual bounding boxes of SVG elements, as JSON.
//
// The boxes enclose every pixel actually rendered, including strokes,
// filters and text, in the user space of the root <svg>.
//
// Usage:
//
//	svgbbox [options] file.svg
//
// Options:
//
//	-config string   YAML file setting the defaults of the options below
//	-mode string     clipped (only the viewBox content) or unclipped
//	-coarse float    resolution of the coarse pass, in pixels per user unit
//	-fine float      resolution of the fine pass, in pixels per user unit
//	-margin string   margin around the coarse result, "auto" or a number of user units
//	-id string       id of an element to measure (repeatable), default: the root
//	-union           print the union of the elements
//	-full            print both the visible and the full boxes
//	-expand          print the padding needed by the root viewBox to show everything
//	-backend string  native or chrome
//	-dump string     directory where the rasters of each pass are saved
//	-v               debug logging
//
// The configuration file accepts the options of the measure and of
// the backends:
//
//	mode: unclipped
//	coarse_factor: 3
//	fine_factor: 24
//	backend: native
//	native:
//	  allowed_origins: ["https://cdn.example.com"]
//	chrome:
//	  remote_url: ws://localhost:9222/devtools/browser/...
//
// Example:
//
//	svgbbox -id logo -id title -union drawing.svg
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/benoitkugler/svgbbox/rodraster"
	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgraster"
	"github.com/benoitkugler/svgbbox/visualbbox"
)

type yamlConfig struct {
	visualbbox.Options `yaml:",inline"`

	Backend string           `yaml:"backend"`
	Native  svgraster.Config `yaml:"native"`
	Chrome  rodraster.Config `yaml:"chrome"`
}

// loadConfig reads a YAML configuration file
func loadConfig(path string) (yamlConfig, error) {
	var yc yamlConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return yc, err
	}
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return yc, fmt.Errorf("parsing %s: %w", path, err)
	}
	return yc, nil
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	mode := flag.String("mode", string(visualbbox.Clipped), "Search region: clipped or unclipped")
	coarse := flag.Float64("coarse", visualbbox.DefaultCoarseFactor, "Resolution of the coarse pass (pixels per user unit)")
	fine := flag.Float64("fine", visualbbox.DefaultFineFactor, "Resolution of the fine pass (pixels per user unit)")
	margin := flag.String("margin", "auto", "Margin around the coarse result: auto or user units")
	var ids stringList
	flag.Var(&ids, "id", "Id of an element to measure (repeatable); default: the root element")
	union := flag.Bool("union", false, "Print the union of the elements")
	full := flag.Bool("full", false, "Print the visible and the full boxes")
	expand := flag.Bool("expand", false, "Print the expansion of the root viewBox showing the whole drawing")
	backendName := flag.String("backend", "native", "Rasterizer: native or chrome")
	dumpDir := flag.String("dump", "", "Directory to save the raster of each pass as PNG")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one SVG file is required")
		fmt.Fprintln(os.Stderr, "Usage: svgbbox [options] file.svg")
		flag.PrintDefaults()
		os.Exit(1)
	}
	input := flag.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg yamlConfig
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	// flags override the configuration file
	provided := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { provided[f.Name] = true })
	opts := cfg.Options
	if provided["mode"] || opts.Mode == "" {
		opts.Mode = visualbbox.Mode(*mode)
	}
	if provided["coarse"] || opts.CoarseFactor == 0 {
		opts.CoarseFactor = *coarse
	}
	if provided["fine"] || opts.FineFactor == 0 {
		opts.FineFactor = *fine
	}
	if provided["margin"] {
		if *margin == "auto" {
			opts.SafetyMarginUser = nil
		} else {
			m, err := strconv.ParseFloat(*margin, 64)
			if err != nil {
				log.Fatalf("Error: invalid -margin %q", *margin)
			}
			opts.SafetyMarginUser = &m
		}
	}
	if provided["backend"] || cfg.Backend == "" {
		cfg.Backend = *backendName
	}
	opts.Logger = logger
	if *dumpDir != "" {
		if err := os.MkdirAll(*dumpDir, 0o755); err != nil {
			log.Fatalf("Error creating dump directory: %v", err)
		}
		opts.PassHook = dumpPasses(*dumpDir, logger)
	}

	doc, err := svgdom.ParseFile(input)
	if err != nil {
		log.Fatalf("Error reading %s: %v", input, err)
	}

	var (
		rasterizer visualbbox.Rasterizer
		backend    io.Closer
	)
	switch cfg.Backend {
	case "native":
		if cfg.Native.BaseDir == "" {
			cfg.Native.BaseDir = filepath.Dir(input)
		}
		cfg.Native.Logger = logger
		rasterizer = svgraster.New(cfg.Native)
	case "chrome":
		cfg.Chrome.Logger = logger
		r, err := rodraster.New(cfg.Chrome)
		if err != nil {
			log.Fatalf("Error starting Chrome: %v", err)
		}
		rasterizer, backend = r, r
	default:
		log.Fatalf("Error: unknown backend %q", cfg.Backend)
	}

	result, err := measure(context.Background(), visualbbox.New(rasterizer), backend, doc, ids, opts, *union, *full, *expand)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Error writing result: %v", err)
	}
}

type elementResult struct {
	ID   string           `json:"id,omitempty"`
	BBox *visualbbox.BBox `json:"bbox"`
}

type fullResult struct {
	ID string `json:"id,omitempty"`
	visualbbox.VisibleAndFull
	Clipped bool `json:"clipped"`
}

// measure runs the request, then releases the backend, if any,
// before the caller may exit.
func measure(ctx context.Context, engine *visualbbox.Engine, backend io.Closer, doc *svgdom.Document, ids []string,
	opts visualbbox.Options, union, full, expand bool,
) (any, error) {
	if backend != nil {
		defer backend.Close()
	}
	return run(ctx, engine, doc, ids, opts, union, full, expand)
}

func run(ctx context.Context, engine *visualbbox.Engine, doc *svgdom.Document, ids []string,
	opts visualbbox.Options, union, full, expand bool,
) (any, error) {
	if expand {
		return engine.ComputeViewBoxExpansion(ctx, doc, opts)
	}

	targets := make([]visualbbox.Target, len(ids))
	for i, id := range ids {
		targets[i] = visualbbox.ByID(doc, id)
	}
	if len(targets) == 0 {
		ids = []string{""}
		targets = []visualbbox.Target{visualbbox.ByElement(doc.Root())}
	}

	switch {
	case union:
		return engine.ComputeUnionBBox(ctx, targets, opts)
	case full:
		var out []fullResult
		for i, target := range targets {
			vf, err := engine.ComputeVisibleAndFull(ctx, target, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, fullResult{ID: ids[i], VisibleAndFull: vf, Clipped: vf.Clipped()})
		}
		return out, nil
	default:
		var out []elementResult
		for i, target := range targets {
			bbox, err := engine.ComputeBBox(ctx, target, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, elementResult{ID: ids[i], BBox: bbox})
		}
		return out, nil
	}
}

// dumpPasses returns a hook saving the rasters in dir
func dumpPasses(dir string, logger *slog.Logger) func(visualbbox.PassInfo) {
	count := 0
	return func(info visualbbox.PassInfo) {
		count++
		name := fmt.Sprintf("%03d-%s", count, info.Kind)
		if id := info.Target.ID(); id != "" {
			name += "-" + id
		}
		path := filepath.Join(dir, name+".png")
		f, err := os.Create(path)
		if err != nil {
			logger.Warn("svgbbox: dumping raster", "path", path, "error", err)
			return
		}
		defer f.Close()
		if err := png.Encode(f, info.Raster); err != nil {
			logger.Warn("svgbbox: dumping raster", "path", path, "error", err)
		}
	}
}
