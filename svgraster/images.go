package svgraster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/benoitkugler/svgbbox/svgicon"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	errLocalDisabled = errors.New("local images are disabled (no base directory)")
	errOutsideBase   = errors.New("image path escapes the base directory")
)

// imageSet holds the decoded images of a drawing
type imageSet struct {
	images map[string]image.Image
	// tainted is the first image reference whose origin is not allowed
	tainted string
}

// loadImages resolves the image references of the icon.
// Images which can't be loaded are skipped, as browsers do.
func (r *Rasterizer) loadImages(ctx context.Context, icon *svgicon.SvgIcon) (imageSet, error) {
	out := imageSet{images: make(map[string]image.Image)}
	for _, item := range icon.Images() {
		href := item.Href
		if _, done := out.images[href]; done {
			continue
		}
		if isDataURI(href) {
			img, err := decodeDataURI(href)
			if err != nil {
				r.cfg.Logger.Warn("svgraster: image not loaded", "href", truncate(href), "error", err)
				continue
			}
			out.images[href] = img
			continue
		}
		u, err := url.Parse(href)
		if err != nil {
			r.cfg.Logger.Warn("svgraster: invalid image reference", "href", truncate(href), "error", err)
			continue
		}
		if (u.Scheme == "http" || u.Scheme == "https") && !r.allowedOrigin(u) {
			if out.tainted == "" {
				out.tainted = href
			}
			continue
		}
		img, err := r.loadImage(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			r.cfg.Logger.Warn("svgraster: image not loaded", "href", truncate(href), "error", err)
			continue
		}
		out.images[href] = img
	}
	return out, nil
}

// truncate shortens data URIs in log records
func truncate(href string) string {
	if len(href) > 64 {
		return href[:64] + "..."
	}
	return href
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func (r *Rasterizer) allowedOrigin(u *url.URL) bool {
	target := origin(u)
	for _, allowed := range r.cfg.AllowedOrigins {
		a, err := url.Parse(allowed)
		if err == nil && origin(a) == target {
			return true
		}
	}
	return false
}

func isDataURI(href string) bool {
	return len(href) >= 5 && strings.EqualFold(href[:5], "data:")
}

func decodeDataURI(href string) (image.Image, error) {
	mediaType, data, err := parseDataURI(href)
	if err != nil {
		return nil, err
	}
	return decodeImage(mediaType, data)
}

func (r *Rasterizer) loadImage(ctx context.Context, u *url.URL) (image.Image, error) {
	switch u.Scheme {
	case "http", "https":
		return r.fetchImage(ctx, u)
	case "file", "":
		data, err := r.readLocal(u.Path)
		if err != nil {
			return nil, err
		}
		return decodeImage(mimeFromPath(u.Path), data)
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

// parseDataURI splits a data: URI into its media type and its decoded content.
func parseDataURI(uri string) (string, []byte, error) {
	if !isDataURI(uri) {
		return "", nil, errors.New("not a data URI")
	}
	rest := uri[5:]
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URI: missing comma")
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")
	mediaType, _, _ := strings.Cut(meta, ";")
	if isBase64 {
		// tolerate the line breaks of inlined documents
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// unpadded variant
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, fmt.Errorf("malformed data URI: %w", err)
		}
		return strings.ToLower(mediaType), data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data URI: %w", err)
	}
	return strings.ToLower(mediaType), []byte(data), nil
}

func mimeFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return "image/svg+xml"
	}
	return ""
}

// decodeImage decodes raster images, and renders SVG
// ones at their natural size.
func decodeImage(mediaType string, data []byte) (image.Image, error) {
	if mediaType == "image/svg+xml" {
		return RasterSVGIconToImage(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func (r *Rasterizer) readLocal(path string) ([]byte, error) {
	if r.cfg.BaseDir == "" {
		return nil, errLocalDisabled
	}
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(r.cfg.BaseDir, path)
		if err != nil {
			return nil, errOutsideBase
		}
		path = rel
	}
	if !filepath.IsLocal(path) {
		return nil, errOutsideBase
	}
	f, err := os.Open(filepath.Join(r.cfg.BaseDir, path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, r.cfg.MaxImageBytes))
}

func (r *Rasterizer) fetchImage(ctx context.Context, u *url.URL) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxImageBytes))
	if err != nil {
		return nil, err
	}
	mediaType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType != "image/svg+xml" {
		mediaType = mimeFromPath(u.Path)
	}
	return decodeImage(mediaType, data)
}
