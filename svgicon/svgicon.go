// Provides parsing of SVG images into an abstract
// representation, which can then be consumed by painting drivers
// (see svgraster) or measured.
//
// The drawing model is a list of items in root user space (the
// coordinate system of the root viewBox): filled and stroked paths,
// text outlines, raster images and layers carrying filter effects
// and clip paths.
package svgicon

import (
	"io"
	"os"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgpath"
)

// PathStyle holds the state of the SVG style
type PathStyle struct {
	FillOpacity, LineOpacity float64
	// Opacity is the product of the group opacities
	// of the element and its ancestors.
	Opacity           float64
	LineWidth         float64
	UseNonZeroWinding bool

	Join                    JoinOptions
	Dash                    DashOptions
	FillerColor, LinerColor Pattern // either PlainColor or Gradient, nil for none

	// Hidden is set by visibility:hidden; the element
	// is measured but not painted.
	Hidden bool

	Font TextStyle

	color     PlainColor       // value of currentColor
	transform svgpath.Matrix2D // current transform, to root user space
}

// Transform returns the matrix mapping the element user space
// to the root user space.
func (ps PathStyle) Transform() svgpath.Matrix2D { return ps.transform }

// Item is one of *SvgPath, *ImageItem or *Layer.
type Item interface {
	isItem()
}

// SvgPath binds a style to a path
type SvgPath struct {
	Path  svgpath.Path
	Style PathStyle
}

// ImageItem is a raster image placed in a rectangle.
// Width or Height may be zero when they are not specified,
// in which case the intrinsic size of the image is used.
type ImageItem struct {
	Href                string
	X, Y, Width, Height float64
	AspectRatio         AspectRatio
	Opacity             float64
	Hidden              bool

	transform svgpath.Matrix2D
}

// Transform returns the matrix mapping the image
// user space to the root user space.
func (img *ImageItem) Transform() svgpath.Matrix2D { return img.transform }

// Layer groups items which are composited together,
// after applying a filter and a clip.
type Layer struct {
	Items []Item

	// Filter is nil if the layer has no filter effect.
	// Its primitives are expressed in the user space of the
	// filtered element, given by Transform.
	Filter *ResolvedFilter

	// Clip is nil if the layer is not clipped. The paths are
	// in root user space, like the other items.
	Clip []*SvgPath

	transform svgpath.Matrix2D
}

func (*SvgPath) isItem()   {}
func (*ImageItem) isItem() {}
func (*Layer) isItem()     {}

// Bounds defines a bounding box, such as a viewport
// or a path extent.
type Bounds struct{ X, Y, W, H float64 }

// SvgIcon holds data from parsed SVGs.
// See the `Draw` methods to use it.
type SvgIcon struct {
	ViewBox      Bounds
	Titles       []string // Title elements collect here
	Descriptions []string // Description elements collect here
	Items        []Item

	// Transform maps the root user space to the device,
	// see SetTarget.
	Transform svgpath.Matrix2D

	// Width and Height are the root width and height, in pixels.
	// They default to the viewBox size.
	Width, Height float64
	AspectRatio   AspectRatio

	gradients map[string]*Gradient
	filters   map[string]*Filter
}

// ReadIconStream reads the Icon from the given io.Reader
// This only supports a sub-set of SVG, but
// is enough to draw many icons. errMode determines if the icon ignores, errors out, or logs a warning
// if it does not handle an element found in the icon file.
func ReadIconStream(stream io.Reader, errMode ErrorMode) (*SvgIcon, error) {
	doc, err := svgdom.Parse(stream)
	if err != nil {
		return nil, err
	}
	return ReadDocument(doc, errMode)
}

// ReadIcon reads the Icon from the named file
// This only supports a sub-set of SVG, but
// is enough to draw many icons. errMode determines if the icon ignores, errors out, or logs a warning
// if it does not handle an element found in the icon file.
func ReadIcon(iconFile string, errMode ErrorMode) (*SvgIcon, error) {
	fin, errf := os.Open(iconFile)
	if errf != nil {
		return nil, errf
	}
	defer fin.Close()
	return ReadIconStream(fin, errMode)
}
