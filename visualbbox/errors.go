package visualbbox

import "fmt"

// NotFoundError is returned when a target does not resolve
// to an element of an SVG document.
type NotFoundError struct {
	// ID is the looked up id, empty for element targets.
	ID     string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("visualbbox: element #%s not found: %s", e.ID, e.Reason)
	}
	return "visualbbox: element not found: " + e.Reason
}

// RenderLoadError is returned when the serialized markup
// of a pass can't be decoded by the rasterizer.
type RenderLoadError struct {
	Cause error
}

func (e *RenderLoadError) Error() string {
	return fmt.Sprintf("visualbbox: failed to load the SVG for rasterization: %v", e.Cause)
}

func (e *RenderLoadError) Unwrap() error { return e.Cause }

// PixelReadSecurityError is returned when the raster pixels can't be read
// because the drawing references cross origin content.
// It is never reported as "no content".
type PixelReadSecurityError struct {
	// Source is the offending resource, if known.
	Source string
	Cause  error
}

func (e *PixelReadSecurityError) Error() string {
	msg := "visualbbox: reading the raster pixels is blocked by cross-origin restrictions"
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	return msg + "; serve external images and fonts from the same origin as the document, " +
		"or with CORS headers (Access-Control-Allow-Origin) and crossorigin=\"anonymous\""
}

func (e *PixelReadSecurityError) Unwrap() error { return e.Cause }

// CrossRootError is returned when the targets of a union
// do not belong to the same document.
type CrossRootError struct {
	// Index is the position of the first target whose
	// document differs from the first one.
	Index int
}

func (e *CrossRootError) Error() string {
	return fmt.Sprintf("visualbbox: target %d does not belong to the same SVG root as target 0", e.Index)
}

// OptionError reports an invalid option value.
type OptionError struct {
	Field string
	Value any
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("visualbbox: invalid option %s: %v", e.Field, e.Value)
}
