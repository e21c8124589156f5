package svgicon

import "github.com/benoitkugler/svgbbox/svgpath"

// geometric bounds, ignoring strokes, filters and clipping

// itemsBounds returns the union of the geometric bounds of the items,
// mapped by m from root user space.
func itemsBounds(items []Item, m svgpath.Matrix2D) svgpath.Rect {
	out := svgpath.EmptyRect
	for _, item := range items {
		switch item := item.(type) {
		case *SvgPath:
			out = out.Union(item.Path.Bounds(m.Mult(item.Style.transform)))
		case *ImageItem:
			if item.Width > 0 && item.Height > 0 {
				r := svgpath.Rect{MinX: item.X, MinY: item.Y, MaxX: item.X + item.Width, MaxY: item.Y + item.Height}
				out = out.Union(m.Mult(item.transform).TransformRect(r))
			}
		case *Layer:
			out = out.Union(itemsBounds(item.Items, m))
		}
	}
	return out
}

// Bounds returns the geometric bounding box of the whole drawing,
// in root user space, as the union of the fill areas of the shapes.
// Hidden elements are included, clipping is ignored.
// The returned rectangle is empty if nothing is drawn.
func (s *SvgIcon) Bounds() svgpath.Rect {
	return itemsBounds(s.Items, svgpath.Identity)
}

// localBounds returns the bounds of the layer content in
// the user space of the element which created the layer.
func (l *Layer) localBounds() svgpath.Rect {
	if l.transform.Det() == 0 {
		return svgpath.EmptyRect
	}
	return itemsBounds(l.Items, l.transform.Invert())
}

// Images returns the image items of the drawing,
// including the ones nested in layers.
func (s *SvgIcon) Images() []*ImageItem {
	var out []*ImageItem
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			switch item := item.(type) {
			case *ImageItem:
				out = append(out, item)
			case *Layer:
				walk(item.Items)
			}
		}
	}
	walk(s.Items)
	return out
}
