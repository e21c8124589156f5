package visualbbox

import "image"

// extractBBox scans the raster for pixels with a non zero alpha,
// and maps their extent back to user space, the raster covering
// roi at res pixels per user unit. It returns nil if no pixel is visible.
func extractBBox(img *image.RGBA, roi BBox, res float64) *BBox {
	b := img.Bounds()
	xMin, yMin, xMax, yMax := b.Max.X, b.Max.Y, -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+4]
		for x := 0; x < b.Dx(); x++ {
			if row[4*x+3] == 0 {
				continue
			}
			px := b.Min.X + x
			xMin, xMax = min(xMin, px), max(xMax, px)
			yMin, yMax = min(yMin, y), max(yMax, y)
		}
	}
	if xMax < 0 {
		return nil
	}
	// relative to the raster origin
	xMin, xMax = xMin-b.Min.X, xMax-b.Min.X
	yMin, yMax = yMin-b.Min.Y, yMax-b.Min.Y
	return &BBox{
		X:      roi.X + float64(xMin)/res,
		Y:      roi.Y + float64(yMin)/res,
		Width:  float64(xMax-xMin+1) / res,
		Height: float64(yMax-yMin+1) / res,
	}
}
