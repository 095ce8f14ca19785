package imageproc

import (
	"image"
	"image/color"
	"image/draw"
)

// DefaultSwatchSize is the edge length of one palette square.
const DefaultSwatchSize = 100

// DrawSwatches paints one size x size square per color along the bottom edge of img,
// left to right. Squares past the right edge are clipped.
func DrawSwatches(img *image.RGBA, colors [][3]uint8, size int) {
	b := img.Bounds()
	for i, c := range colors {
		rect := image.Rect(b.Min.X+i*size, b.Max.Y-size, b.Min.X+(i+1)*size, b.Max.Y).Intersect(b)
		if rect.Empty() {
			return
		}
		fill := image.NewUniform(color.RGBA{R: c[0], G: c[1], B: c[2], A: 255})
		draw.Draw(img, rect, fill, image.Point{}, draw.Src)
	}
}
