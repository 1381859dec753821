package images

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	FoundColor  = color.RGBA{0x20, 0xE0, 0x40, 0xFF}
	MissedColor = color.RGBA{0xE0, 0x30, 0x30, 0xFF}
	RegionColor = color.RGBA{0x40, 0x80, 0xF0, 0xFF}
)

// Box is one rectangle to draw over a frame, in frame coordinates.
type Box struct {
	Rect  image.Rectangle
	Color color.RGBA
}

// DrawBoxes returns a copy of frame, anchored at the origin, with the
// outline of each box drawn on top. Boxes are clipped to the frame.
func DrawBoxes(frame image.Image, boxes []Box) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	for _, box := range boxes {
		outline(out, box.Rect.Intersect(out.Rect), box.Color)
	}
	return out
}

func outline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// ExtractROI produces a square crop of side size centred at c. The
// rectangle is clamped to the frame bounds and is at least 1x1. The
// returned rectangle is in frame coordinates.
func ExtractROI(frame image.Image, c image.Point, size int) (*image.RGBA, image.Rectangle) {
	b := frame.Bounds()
	size = max(size, 1)
	x0 := max(c.X-size/2, b.Min.X)
	y0 := max(c.Y-size/2, b.Min.Y)
	x1 := max(min(x0+size, b.Max.X), x0+1)
	y1 := max(min(y0+size, b.Max.Y), y0+1)
	roi := image.Rect(x0, y0, x1, y1).Intersect(b)
	out := image.NewRGBA(image.Rect(0, 0, roi.Dx(), roi.Dy()))
	draw.Draw(out, out.Bounds(), frame, roi.Min, draw.Src)
	return out, roi
}

// Render draws boxes over frame, scales the result to fit maxW x maxH and
// encodes it as PNG for a Tk photo.
func Render(frame image.Image, boxes []Box, maxW, maxH int) []byte {
	if frame == nil {
		return nil
	}
	return EncodePNG(ScaleToFit(DrawBoxes(frame, boxes), maxW, maxH))
}
