// Package colorfilter thresholds images in HSV space. Hue follows the
// 8-bit OpenCV convention ([0,180)) so palettes tuned against OpenCV
// captures carry over unchanged.
package colorfilter

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// HSV converts an 8-bit RGB triple to OpenCV's 8-bit HSV: h in [0,180),
// s and v in [0,255].
func HSV(r, g, b uint8) (h, s, v uint8) {
	mx := max(r, g, b)
	mn := min(r, g, b)
	v = mx
	diff := float64(mx) - float64(mn)
	if mx == 0 || diff == 0 {
		return 0, 0, v
	}
	s = uint8(math.Floor(255*diff/float64(mx) + 0.5))

	var num float64
	switch mx {
	case r:
		num = float64(g) - float64(b)
	case g:
		num = float64(b) - float64(r) + 2*diff
	default:
		num = float64(r) - float64(g) + 4*diff
	}
	hf := math.Floor(30*num/diff + 0.5)
	if hf < 0 {
		hf += HueMax
	}
	if hf >= HueMax {
		hf -= HueMax
	}
	return uint8(hf), s, v
}

// Apply returns the binary mask (255 inside the band, 0 outside) of img
// against rng, and a copy of img with every pixel outside the mask zeroed.
// Wrapping hue bands are evaluated as the union of their linear sub-ranges.
// Both outputs are anchored at (0,0). Apply holds no state.
func Apply(img image.Image, rng Range) (*image.Gray, *image.RGBA) {
	src := rgbaAtOrigin(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	filtered := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return mask, filtered
	}
	parts := rng.Split()
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		frow := filtered.Pix[y*filtered.Stride : y*filtered.Stride+w*4]
		mrow := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := 0; x < w; x++ {
			i := x * 4
			r, g, bl := srow[i], srow[i+1], srow[i+2]
			hh, ss, vv := HSV(r, g, bl)
			frow[i+3] = 0xFF
			for _, p := range parts {
				if p.Contains(hh, ss, vv) {
					mrow[x] = 0xFF
					frow[i], frow[i+1], frow[i+2] = r, g, bl
					break
				}
			}
		}
	}
	return mask, filtered
}

// InRange thresholds img against a single linear band without splitting.
func InRange(img image.Image, rng Range) *image.Gray {
	src := rgbaAtOrigin(img)
	b := src.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*src.Stride + x*4
			hh, ss, vv := HSV(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			if rng.Contains(hh, ss, vv) {
				mask.Pix[y*mask.Stride+x] = 0xFF
			}
		}
	}
	return mask
}

// Union ORs masks of identical size into a new mask.
func Union(masks ...*image.Gray) *image.Gray {
	if len(masks) == 0 {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	out := image.NewGray(masks[0].Bounds())
	for _, m := range masks {
		for i, v := range m.Pix {
			if v != 0 {
				out.Pix[i] = 0xFF
			}
		}
	}
	return out
}

// rgbaAtOrigin returns img as an *image.RGBA with Min at (0,0), copying
// only when img is of another type or offset.
func rgbaAtOrigin(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	if rgba, ok := img.(*image.RGBA); ok {
		b := rgba.Bounds()
		out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	// imaging.Clone yields un-premultiplied NRGBA at origin; channel bytes line
	// up with RGBA for the RGB part, and alpha is dropped.
	n := imaging.Clone(img)
	out := &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xFF
	}
	return out
}
