// Package template holds reference images used by the matcher: the colour
// pixels, a grayscale variant and, for images with transparent pixels, a
// binary mask of the pixels that take part in scoring.
package template

import (
	"image"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// Template is immutable once built.
type Template struct {
	Name  string
	Path  string
	Color *image.RGBA
	Gray  *image.Gray
	// Mask is nil unless the source had at least one fully transparent
	// pixel. Non-zero entries are foreground.
	Mask *image.Gray
	// Hash is a perceptual hash of the colour image; nil if hashing failed.
	Hash *goimagehash.ImageHash
}

// Size returns the template's width and height.
func (t *Template) Size() image.Point {
	return t.Color.Bounds().Size()
}

// NormalizeName maps a template name or file stem to its catalog key.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// FromImage wraps img as a template. It is used for catalog entries and for
// ad-hoc raw images passed straight to the matcher.
func FromImage(name string, img image.Image) *Template {
	n := imaging.Clone(img)
	b := n.Bounds()
	w, h := b.Dx(), b.Dy()

	col := image.NewRGBA(image.Rect(0, 0, w, h))
	minAlpha := uint8(0xFF)
	for i := 0; i < len(n.Pix); i += 4 {
		col.Pix[i] = n.Pix[i]
		col.Pix[i+1] = n.Pix[i+1]
		col.Pix[i+2] = n.Pix[i+2]
		col.Pix[i+3] = 0xFF
		if a := n.Pix[i+3]; a < minAlpha {
			minAlpha = a
		}
	}

	var mask *image.Gray
	if minAlpha == 0 && w > 0 && h > 0 {
		mask = image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			if n.Pix[i*4+3] >= 1 {
				mask.Pix[i] = 0xFF
			}
		}
	}

	t := &Template{
		Name:  NormalizeName(name),
		Color: col,
		Gray:  ToGray(col),
		Mask:  mask,
	}
	if w > 0 && h > 0 {
		if hash, err := goimagehash.PerceptionHash(col); err == nil {
			t.Hash = hash
		}
	}
	return t
}

// ToRGBA returns an opaque copy of img anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	n := imaging.Clone(img)
	out := &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xFF
	}
	return out
}

// ToGray converts img to 8-bit luma with imaging's weights
// (0.299R + 0.587G + 0.114B), anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := range out.Pix {
		out.Pix[i] = g.Pix[i*4]
	}
	return out
}
