package capture

import (
	"fmt"
	"image"
	"image/draw"

	displays "github.com/kbinani/screenshot"
	"github.com/vova616/screenshot"
)

// Grabber captures a screen rectangle.
type Grabber interface {
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// Grabber backends selectable from configuration.
const (
	BackendScreen  = "screen"
	BackendDisplay = "display"
)

// NewGrabber returns the grabber for a backend name; empty selects
// BackendScreen.
func NewGrabber(backend string) (Grabber, error) {
	switch backend {
	case "", BackendScreen:
		return ScreenGrabber{}, nil
	case BackendDisplay:
		return DisplayGrabber{}, nil
	}
	return nil, fmt.Errorf("capture: unknown grabber backend %q", backend)
}

// ScreenGrabber captures from the primary monitor. Parts of the request
// outside the monitor come back black.
type ScreenGrabber struct{}

func (ScreenGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("screen bounds: %w", err)
	}
	return clipped(rect, screen, screenshot.CaptureRect)
}

// DisplayGrabber captures across all active displays, for windows placed
// on a secondary monitor. Parts of the request outside every display come
// back black.
type DisplayGrabber struct{}

func (DisplayGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	n := displays.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	var desktop image.Rectangle
	for i := range n {
		desktop = desktop.Union(displays.GetDisplayBounds(i))
	}
	return clipped(rect, desktop, displays.CaptureRect)
}

// clipped captures the part of rect inside screen and places it in a frame
// the full size of rect, so frame-local coordinates stay relative to
// rect.Min. Off-screen pixels are opaque black.
func clipped(rect, screen image.Rectangle, capture func(image.Rectangle) (*image.RGBA, error)) (*image.RGBA, error) {
	clip := rect.Intersect(screen)
	if clip.Empty() {
		return nil, fmt.Errorf("rect %v outside screen %v", rect, screen)
	}
	img, err := capture(clip)
	if err != nil || clip == rect {
		return img, err
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Rect, image.Black, image.Point{}, draw.Src)
	draw.Draw(out, clip.Sub(rect.Min), img, img.Rect.Min, draw.Src)
	return out, nil
}

// anchor re-bases img so its bounds start at (0,0) without copying pixels.
func anchor(img *image.RGBA) *image.RGBA {
	if img.Rect.Min == (image.Point{}) {
		return img
	}
	out := *img
	out.Rect = img.Rect.Sub(img.Rect.Min)
	return &out
}
