package capture

import (
	"image"
	"time"
)

// Frame is a published capture of the target window. Frames are never
// modified after publication and may be shared by any number of readers.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// Handle identifies a window. The zero value means "no window".
type Handle uintptr

// WindowOffset is the target window's identity and the screen-space
// geometry of its client area.
type WindowOffset struct {
	Handle Handle
	Origin image.Point
	Size   image.Point
}

// Rect returns the client area in screen coordinates.
func (w WindowOffset) Rect() image.Rectangle {
	return image.Rectangle{Min: w.Origin, Max: w.Origin.Add(w.Size)}
}

// Stats summarises capture and discovery activity.
type Stats struct {
	Captures    uint64
	CacheHits   uint64
	Failures    uint64
	Discoveries uint64
	AvgCapture  time.Duration
	LastCapture time.Time
	FrameAge    time.Duration
	Sequence    uint64
	WindowKnown bool
}
