package capture

import (
	"errors"
	"image"
)

var (
	// ErrWindowNotFound is returned by Grab while no target window is known.
	ErrWindowNotFound = errors.New("capture: target window not found")
	// ErrStaleHandle is returned by a Locator when a handle no longer
	// refers to a live window.
	ErrStaleHandle = errors.New("capture: window handle is no longer valid")
)

// Locator finds the target window and reads its client-area geometry.
type Locator interface {
	// FindWindow returns the first top-level window owned by a process whose
	// executable name matches process.
	FindWindow(process string) (Handle, bool)
	// ClientRect returns the client area of h in screen coordinates, or an
	// error if h is stale.
	ClientRect(h Handle) (image.Rectangle, error)
}

// StaticLocator reports a fixed client area. It is used when the window
// position is pinned in configuration and on platforms without a window
// enumeration backend.
type StaticLocator struct {
	Area image.Rectangle
}

const staticHandle Handle = 1

func (l StaticLocator) FindWindow(string) (Handle, bool) {
	return staticHandle, !l.Area.Empty()
}

func (l StaticLocator) ClientRect(h Handle) (image.Rectangle, error) {
	if h != staticHandle || l.Area.Empty() {
		return image.Rectangle{}, ErrStaleHandle
	}
	return l.Area, nil
}
