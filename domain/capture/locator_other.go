//go:build !windows

package capture

import "image"

// DefaultLocator returns the platform's window locator. Only Windows has a
// process-aware backend; elsewhere the window must be pinned in config.
func DefaultLocator() Locator { return noLocator{} }

type noLocator struct{}

func (noLocator) FindWindow(string) (Handle, bool) { return 0, false }

func (noLocator) ClientRect(Handle) (image.Rectangle, error) {
	return image.Rectangle{}, ErrStaleHandle
}
