//go:build !windows

package action

import (
	"errors"
	"image"
)

// Click is only implemented on Windows.
func Click(image.Point) error {
	return errors.ErrUnsupported
}
