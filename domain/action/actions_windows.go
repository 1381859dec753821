//go:build windows

package action

import (
	"image"
	"time"

	"golang.org/x/sys/windows"
)

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	procMouseEvent = user32.NewProc("mouse_event")
	procSetCursor  = user32.NewProc("SetCursorPos")
)

const (
	mouseEventLeftDown = 0x0002
	mouseEventLeftUp   = 0x0004
)

// MoveCursor moves the OS mouse pointer to (x, y).
// Windows implementation using SetCursorPos.
func MoveCursor(x, y int) {
	_, _, _ = procSetCursor.Call(uintptr(x), uintptr(y))
}

// ClickLeft sends a left mouse button click (down then up) at the current
// cursor position.
func ClickLeft() {
	_, _, _ = procMouseEvent.Call(mouseEventLeftDown, 0, 0, 0, 0)
	time.Sleep(30 * time.Millisecond)
	_, _, _ = procMouseEvent.Call(mouseEventLeftUp, 0, 0, 0, 0)
}

// Click moves the cursor to p in screen coordinates and left-clicks.
func Click(p image.Point) error {
	if err := procSetCursor.Find(); err != nil {
		return err
	}
	MoveCursor(p.X, p.Y)
	time.Sleep(20 * time.Millisecond)
	ClickLeft()
	return nil
}
