//go:build windows

package capture

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetClientRect            = user32.NewProc("GetClientRect")
	procClientToScreen           = user32.NewProc("ClientToScreen")
)

// Callbacks created by syscall.NewCallback are never freed, so a single one
// is shared and its per-call state lives behind enumMu.
var (
	enumMu       sync.Mutex
	enumVisit    func(hwnd uintptr) bool
	enumCallback = syscall.NewCallback(func(hwnd, _ uintptr) uintptr {
		if enumVisit(hwnd) {
			return 1
		}
		return 0
	})
)

type point struct{ X, Y int32 }

// WindowsLocator enumerates top-level windows through user32.
type WindowsLocator struct{}

// DefaultLocator returns the platform's window locator.
func DefaultLocator() Locator { return WindowsLocator{} }

func (WindowsLocator) FindWindow(process string) (Handle, bool) {
	want := strings.ToLower(strings.TrimSpace(process))
	if want == "" {
		return 0, false
	}
	var found uintptr
	names := map[uint32]string{}

	enumMu.Lock()
	defer enumMu.Unlock()
	enumVisit = func(hwnd uintptr) bool {
		if vis, _, _ := procIsWindowVisible.Call(hwnd); vis == 0 {
			return true
		}
		var pid uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if pid == 0 {
			return true
		}
		name, ok := names[pid]
		if !ok {
			name = strings.ToLower(processImageName(pid))
			names[pid] = name
		}
		if name != "" && strings.Contains(name, want) {
			found = hwnd
			return false
		}
		return true
	}
	procEnumWindows.Call(enumCallback, 0)
	enumVisit = nil
	return Handle(found), found != 0
}

func (WindowsLocator) ClientRect(h Handle) (image.Rectangle, error) {
	if ok, _, _ := procIsWindow.Call(uintptr(h)); ok == 0 {
		return image.Rectangle{}, ErrStaleHandle
	}
	var rc windows.Rect
	if r, _, err := procGetClientRect.Call(uintptr(h), uintptr(unsafe.Pointer(&rc))); r == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: GetClientRect: %v", ErrStaleHandle, err)
	}
	var pt point
	if r, _, err := procClientToScreen.Call(uintptr(h), uintptr(unsafe.Pointer(&pt))); r == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: ClientToScreen: %v", ErrStaleHandle, err)
	}
	origin := image.Pt(int(pt.X), int(pt.Y))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(int(rc.Right-rc.Left), int(rc.Bottom-rc.Top)))}, nil
}

func processImageName(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)
	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return filepath.Base(windows.UTF16ToString(buf[:size]))
}
