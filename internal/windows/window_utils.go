//go:build windows

package windows

import (
	"log/slog"
	"sync"

	"golang.org/x/sys/windows"
)

var (
	// enumMu serializes EnumWindows so the single callback below always
	// dispatches to the visitor of the enumeration in progress.
	enumMu      sync.Mutex
	enumVisitor func(hwnd uintptr) bool
	enumOnce    sync.Once
	enumThunk   uintptr
)

// enumWindowsCallback forwards to the active visitor; returning 0 stops EnumWindows.
func enumWindowsCallback(hwnd uintptr, _ uintptr) uintptr {
	if enumVisitor != nil && !enumVisitor(hwnd) {
		return 0
	}

	return 1
}

// EnumWindows calls visit for each top-level window in z-order until visit
// returns false.
func (w *WindowsAPI) EnumWindows(visit func(hwnd uintptr) bool) error {
	// NewCallback slots are never freed, so one thunk is shared by all calls
	enumOnce.Do(func() {
		enumThunk = windows.NewCallback(enumWindowsCallback)
	})

	enumMu.Lock()
	defer enumMu.Unlock()

	stopped := false
	enumVisitor = func(hwnd uintptr) bool {
		if !visit(hwnd) {
			stopped = true
			return false
		}
		return true
	}
	defer func() { enumVisitor = nil }()

	err := windows.EnumWindows(enumThunk, nil)
	if stopped {
		// EnumWindows reports failure when the callback ends it early
		return nil
	}

	return err
}

// ClassName retrieves the window class name of hwnd.
func (w *WindowsAPI) ClassName(hwnd uintptr) string {
	buf := make([]uint16, 256)

	n, err := windows.GetClassName(windows.HWND(hwnd), &buf[0], int32(len(buf)))
	if err != nil || n == 0 {
		return ""
	}

	return windows.UTF16ToString(buf[:n])
}

// WindowPid retrieves the id of the process that owns hwnd, or 0.
func (w *WindowsAPI) WindowPid(hwnd uintptr) uint32 {
	var pid uint32

	if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid); err != nil {
		w.log.Debug("GetWindowThreadProcessId failed", slog.Uint64("hwnd", uint64(hwnd)), slog.Any("error", err))
		return 0
	}

	return pid
}

// IsWindow checks if a window handle is valid
func (w *WindowsAPI) IsWindow(hwnd uintptr) bool {
	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

// PostMessage queues msg on the thread owning hwnd and returns immediately.
func (w *WindowsAPI) PostMessage(hwnd uintptr, msg uint32, wparam, lparam uintptr) error {
	ret, _, err := procPostMessageW.Call(hwnd, uintptr(msg), wparam, lparam)
	if ret == 0 {
		return err
	}

	w.log.Trace("Posted message",
		slog.String("msg", MessageName(msg)),
		slog.Uint64("hwnd", uint64(hwnd)),
		slog.Uint64("wparam", uint64(wparam)),
		slog.Uint64("lparam", uint64(lparam)),
	)

	return nil
}

// EnableDpiAwareness switches the calling thread to per-monitor v2 DPI
// awareness so window APIs report physical pixels.
func (w *WindowsAPI) EnableDpiAwareness() error {
	if err := procSetThreadDpiAwarenessContext.Find(); err != nil {
		return err
	}

	ret, _, err := procSetThreadDpiAwarenessContext.Call(dpiAwarenessPerMonitorV2)
	if ret == 0 {
		return err
	}

	return nil
}
