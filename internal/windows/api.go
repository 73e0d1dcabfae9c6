//go:build windows

package windows

import (
	"log/slog"

	"golang.org/x/sys/windows"

	"github.com/Norgate-AV/hookctl/internal/logger"
)

// Procs that golang.org/x/sys/windows does not wrap.
var (
	kernel32                         = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx               = kernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx                = kernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread           = kernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread            = kernel32.NewProc("GetExitCodeThread")
	procSetConsoleCtrlHandler        = kernel32.NewProc("SetConsoleCtrlHandler")
	user32                           = windows.NewLazySystemDLL("user32.dll")
	procPostMessageW                 = user32.NewProc("PostMessageW")
	procIsWindow                     = user32.NewProc("IsWindow")
	procGetClientRect                = user32.NewProc("GetClientRect")
	procGetDC                        = user32.NewProc("GetDC")
	procReleaseDC                    = user32.NewProc("ReleaseDC")
	procPrintWindow                  = user32.NewProc("PrintWindow")
	procSetThreadDpiAwarenessContext = user32.NewProc("SetThreadDpiAwarenessContext")
	gdi32                            = windows.NewLazySystemDLL("gdi32.dll")
	procCreateCompatibleDC           = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap       = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject                 = gdi32.NewProc("SelectObject")
	procGetDIBits                    = gdi32.NewProc("GetDIBits")
	procDeleteObject                 = gdi32.NewProc("DeleteObject")
	procDeleteDC                     = gdi32.NewProc("DeleteDC")
)

const (
	MEM_COMMIT     = 0x1000
	MEM_RESERVE    = 0x2000
	MEM_RELEASE    = 0x8000
	PAGE_READWRITE = 0x04

	waitObject0 = 0x00000000
	waitTimeout = 0x00000102

	// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2 is the pseudo handle (-4)
	dpiAwarenessPerMonitorV2 = ^uintptr(3)
)

// WindowsAPI is the concrete implementation of every OS seam in the
// interfaces package, backed by Win32.
type WindowsAPI struct {
	log logger.LoggerInterface
}

// NewWindowsAPI creates a new WindowsAPI with the provided logger
func NewWindowsAPI(log logger.LoggerInterface) *WindowsAPI {
	return &WindowsAPI{log: log.With("win32")}
}

// closeHandle closes h and logs a leak instead of failing the caller.
func (w *WindowsAPI) closeHandle(h windows.Handle, what string) {
	if h == 0 || h == windows.InvalidHandle {
		return
	}

	if err := windows.CloseHandle(h); err != nil {
		w.log.Debug("CloseHandle failed", slog.String("handle", what), slog.Any("error", err))
	}
}
