//go:build !windows

package windows

import (
	"os"
	"time"

	"github.com/Norgate-AV/hookctl/internal/logger"
)

// WindowsAPI compiles everywhere so the core packages and their tests build on
// any host. Every primitive fails with ErrUnsupported.
type WindowsAPI struct {
	log logger.LoggerInterface
}

func NewWindowsAPI(log logger.LoggerInterface) *WindowsAPI {
	return &WindowsAPI{log: log.With("win32")}
}

func (w *WindowsAPI) Processes() ([]ProcessEntry, error) { return nil, ErrUnsupported }

func (w *WindowsAPI) Modules(pid uint32) ([]ModuleEntry, error) { return nil, ErrUnsupported }

func (w *WindowsAPI) OpenProcess(pid uint32, access uint32) (uintptr, error) {
	return 0, ErrUnsupported
}

func (w *WindowsAPI) CloseHandle(h uintptr) error { return ErrUnsupported }

func (w *WindowsAPI) ProcessExitCode(process uintptr) (uint32, error) { return 0, ErrUnsupported }

func (w *WindowsAPI) ExecutablePath() (string, error) { return os.Executable() }

func (w *WindowsAPI) AllocRemote(process uintptr, size int) (uintptr, error) {
	return 0, ErrUnsupported
}

func (w *WindowsAPI) WriteRemote(process uintptr, addr uintptr, data []byte) error {
	return ErrUnsupported
}

func (w *WindowsAPI) FreeRemote(process uintptr, addr uintptr) error { return ErrUnsupported }

func (w *WindowsAPI) LoaderEntryPoint() (uintptr, error) { return 0, ErrUnsupported }

func (w *WindowsAPI) CreateRemoteThread(process uintptr, start uintptr, arg uintptr) (uintptr, error) {
	return 0, ErrUnsupported
}

func (w *WindowsAPI) Wait(object uintptr, timeout time.Duration) (WaitResult, error) {
	return WaitTimedOut, ErrUnsupported
}

func (w *WindowsAPI) ThreadExitCode(thread uintptr) (uint32, error) { return 0, ErrUnsupported }

func (w *WindowsAPI) EnumWindows(visit func(hwnd uintptr) bool) error { return ErrUnsupported }

func (w *WindowsAPI) ClassName(hwnd uintptr) string { return "" }

func (w *WindowsAPI) WindowPid(hwnd uintptr) uint32 { return 0 }

func (w *WindowsAPI) IsWindow(hwnd uintptr) bool { return false }

func (w *WindowsAPI) PostMessage(hwnd uintptr, msg uint32, wparam, lparam uintptr) error {
	return ErrUnsupported
}

func (w *WindowsAPI) EnableDpiAwareness() error { return ErrUnsupported }

func (w *WindowsAPI) OpenMapping(name string, size int) (Region, error) { return nil, ErrUnsupported }

func (w *WindowsAPI) NewScreencap(hwnd uintptr) (Capturer, error) { return nil, ErrUnsupported }

func IsElevated() bool { return true }

func RelaunchAsAdmin() error { return ErrUnsupported }

type ConsoleCtrlHandler func(ctrlType uint32) uintptr

func SetConsoleCtrlHandler(handler ConsoleCtrlHandler) error { return ErrUnsupported }
