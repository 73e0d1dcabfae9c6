package windows

import (
	"errors"
	"time"
	"unsafe"
)

// ErrUnsupported is returned by every OS primitive on platforms other than Windows.
var ErrUnsupported = errors.New("operation requires Windows")

// Process access rights
const (
	PROCESS_CREATE_THREAD             = 0x0002
	PROCESS_VM_OPERATION              = 0x0008
	PROCESS_VM_READ                   = 0x0010
	PROCESS_VM_WRITE                  = 0x0020
	PROCESS_QUERY_INFORMATION         = 0x0400
	PROCESS_QUERY_LIMITED_INFORMATION = 0x1000

	// InjectAccess is the minimum set of rights needed to allocate, write and
	// start a thread in another process.
	InjectAccess = PROCESS_CREATE_THREAD | PROCESS_QUERY_INFORMATION |
		PROCESS_VM_OPERATION | PROCESS_VM_WRITE | PROCESS_VM_READ

	// STILL_ACTIVE is the exit code reported for a process that has not exited.
	STILL_ACTIVE = 259
)

// Window messages and their parameters
const (
	WM_ACTIVATE    = 0x0006
	WM_MOUSEMOVE   = 0x0200
	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202

	WA_ACTIVE  = 1
	MK_LBUTTON = 0x0001
)

const MAX_PATH = 260

// ProcessEntry is one row of a process snapshot.
type ProcessEntry struct {
	Pid     uint32
	ExeName string
}

// ModuleEntry is one module loaded in a process.
type ModuleEntry struct {
	Name string
	Path string
}

// Frame is a captured window image: 4 bytes per pixel in B,G,R,A order,
// row-major, top-down, no row padding.
type Frame struct {
	Pixels []byte
	Width  int
	Height int
}

// Region is a mapped view of named shared memory.
type Region interface {
	Addr() unsafe.Pointer
	Close() error
}

// Capturer produces frames of a single window.
type Capturer interface {
	Capture() (Frame, error)
	Close() error
}

// Message is a single posted window message, kept for logging and tests.
type Message struct {
	Hwnd   uintptr
	Msg    uint32
	WParam uintptr
	LParam uintptr
}

// MakeLParam packs client-area coordinates the way MAKELPARAM does: the low
// word holds x, the high word holds y, each truncated to 16 bits.
func MakeLParam(x, y int32) uintptr {
	return uintptr(uint32(uint16(x)) | uint32(uint16(y))<<16)
}

// SplitLParam reverses MakeLParam, sign-extending each word.
func SplitLParam(lparam uintptr) (x, y int32) {
	return int32(int16(uint16(lparam))), int32(int16(uint16(lparam >> 16)))
}

// MessageName returns a readable name for the messages this tool posts.
func MessageName(msg uint32) string {
	switch msg {
	case WM_ACTIVATE:
		return "WM_ACTIVATE"
	case WM_MOUSEMOVE:
		return "WM_MOUSEMOVE"
	case WM_LBUTTONDOWN:
		return "WM_LBUTTONDOWN"
	case WM_LBUTTONUP:
		return "WM_LBUTTONUP"
	default:
		return "UNKNOWN"
	}
}

// WaitResult is the outcome of waiting on a kernel object.
type WaitResult int

const (
	WaitSignaled WaitResult = iota
	WaitTimedOut
)

// millis converts a timeout to the DWORD milliseconds Win32 waits expect.
func millis(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}

	return uint32(d / time.Millisecond)
}

// Console control event types
const (
	CTRL_C_EVENT        = 0
	CTRL_BREAK_EVENT    = 1
	CTRL_CLOSE_EVENT    = 2
	CTRL_LOGOFF_EVENT   = 5
	CTRL_SHUTDOWN_EVENT = 6
)

// GetCtrlTypeName returns a human-readable name for a control event type
func GetCtrlTypeName(ctrlType uint32) string {
	switch ctrlType {
	case CTRL_C_EVENT:
		return "CTRL_C"
	case CTRL_BREAK_EVENT:
		return "CTRL_BREAK"
	case CTRL_CLOSE_EVENT:
		return "CTRL_CLOSE"
	case CTRL_LOGOFF_EVENT:
		return "CTRL_LOGOFF"
	case CTRL_SHUTDOWN_EVENT:
		return "CTRL_SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}
