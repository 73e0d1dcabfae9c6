// Package interfaces defines core interfaces for dependency injection and testing.
package interfaces

import (
	"time"

	"github.com/Norgate-AV/hookctl/internal/windows"
)

// ProcessLister enumerates running processes
type ProcessLister interface {
	Processes() ([]windows.ProcessEntry, error)
}

// WindowEnumerator walks top-level windows and reads their ownership
type WindowEnumerator interface {
	EnumWindows(visit func(hwnd uintptr) bool) error
	WindowPid(hwnd uintptr) uint32
	ClassName(hwnd uintptr) string
}

// RemoteProcess covers everything needed to load a library into another
// process and to check on it afterwards.
type RemoteProcess interface {
	Modules(pid uint32) ([]windows.ModuleEntry, error)
	OpenProcess(pid uint32, access uint32) (uintptr, error)
	CloseHandle(h uintptr) error
	ProcessExitCode(process uintptr) (uint32, error)
	AllocRemote(process uintptr, size int) (uintptr, error)
	WriteRemote(process uintptr, addr uintptr, data []byte) error
	FreeRemote(process uintptr, addr uintptr) error
	LoaderEntryPoint() (uintptr, error)
	CreateRemoteThread(process uintptr, start uintptr, arg uintptr) (uintptr, error)
	Wait(object uintptr, timeout time.Duration) (windows.WaitResult, error)
	ThreadExitCode(thread uintptr) (uint32, error)
}

// SharedMemory opens named mappings
type SharedMemory interface {
	OpenMapping(name string, size int) (windows.Region, error)
}

// MessagePoster queues window messages without waiting for them
type MessagePoster interface {
	PostMessage(hwnd uintptr, msg uint32, wparam, lparam uintptr) error
}

// ScreencapProvider creates capture sources for a window
type ScreencapProvider interface {
	NewScreencap(hwnd uintptr) (windows.Capturer, error)
}

// Sleeper pauses the calling goroutine
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps on the wall clock
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
