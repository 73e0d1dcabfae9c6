//go:build windows

package windows

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// AllocRemote commits a read/write buffer of size bytes in another process.
func (w *WindowsAPI) AllocRemote(process uintptr, size int) (uintptr, error) {
	addr, _, err := procVirtualAllocEx.Call(
		process,
		0,
		uintptr(size),
		MEM_COMMIT|MEM_RESERVE,
		PAGE_READWRITE,
	)
	if addr == 0 {
		return 0, err
	}

	return addr, nil
}

// WriteRemote copies data into another process at addr.
func (w *WindowsAPI) WriteRemote(process uintptr, addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var written uintptr
	if err := windows.WriteProcessMemory(windows.Handle(process), addr, &data[0], uintptr(len(data)), &written); err != nil {
		return err
	}

	if written != uintptr(len(data)) {
		return fmt.Errorf("short write: %d of %d bytes", written, len(data))
	}

	return nil
}

// FreeRemote releases a buffer allocated by AllocRemote.
func (w *WindowsAPI) FreeRemote(process uintptr, addr uintptr) error {
	ret, _, err := procVirtualFreeEx.Call(process, addr, 0, MEM_RELEASE)
	if ret == 0 {
		return err
	}

	return nil
}

// LoaderEntryPoint resolves LoadLibraryW from this process's kernel32.
// kernel32 is mapped at the same base in every process of a session, so the
// address is valid as a thread start routine in the target too.
func (w *WindowsAPI) LoaderEntryPoint() (uintptr, error) {
	if err := kernel32.Load(); err != nil {
		return 0, err
	}

	return windows.GetProcAddress(windows.Handle(kernel32.Handle()), "LoadLibraryW")
}

// CreateRemoteThread starts a thread in process at start with a single argument.
func (w *WindowsAPI) CreateRemoteThread(process uintptr, start uintptr, arg uintptr) (uintptr, error) {
	thread, _, err := procCreateRemoteThread.Call(process, 0, 0, start, arg, 0, 0)
	if thread == 0 {
		return 0, err
	}

	return thread, nil
}

// Wait blocks until the object is signaled or timeout elapses.
func (w *WindowsAPI) Wait(object uintptr, timeout time.Duration) (WaitResult, error) {
	event, err := windows.WaitForSingleObject(windows.Handle(object), millis(timeout))

	switch event {
	case waitObject0:
		return WaitSignaled, nil
	case waitTimeout:
		return WaitTimedOut, nil
	}

	if err == nil {
		err = fmt.Errorf("unexpected wait result 0x%x", event)
	}

	return WaitTimedOut, err
}

// ThreadExitCode returns the exit code of a finished thread. For a loader
// thread this is the low 32 bits of the returned module handle.
func (w *WindowsAPI) ThreadExitCode(thread uintptr) (uint32, error) {
	var code uint32

	ret, _, err := procGetExitCodeThread.Call(thread, uintptr(unsafe.Pointer(&code)))
	if ret == 0 {
		return 0, err
	}

	return code, nil
}
