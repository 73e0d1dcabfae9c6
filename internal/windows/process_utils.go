//go:build windows

package windows

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Processes snapshots the running processes in enumeration order.
func (w *WindowsAPI) Processes() ([]ProcessEntry, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot failed: %w", err)
	}
	defer w.closeHandle(snapshot, "process snapshot")

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var entries []ProcessEntry

	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		entries = append(entries, ProcessEntry{
			Pid:     entry.ProcessID,
			ExeName: windows.UTF16ToString(entry.ExeFile[:]),
		})
	}

	return entries, nil
}

// Modules snapshots the modules loaded in pid.
func (w *WindowsAPI) Modules(pid uint32) ([]ModuleEntry, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, fmt.Errorf("module snapshot of pid %d failed: %w", pid, err)
	}
	defer w.closeHandle(snapshot, "module snapshot")

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var modules []ModuleEntry

	for err = windows.Module32First(snapshot, &entry); err == nil; err = windows.Module32Next(snapshot, &entry) {
		modules = append(modules, ModuleEntry{
			Name: windows.UTF16ToString(entry.Module[:]),
			Path: windows.UTF16ToString(entry.ExePath[:]),
		})
	}

	return modules, nil
}

// OpenProcess opens pid with the requested access rights.
func (w *WindowsAPI) OpenProcess(pid uint32, access uint32) (uintptr, error) {
	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return 0, err
	}

	return uintptr(h), nil
}

// CloseHandle closes a handle returned by this API.
func (w *WindowsAPI) CloseHandle(h uintptr) error {
	return windows.CloseHandle(windows.Handle(h))
}

// ProcessExitCode returns the exit code of an open process handle.
// A running process reports STILL_ACTIVE.
func (w *WindowsAPI) ProcessExitCode(process uintptr) (uint32, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(windows.Handle(process), &code); err != nil {
		return 0, err
	}

	return code, nil
}

// ExecutablePath returns the full path of the module hosting this code.
func (w *WindowsAPI) ExecutablePath() (string, error) {
	var module windows.Handle

	// Resolve from an address inside this binary so a DLL build finds itself
	// rather than the host executable.
	err := windows.GetModuleHandleEx(
		windows.GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS|windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
		(*uint16)(unsafe.Pointer(&moduleAnchor)),
		&module,
	)
	if err != nil {
		w.log.Debug("GetModuleHandleEx failed, using process image", slog.Any("error", err))
		return os.Executable()
	}

	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(module, &buf[0], uint32(len(buf)))
	if err != nil {
		return "", fmt.Errorf("GetModuleFileName failed: %w", err)
	}

	return filepath.Clean(windows.UTF16ToString(buf[:n])), nil
}

var moduleAnchor byte
