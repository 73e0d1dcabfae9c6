//go:build windows

package windows

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MappedRegion is a view of a named, pagefile-backed file mapping.
type MappedRegion struct {
	api     *WindowsAPI
	name    string
	mapping windows.Handle
	view    uintptr
	size    int
}

// OpenMapping creates the named mapping, or opens it when another process
// (or an earlier call) already created it, and maps a read/write view of size bytes.
func (w *WindowsAPI) OpenMapping(name string, size int) (Region, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping name %q: %w", name, err)
	}

	// CreateFileMapping returns the existing object (with ERROR_ALREADY_EXISTS)
	// when the name is taken, which is what makes Init idempotent.
	mapping, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), namePtr)
	if mapping == 0 {
		return nil, fmt.Errorf("CreateFileMapping %q failed: %w", name, err)
	}

	if err == windows.ERROR_ALREADY_EXISTS {
		w.log.Debug("Opened existing mapping", slog.String("name", name))
	}

	view, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		w.closeHandle(mapping, "file mapping")
		return nil, fmt.Errorf("MapViewOfFile %q failed: %w", name, err)
	}

	return &MappedRegion{api: w, name: name, mapping: mapping, view: view, size: size}, nil
}

// Addr returns the base of the mapped view.
func (r *MappedRegion) Addr() unsafe.Pointer {
	return unsafe.Pointer(r.view) //nolint:govet // view is a mapped address, not Go memory
}

// Close unmaps the view and releases the mapping handle.
func (r *MappedRegion) Close() error {
	var err error

	if r.view != 0 {
		err = windows.UnmapViewOfFile(r.view)
		r.view = 0
	}

	r.api.closeHandle(r.mapping, "file mapping "+r.name)
	r.mapping = 0

	return err
}
