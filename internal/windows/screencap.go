//go:build windows

package windows

import (
	"fmt"
	"log/slog"
	"unsafe"
)

const (
	pwRenderFullContent = 0x00000002
	biRGB               = 0
	dibRGBColors        = 0
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// bitmapInfo carries one spare RGBQUAD as BITMAPINFO does.
type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

// WindowCapture grabs the client area of a window through PrintWindow, which
// works while the window is covered or on another desktop.
type WindowCapture struct {
	api  *WindowsAPI
	hwnd uintptr
}

// NewScreencap prepares a capture source for hwnd.
func (w *WindowsAPI) NewScreencap(hwnd uintptr) (Capturer, error) {
	if !w.IsWindow(hwnd) {
		return nil, fmt.Errorf("window 0x%x does not exist", hwnd)
	}

	if err := procPrintWindow.Find(); err != nil {
		return nil, fmt.Errorf("PrintWindow unavailable: %w", err)
	}

	return &WindowCapture{api: w, hwnd: hwnd}, nil
}

// Capture renders the window into a 32-bit top-down DIB.
func (c *WindowCapture) Capture() (Frame, error) {
	var r rect
	if ret, _, err := procGetClientRect.Call(c.hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
		return Frame{}, fmt.Errorf("GetClientRect failed: %w", err)
	}

	width, height := int(r.Right-r.Left), int(r.Bottom-r.Top)
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("window 0x%x has an empty client area (%dx%d)", c.hwnd, width, height)
	}

	screen, _, _ := procGetDC.Call(c.hwnd)
	if screen == 0 {
		return Frame{}, fmt.Errorf("GetDC failed for window 0x%x", c.hwnd)
	}
	defer procReleaseDC.Call(c.hwnd, screen) //nolint:errcheck

	memory, _, _ := procCreateCompatibleDC.Call(screen)
	if memory == 0 {
		return Frame{}, fmt.Errorf("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(memory) //nolint:errcheck

	bitmap, _, _ := procCreateCompatibleBitmap.Call(screen, uintptr(width), uintptr(height))
	if bitmap == 0 {
		return Frame{}, fmt.Errorf("CreateCompatibleBitmap failed (%dx%d)", width, height)
	}
	defer procDeleteObject.Call(bitmap) //nolint:errcheck

	previous, _, _ := procSelectObject.Call(memory, bitmap)

	if ret, _, _ := procPrintWindow.Call(c.hwnd, memory, pwRenderFullContent); ret == 0 {
		c.api.log.Debug("PrintWindow returned 0, frame may be blank", slog.Uint64("hwnd", uint64(c.hwnd)))
	}

	// GetDIBits needs the bitmap deselected
	procSelectObject.Call(memory, previous) //nolint:errcheck

	info := bitmapInfo{Header: bitmapInfoHeader{
		Width:       int32(width),
		Height:      -int32(height), // negative height requests top-down rows
		Planes:      1,
		BitCount:    32,
		Compression: biRGB,
	}}
	info.Header.Size = uint32(unsafe.Sizeof(info.Header))

	pixels := make([]byte, width*height*4)

	lines, _, _ := procGetDIBits.Call(
		memory,
		bitmap,
		0,
		uintptr(height),
		uintptr(unsafe.Pointer(&pixels[0])),
		uintptr(unsafe.Pointer(&info)),
		dibRGBColors,
	)
	if int(lines) != height {
		return Frame{}, fmt.Errorf("GetDIBits copied %d of %d lines", lines, height)
	}

	return Frame{Pixels: pixels, Width: width, Height: height}, nil
}

// Close releases the capture source. GDI objects are per-capture, so there is
// nothing held between frames.
func (c *WindowCapture) Close() error {
	c.hwnd = 0
	return nil
}
