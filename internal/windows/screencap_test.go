//go:build windows

package windows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/hookctl/internal/logger"
)

func TestWindowCapture_CopiesEveryLine(t *testing.T) {
	api := NewWindowsAPI(logger.NewNoOpLogger())

	var (
		frame Frame
		found bool
	)

	require.NoError(t, api.EnumWindows(func(hwnd uintptr) bool {
		capture, err := api.NewScreencap(hwnd)
		if err != nil {
			return true
		}
		defer func() { _ = capture.Close() }()

		f, err := capture.Capture()
		if err != nil {
			return true
		}

		frame, found = f, true
		return false
	}))

	if !found {
		t.Skip("No capturable window in this session")
	}

	assert.Positive(t, frame.Width)
	assert.Positive(t, frame.Height)
	assert.Len(t, frame.Pixels, frame.Width*frame.Height*4)
}

func TestNewScreencap_MissingWindow(t *testing.T) {
	api := NewWindowsAPI(logger.NewNoOpLogger())

	_, err := api.NewScreencap(0)
	assert.Error(t, err)
}
