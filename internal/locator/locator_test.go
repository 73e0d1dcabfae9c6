package locator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/testutil"
)

func newLocator(sys *testutil.FakeSystem) *Locator {
	return New(logger.NewNoOpLogger(), sys, sys)
}

func TestFindProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sys     *testutil.FakeSystem
		query   string
		wantPid uint32
		wantErr error
	}{
		{
			name:    "exact match",
			sys:     testutil.NewFakeSystem().WithProcess(10, "explorer.exe").WithProcess(42, "StarEra.exe"),
			query:   "StarEra.exe",
			wantPid: 42,
		},
		{
			name:    "case insensitive",
			sys:     testutil.NewFakeSystem().WithProcess(42, "STARERA.EXE"),
			query:   "StarEra.exe",
			wantPid: 42,
		},
		{
			name:    "first match wins",
			sys:     testutil.NewFakeSystem().WithProcess(7, "StarEra.exe").WithProcess(8, "starera.exe"),
			query:   "StarEra.exe",
			wantPid: 7,
		},
		{
			name:    "prefix is not a match",
			sys:     testutil.NewFakeSystem().WithProcess(7, "StarEra.exe.bak"),
			query:   "StarEra.exe",
			wantErr: ErrProcessNotFound,
		},
		{
			name:    "not running",
			sys:     testutil.NewFakeSystem(),
			query:   "StarEra.exe",
			wantErr: ErrProcessNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pid, err := newLocator(tt.sys).FindProcess(tt.query)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrDiscovery)
				assert.Zero(t, pid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPid, pid)
		})
	}
}

func TestFindProcess_SnapshotFailure(t *testing.T) {
	t.Parallel()

	sys := testutil.NewFakeSystem()
	sys.ListErr = errors.New("access denied")

	_, err := newLocator(sys).FindProcess("StarEra.exe")

	require.ErrorIs(t, err, ErrProcessNotFound)
	assert.ErrorContains(t, err, "access denied")
}

func TestFindWindow(t *testing.T) {
	t.Parallel()

	t.Run("filters by owner and exact class", func(t *testing.T) {
		t.Parallel()

		sys := testutil.NewFakeSystem().
			WithWindow(0x100, 99, "UnityWndClass").
			WithWindow(0x200, 42, "ConsoleWindowClass").
			WithWindow(0x300, 42, "unitywndclass").
			WithWindow(0x400, 42, "UnityWndClass")

		hwnd, err := newLocator(sys).FindWindow(42, "UnityWndClass")

		require.NoError(t, err)
		assert.Equal(t, uintptr(0x400), hwnd)
	})

	t.Run("stops on first hit", func(t *testing.T) {
		t.Parallel()

		sys := testutil.NewFakeSystem().
			WithWindow(0x100, 42, "UnityWndClass").
			WithWindow(0x200, 42, "UnityWndClass").
			WithWindow(0x300, 42, "Other")

		hwnd, err := newLocator(sys).FindWindow(42, "UnityWndClass")

		require.NoError(t, err)
		assert.Equal(t, uintptr(0x100), hwnd)
		assert.Equal(t, []uintptr{0x100}, sys.EnumVisited)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		sys := testutil.NewFakeSystem().WithWindow(0x100, 42, "Other")

		hwnd, err := newLocator(sys).FindWindow(42, "UnityWndClass")

		require.ErrorIs(t, err, ErrWindowNotFound)
		assert.ErrorIs(t, err, ErrDiscovery)
		assert.Zero(t, hwnd)
	})
}

func TestLocate(t *testing.T) {
	t.Parallel()

	sys := testutil.NewFakeSystem().
		WithProcess(42, "StarEra.exe").
		WithWindow(0x1234, 42, "UnityWndClass")

	pid, hwnd, err := newLocator(sys).Locate("starera.exe", "UnityWndClass")

	require.NoError(t, err)
	assert.Equal(t, uint32(42), pid)
	assert.Equal(t, uintptr(0x1234), hwnd)

	_, _, err = newLocator(sys).Locate("starera.exe", "Missing")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestPidOf(t *testing.T) {
	t.Parallel()

	sys := testutil.NewFakeSystem().WithWindow(0x1234, 42, "UnityWndClass")

	pid, err := newLocator(sys).PidOf(0x1234)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), pid)

	_, err = newLocator(sys).PidOf(0x9999)
	assert.ErrorIs(t, err, ErrWindowNotFound)
}
