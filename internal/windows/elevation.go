//go:build windows

package windows

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// IsElevated reports whether this process runs with an elevated token.
// Opening another user's or a higher-integrity game process needs it.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// RelaunchAsAdmin starts this executable again through the UAC prompt with
// the same arguments.
func RelaunchAsAdmin() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Check if running via 'go run' (exe will be in temp dir)
	if strings.Contains(exe, "go-build") {
		return fmt.Errorf("cannot relaunch when run via 'go run', please build the executable first with: go build -o hookctl.exe")
	}

	quoted := make([]string, 0, len(os.Args)-1)
	for _, arg := range os.Args[1:] {
		quoted = append(quoted, syscall.EscapeArg(arg))
	}

	verb, _ := windows.UTF16PtrFromString("runas")
	file, _ := windows.UTF16PtrFromString(exe)
	args, _ := windows.UTF16PtrFromString(strings.Join(quoted, " "))

	return windows.ShellExecute(0, verb, file, args, nil, windows.SW_SHOWNORMAL)
}
