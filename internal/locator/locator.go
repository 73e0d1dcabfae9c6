// Package locator finds the target process and its top-level window.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Norgate-AV/hookctl/internal/interfaces"
	"github.com/Norgate-AV/hookctl/internal/logger"
)

var (
	// ErrDiscovery is the kind shared by every lookup failure.
	ErrDiscovery = errors.New("discovery failed")

	ErrProcessNotFound = fmt.Errorf("%w: process not found", ErrDiscovery)
	ErrWindowNotFound  = fmt.Errorf("%w: window not found", ErrDiscovery)
)

// Locator resolves executable names to process ids and process ids to windows.
// It performs a single pass per call and never retries.
type Locator struct {
	log       logger.LoggerInterface
	processes interfaces.ProcessLister
	windows   interfaces.WindowEnumerator
}

func New(log logger.LoggerInterface, processes interfaces.ProcessLister, windows interfaces.WindowEnumerator) *Locator {
	return &Locator{
		log:       log.With("locator"),
		processes: processes,
		windows:   windows,
	}
}

// FindProcess returns the first running process whose executable name matches
// name case-insensitively. Enumeration order decides between duplicates.
func (l *Locator) FindProcess(name string) (uint32, error) {
	entries, err := l.processes.Processes()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrProcessNotFound, name, err)
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.ExeName, name) {
			l.log.Debug("Found process", slog.String("name", entry.ExeName), slog.Uint64("pid", uint64(entry.Pid)))
			return entry.Pid, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

// FindWindow returns the first top-level window owned by pid whose class is
// exactly className. Enumeration stops at the first hit.
func (l *Locator) FindWindow(pid uint32, className string) (uintptr, error) {
	var found uintptr

	err := l.windows.EnumWindows(func(hwnd uintptr) bool {
		if l.windows.WindowPid(hwnd) != pid {
			return true
		}

		if l.windows.ClassName(hwnd) != className {
			return true
		}

		found = hwnd
		return false
	})

	if found != 0 {
		l.log.Debug("Found window",
			slog.Uint64("pid", uint64(pid)),
			slog.Uint64("hwnd", uint64(found)),
			slog.String("class", className),
		)
		return found, nil
	}

	if err != nil {
		return 0, fmt.Errorf("%w: pid %d class %q: %w", ErrWindowNotFound, pid, className, err)
	}

	return 0, fmt.Errorf("%w: pid %d class %q", ErrWindowNotFound, pid, className)
}

// Locate runs FindProcess then FindWindow.
func (l *Locator) Locate(processName, className string) (uint32, uintptr, error) {
	pid, err := l.FindProcess(processName)
	if err != nil {
		return 0, 0, err
	}

	hwnd, err := l.FindWindow(pid, className)
	if err != nil {
		return 0, 0, err
	}

	return pid, hwnd, nil
}

// PidOf returns the process owning hwnd.
func (l *Locator) PidOf(hwnd uintptr) (uint32, error) {
	pid := l.windows.WindowPid(hwnd)
	if pid == 0 {
		return 0, fmt.Errorf("%w: no owner for window 0x%x", ErrWindowNotFound, hwnd)
	}

	return pid, nil
}
