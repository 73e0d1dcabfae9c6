// Package injector loads the hook library into the target process through a
// remote LoadLibraryW thread.
package injector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/Norgate-AV/hookctl/internal/interfaces"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/timeouts"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

var (
	// ErrInjection is the kind shared by every failure of a single Inject call.
	ErrInjection = errors.New("injection failed")

	ErrLibraryMissing = fmt.Errorf("%w: library file not found", ErrInjection)
	ErrOpenProcess    = fmt.Errorf("%w: cannot open target process", ErrInjection)
	ErrRemoteAlloc    = fmt.Errorf("%w: remote allocation failed", ErrInjection)
	ErrRemoteWrite    = fmt.Errorf("%w: remote write failed", ErrInjection)
	ErrEntryPoint     = fmt.Errorf("%w: cannot resolve LoadLibraryW", ErrInjection)
	ErrCreateThread   = fmt.Errorf("%w: remote thread creation failed", ErrInjection)
	ErrWaitTimeout    = fmt.Errorf("%w: remote thread did not finish", ErrInjection)
	ErrLoadFailed     = fmt.Errorf("%w: LoadLibraryW returned NULL", ErrInjection)

	// ErrProcessDead means the owning process has exited; the caller must
	// rediscover a new process rather than retry.
	ErrProcessDead = errors.New("target process is not running")
)

// Injector tracks one library and the process it should be loaded in.
// The injected flag is only a cache and is re-verified against the live
// module list before it is trusted.
type Injector struct {
	log      logger.LoggerInterface
	remote   interfaces.RemoteProcess
	pid      uint32
	path     string
	injected bool
}

func New(log logger.LoggerInterface, remote interfaces.RemoteProcess, pid uint32, path string) *Injector {
	return &Injector{
		log:    log.With("injector"),
		remote: remote,
		pid:    pid,
		path:   path,
	}
}

func (i *Injector) Pid() uint32 {
	return i.pid
}

func (i *Injector) Path() string {
	return i.path
}

// SetPid retargets the injector and drops the injected flag.
func (i *Injector) SetPid(pid uint32) {
	i.log.Debug("Retargeting", slog.Uint64("old_pid", uint64(i.pid)), slog.Uint64("pid", uint64(pid)))
	i.pid = pid
	i.injected = false
}

// IsLoaded reports whether a module named module is loaded in pid.
func (i *Injector) IsLoaded(pid uint32, module string) bool {
	modules, err := i.remote.Modules(pid)
	if err != nil {
		i.log.Debug("Module snapshot failed", slog.Uint64("pid", uint64(pid)), slog.Any("error", err))
		return false
	}

	for _, m := range modules {
		if strings.EqualFold(m.Name, module) {
			return true
		}
	}

	return false
}

// IsInjected reports whether the library was injected and is still loaded.
func (i *Injector) IsInjected() bool {
	if !i.injected {
		return false
	}

	if !i.IsLoaded(i.pid, moduleName(i.path)) {
		i.injected = false
	}

	return i.injected
}

// IsProcessAlive opens the owning process with query rights and checks that
// it has not reported an exit code.
func (i *Injector) IsProcessAlive() bool {
	if i.pid == 0 {
		return false
	}

	process, err := i.remote.OpenProcess(i.pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		i.log.Debug("OpenProcess for liveness failed", slog.Uint64("pid", uint64(i.pid)), slog.Any("error", err))
		return false
	}
	defer i.closeHandle(process, "process")

	code, err := i.remote.ProcessExitCode(process)
	if err != nil {
		i.log.Debug("GetExitCodeProcess failed", slog.Uint64("pid", uint64(i.pid)), slog.Any("error", err))
		return false
	}

	return code == windows.STILL_ACTIVE
}

// EnsureInjected makes sure the library is loaded in a live owning process.
// A dead process clears the injected flag and returns ErrProcessDead.
func (i *Injector) EnsureInjected() error {
	if !i.IsProcessAlive() {
		i.injected = false
		return fmt.Errorf("%w: pid %d", ErrProcessDead, i.pid)
	}

	if i.IsInjected() {
		return nil
	}

	return i.Inject()
}

// Inject loads the library into the owning process. A library that is already
// loaded is left alone. Every handle and the remote path buffer are released
// before returning, whatever the outcome.
func (i *Injector) Inject() error {
	name := moduleName(i.path)
	pid := slog.Uint64("pid", uint64(i.pid))

	if i.IsLoaded(i.pid, name) {
		i.log.Debug("Library already loaded", pid, slog.String("module", name))
		i.injected = true
		return nil
	}

	if _, err := os.Stat(i.path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLibraryMissing, i.path, err)
	}

	i.log.Info("Injecting library", pid, slog.String("path", i.path))

	process, err := i.remote.OpenProcess(i.pid, windows.InjectAccess)
	if err != nil {
		i.log.Warn("OpenProcess failed, the target usually needs an elevated controller", pid, slog.Any("error", err))
		return fmt.Errorf("%w: pid %d: %w", ErrOpenProcess, i.pid, err)
	}
	defer i.closeHandle(process, "process")

	payload := encodePath(i.path)

	remote, err := i.remote.AllocRemote(process, len(payload))
	if err != nil {
		return fmt.Errorf("%w: %d bytes: %w", ErrRemoteAlloc, len(payload), err)
	}
	defer func() {
		if err := i.remote.FreeRemote(process, remote); err != nil {
			i.log.Debug("VirtualFreeEx failed", pid, slog.Any("error", err))
		}
	}()

	if err := i.remote.WriteRemote(process, remote, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}

	entry, err := i.remote.LoaderEntryPoint()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEntryPoint, err)
	}

	thread, err := i.remote.CreateRemoteThread(process, entry, remote)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateThread, err)
	}
	defer i.closeHandle(thread, "thread")

	result, err := i.remote.Wait(thread, timeouts.RemoteThreadTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWaitTimeout, err)
	}

	if result != windows.WaitSignaled {
		return fmt.Errorf("%w: after %s", ErrWaitTimeout, timeouts.RemoteThreadTimeout)
	}

	module, err := i.remote.ThreadExitCode(thread)
	if err != nil {
		return fmt.Errorf("%w: reading exit code: %w", ErrLoadFailed, err)
	}

	if module == 0 {
		return ErrLoadFailed
	}

	i.injected = true
	i.log.Info("Library injected", pid, slog.String("module_handle", fmt.Sprintf("0x%08X", module)))

	return nil
}

func (i *Injector) closeHandle(h uintptr, what string) {
	if err := i.remote.CloseHandle(h); err != nil {
		i.log.Debug("CloseHandle failed", slog.String("handle", what), slog.Any("error", err))
	}
}

// DefaultLibraryPath places fileName next to the module returned by executable.
func DefaultLibraryPath(executable func() (string, error), fileName string) (string, error) {
	self, err := executable()
	if err != nil {
		return "", fmt.Errorf("cannot resolve own module path: %w", err)
	}

	return filepath.Join(filepath.Dir(self), fileName), nil
}

// moduleName returns the file name part of a Windows or slash separated path.
func moduleName(path string) string {
	return path[strings.LastIndexAny(path, `\/`)+1:]
}

// encodePath returns path as NUL-terminated little-endian UTF-16, the
// argument layout LoadLibraryW expects.
func encodePath(path string) []byte {
	units := utf16.Encode([]rune(path))
	buf := make([]byte, (len(units)+1)*2)

	for n, u := range units {
		binary.LittleEndian.PutUint16(buf[n*2:], u)
	}

	return buf
}
