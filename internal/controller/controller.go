// Package controller owns the connection to the target: discovery, library
// injection, the shared control record and the screenshot source, and
// transparently rebuilds all of them when the target process restarts.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/hookctl/internal/channel"
	"github.com/Norgate-AV/hookctl/internal/injector"
	"github.com/Norgate-AV/hookctl/internal/input"
	"github.com/Norgate-AV/hookctl/internal/interfaces"
	"github.com/Norgate-AV/hookctl/internal/locator"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/timeouts"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

const (
	DefaultProcessName    = "StarEra.exe"
	DefaultWindowClass    = "UnityWndClass"
	DefaultLibraryName    = "msa_hook.dll"
	DefaultIdentityPrefix = "MSA_Controller"
)

var (
	// ErrNotConnected is returned by every operation before a successful Connect.
	ErrNotConnected = errors.New("controller is not connected")

	// ErrUnavailable wraps every failure that stops an operation before any
	// input reaches the target.
	ErrUnavailable = errors.New("hook unavailable")
)

// Options selects the target and the library to inject.
type Options struct {
	ProcessName    string
	WindowClass    string
	LibraryName    string  // file name next to this executable
	LibraryPath    string  // overrides LibraryName when set
	ChannelName    string
	IdentityPrefix string
	Hwnd           uintptr // connect to this window instead of searching
}

func (o Options) withDefaults() Options {
	if o.ProcessName == "" {
		o.ProcessName = DefaultProcessName
	}
	if o.WindowClass == "" {
		o.WindowClass = DefaultWindowClass
	}
	if o.LibraryName == "" {
		o.LibraryName = DefaultLibraryName
	}
	if o.ChannelName == "" {
		o.ChannelName = channel.DefaultName
	}
	if o.IdentityPrefix == "" {
		o.IdentityPrefix = DefaultIdentityPrefix
	}

	return o
}

// Dependencies holds all external dependencies for testing
type Dependencies struct {
	Processes  interfaces.ProcessLister
	Windows    interfaces.WindowEnumerator
	Remote     interfaces.RemoteProcess
	Memory     interfaces.SharedMemory
	Poster     interfaces.MessagePoster
	Screencap  interfaces.ScreencapProvider
	Sleeper    interfaces.Sleeper
	DpiAware   func() error
	Executable func() (string, error)
}

// Controller is the context behind one automation target. It is not safe for
// concurrent use; callers serialize operations.
type Controller struct {
	log     logger.LoggerInterface
	root    logger.LoggerInterface
	opts    Options
	deps    Dependencies
	locator *locator.Locator
	channel *channel.Channel
	engine  *input.Engine

	injector  *injector.Injector
	capture   windows.Capturer
	pid       uint32
	hwnd      uintptr
	identity  string
	connected bool
}

// New creates a Controller backed by Win32.
func New(log logger.LoggerInterface, opts Options) *Controller {
	api := windows.NewWindowsAPI(log)

	return NewWithDeps(log, opts, Dependencies{
		Processes:  api,
		Windows:    api,
		Remote:     api,
		Memory:     api,
		Poster:     api,
		Screencap:  api,
		Sleeper:    interfaces.RealSleeper{},
		DpiAware:   api.EnableDpiAwareness,
		Executable: api.ExecutablePath,
	})
}

// NewWithDeps creates a Controller with custom dependencies for testing
func NewWithDeps(log logger.LoggerInterface, opts Options, deps Dependencies) *Controller {
	opts = opts.withDefaults()
	ch := channel.New(log, deps.Memory, opts.ChannelName)

	return &Controller{
		log:     log.With("controller"),
		root:    log,
		opts:    opts,
		deps:    deps,
		locator: locator.New(log, deps.Processes, deps.Windows),
		channel: ch,
		engine:  input.New(log, ch, deps.Poster, deps.Sleeper),
	}
}

// Identity formats the identity string of a (pid, window) binding.
func Identity(prefix string, pid uint32, hwnd uintptr) string {
	return fmt.Sprintf("%s_%d_%016X", prefix, pid, uint64(hwnd))
}

func (c *Controller) Connected() bool  { return c.connected }
func (c *Controller) Pid() uint32      { return c.pid }
func (c *Controller) Hwnd() uintptr    { return c.hwnd }
func (c *Controller) Identity() string { return c.identity }

// Record reads back the shared control record.
func (c *Controller) Record() (channel.Record, error) {
	return c.channel.Record()
}

// Connect locates the target, maps the shared record, injects the library and
// attaches the screenshot source. On failure everything created by this
// attempt is released and the controller stays disconnected.
func (c *Controller) Connect() error {
	if c.connected {
		return nil
	}

	if c.deps.DpiAware != nil {
		if err := c.deps.DpiAware(); err != nil {
			c.log.Warn("Per-monitor DPI awareness unavailable, coordinates may be scaled", slog.Any("error", err))
		}
	}

	pid, hwnd, err := c.resolveTarget()
	if err != nil {
		c.log.Error("Target not found", slog.Any("error", err))
		return err
	}

	target := []any{slog.Uint64("pid", uint64(pid)), slog.Uint64("hwnd", uint64(hwnd))}
	c.log.Info("Connecting", target...)

	if err := c.bindChannel(pid, hwnd); err != nil {
		c.releaseChannel()
		return err
	}

	path, err := c.libraryPath()
	if err != nil {
		c.releaseChannel()
		return err
	}

	inj := injector.New(c.root, c.deps.Remote, pid, path)
	if err := inj.Inject(); err != nil {
		c.log.Error("Injection failed", append(target, slog.Any("error", err))...)
		c.releaseChannel()
		return err
	}

	c.deps.Sleeper.Sleep(timeouts.InjectionSettleDelay)

	capture, err := c.deps.Screencap.NewScreencap(hwnd)
	if err != nil {
		c.log.Error("Screenshot source unavailable", append(target, slog.Any("error", err))...)
		c.releaseChannel()
		return fmt.Errorf("creating screenshot source: %w", err)
	}

	c.pid = pid
	c.hwnd = hwnd
	c.injector = inj
	c.capture = capture
	c.identity = Identity(c.opts.IdentityPrefix, pid, hwnd)
	c.connected = true

	c.log.Info("Connected", slog.String("identity", c.identity))

	return nil
}

// EnsureConnection verifies the binding before an operation. A live target
// is re-verified for the injected library; a dead one triggers a full
// rediscovery. It never performs the first connect.
func (c *Controller) EnsureConnection() error {
	if !c.connected {
		return ErrNotConnected
	}

	if c.injector.IsProcessAlive() {
		err := c.injector.EnsureInjected()
		if !errors.Is(err, injector.ErrProcessDead) {
			return err
		}
	}

	c.log.Warn("Target process exited, reconnecting", slog.Uint64("pid", uint64(c.pid)))

	return c.reconnect()
}

// reconnect rebinds every component to a freshly discovered target. The new
// binding is committed only once every step has succeeded; until then the
// stale binding stays in place and its dead pid sends the next operation back
// here.
func (c *Controller) reconnect() error {
	pid, hwnd, err := c.locator.Locate(c.opts.ProcessName, c.opts.WindowClass)
	if err != nil {
		c.log.Error("Rediscovery failed", slog.Any("error", err))
		return err
	}

	target := []any{slog.Uint64("pid", uint64(pid)), slog.Uint64("hwnd", uint64(hwnd))}
	c.log.Info("Found new target", target...)

	if err := c.bindChannel(pid, hwnd); err != nil {
		c.log.Error("Rebinding channel failed", append(target, slog.Any("error", err))...)
		return err
	}

	inj := injector.New(c.root, c.deps.Remote, pid, c.injector.Path())
	if err := inj.Inject(); err != nil {
		c.log.Error("Reinjection failed", append(target, slog.Any("error", err))...)
		return err
	}

	c.deps.Sleeper.Sleep(timeouts.InjectionSettleDelay)

	capture, err := c.deps.Screencap.NewScreencap(hwnd)
	if err != nil {
		c.log.Error("Recreating screenshot source failed", append(target, slog.Any("error", err))...)
		return fmt.Errorf("creating screenshot source: %w", err)
	}

	c.closeCapture()

	c.pid = pid
	c.hwnd = hwnd
	c.injector = inj
	c.capture = capture
	c.identity = Identity(c.opts.IdentityPrefix, pid, hwnd)

	c.log.Info("Reconnected", slog.String("identity", c.identity))

	return nil
}

// ready runs EnsureConnection for an input or capture operation.
func (c *Controller) ready() error {
	if err := c.EnsureConnection(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return nil
}

// Screencap captures the target window.
func (c *Controller) Screencap() (windows.Frame, error) {
	if err := c.ready(); err != nil {
		return windows.Frame{}, err
	}

	if c.capture == nil {
		return windows.Frame{}, errors.New("screenshot source not initialized")
	}

	return c.capture.Capture()
}

func (c *Controller) Click(x, y int32) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.engine.Click(c.hwnd, x, y)
}

func (c *Controller) Swipe(x1, y1, x2, y2 int32, duration time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.engine.Swipe(c.hwnd, x1, y1, x2, y2, duration)
}

func (c *Controller) TouchDown(contact int, x, y int32) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.engine.TouchDown(c.hwnd, contact, x, y)
}

func (c *Controller) TouchMove(contact int, x, y int32) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.engine.TouchMove(c.hwnd, contact, x, y)
}

func (c *Controller) TouchUp(contact int) error {
	if err := c.ready(); err != nil {
		return err
	}

	return c.engine.TouchUp(c.hwnd, contact)
}

// Close disables and releases the shared record and the screenshot source.
// The library stays loaded in the target until it exits.
func (c *Controller) Close() error {
	var errs []error

	if c.channel.Valid() {
		if err := c.channel.SetEnabled(false); err != nil {
			errs = append(errs, err)
		}
		if err := c.channel.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}

	c.closeCapture()

	if c.connected {
		c.log.Info("Disconnected", slog.String("identity", c.identity))
	}

	c.injector = nil
	c.pid = 0
	c.hwnd = 0
	c.identity = ""
	c.connected = false

	return errors.Join(errs...)
}

func (c *Controller) resolveTarget() (uint32, uintptr, error) {
	if c.opts.Hwnd == 0 {
		return c.locator.Locate(c.opts.ProcessName, c.opts.WindowClass)
	}

	pid, err := c.locator.PidOf(c.opts.Hwnd)
	if err != nil {
		return 0, 0, err
	}

	c.log.Debug("Using supplied window", slog.Uint64("hwnd", uint64(c.opts.Hwnd)), slog.Uint64("pid", uint64(pid)))

	return pid, c.opts.Hwnd, nil
}

func (c *Controller) libraryPath() (string, error) {
	if c.opts.LibraryPath != "" {
		return c.opts.LibraryPath, nil
	}

	path, err := injector.DefaultLibraryPath(c.deps.Executable, c.opts.LibraryName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", injector.ErrLibraryMissing, err)
	}

	c.log.Debug("Library path", slog.String("path", path))

	return path, nil
}

// bindChannel resets the shared record for a new binding: disabled, owned by
// hwnd and naming pid as the injected process.
func (c *Controller) bindChannel(pid uint32, hwnd uintptr) error {
	if err := c.channel.Init(hwnd); err != nil {
		return err
	}

	if err := c.channel.SetOwningWindow(hwnd); err != nil {
		return err
	}

	return c.channel.SetInjectedPid(pid)
}

func (c *Controller) releaseChannel() {
	if err := c.channel.Cleanup(); err != nil {
		c.log.Debug("Channel cleanup failed", slog.Any("error", err))
	}
}

func (c *Controller) closeCapture() {
	if c.capture == nil {
		return
	}

	if err := c.capture.Close(); err != nil {
		c.log.Debug("Screenshot source close failed", slog.Any("error", err))
	}

	c.capture = nil
}
