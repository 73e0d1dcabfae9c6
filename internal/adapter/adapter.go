// Package adapter maps an automation framework's controller callbacks onto
// the hook controller. Every callback reports plain success or failure;
// errors are logged here and not passed on.
package adapter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

// Feature is the framework's controller feature bit set.
type Feature uint64

// FeatureNone asks the framework for its default behavior.
const FeatureNone Feature = 0

// ErrUnsupported is logged for capabilities this controller does not provide.
var ErrUnsupported = errors.New("operation not supported by the hook controller")

// Controller is the full callback surface a framework expects.
type Controller interface {
	Connect() bool
	RequestUUID() (string, bool)
	GetFeatures() Feature
	StartApp(intent string) bool
	StopApp(intent string) bool
	Screencap() (windows.Frame, bool)
	Click(x, y int32) bool
	Swipe(x1, y1, x2, y2 int32, duration time.Duration) bool
	TouchDown(contact int, x, y int32, pressure int) bool
	TouchMove(contact int, x, y int32, pressure int) bool
	TouchUp(contact int) bool
	ClickKey(key int) bool
	InputText(text string) bool
	KeyDown(key int) bool
	KeyUp(key int) bool
	Scroll(dx, dy int32) bool
}

// Core is what the adapter needs from the connection state machine.
type Core interface {
	Connect() error
	Identity() string
	Screencap() (windows.Frame, error)
	Click(x, y int32) error
	Swipe(x1, y1, x2, y2 int32, duration time.Duration) error
	TouchDown(contact int, x, y int32) error
	TouchMove(contact int, x, y int32) error
	TouchUp(contact int) error
	Close() error
}

// HookController exposes a Core as a Controller. It owns the core: Close must
// be called when the framework object it backs is destroyed, not before.
type HookController struct {
	log  logger.LoggerInterface
	core Core
}

func NewHookController(log logger.LoggerInterface, core Core) *HookController {
	return &HookController{log: log.With("adapter"), core: core}
}

// Close disables and releases the shared record.
func (h *HookController) Close() error {
	return h.core.Close()
}

func (h *HookController) Connect() bool {
	return h.report("connect", h.core.Connect())
}

func (h *HookController) RequestUUID() (string, bool) {
	id := h.core.Identity()
	if id == "" {
		return "", h.report("request_uuid", errors.New("not connected"))
	}

	return id, true
}

func (h *HookController) GetFeatures() Feature {
	return FeatureNone
}

func (h *HookController) Screencap() (windows.Frame, bool) {
	frame, err := h.core.Screencap()
	return frame, h.report("screencap", err)
}

func (h *HookController) Click(x, y int32) bool {
	return h.report("click", h.core.Click(x, y))
}

func (h *HookController) Swipe(x1, y1, x2, y2 int32, duration time.Duration) bool {
	return h.report("swipe", h.core.Swipe(x1, y1, x2, y2, duration))
}

func (h *HookController) TouchDown(contact int, x, y int32, _ int) bool {
	return h.report("touch_down", h.core.TouchDown(contact, x, y))
}

func (h *HookController) TouchMove(contact int, x, y int32, _ int) bool {
	return h.report("touch_move", h.core.TouchMove(contact, x, y))
}

func (h *HookController) TouchUp(contact int) bool {
	return h.report("touch_up", h.core.TouchUp(contact))
}

func (h *HookController) StartApp(string) bool     { return h.unsupported("start_app") }
func (h *HookController) StopApp(string) bool      { return h.unsupported("stop_app") }
func (h *HookController) ClickKey(int) bool        { return h.unsupported("click_key") }
func (h *HookController) InputText(string) bool    { return h.unsupported("input_text") }
func (h *HookController) KeyDown(int) bool         { return h.unsupported("key_down") }
func (h *HookController) KeyUp(int) bool           { return h.unsupported("key_up") }
func (h *HookController) Scroll(int32, int32) bool { return h.unsupported("scroll") }

func (h *HookController) unsupported(op string) bool {
	return h.report(op, ErrUnsupported)
}

func (h *HookController) report(op string, err error) bool {
	if err != nil {
		h.log.Error("Operation failed", slog.String("op", op), slog.Any("error", err))
		return false
	}

	return true
}
