package adapter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Norgate-AV/hookctl/internal/controller"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

// Fallback pairs a framework's stock controller with the hook path. Pointer
// input goes through the hook whenever it can reach the target and through
// the stock controller otherwise; every other capability always uses the
// stock one. Like the hook, it is not safe for concurrent use.
type Fallback struct {
	log      logger.LoggerInterface
	stock    Controller
	hook     *HookController
	contacts map[int]Controller
}

func NewFallback(log logger.LoggerInterface, stock Controller, hook *HookController) *Fallback {
	return &Fallback{
		log:      log.With("fallback"),
		stock:    stock,
		hook:     hook,
		contacts: make(map[int]Controller),
	}
}

// Connect connects the stock controller, then the hook. A hook failure is
// not fatal; pointer operations fall back until it connects.
func (f *Fallback) Connect() bool {
	if !f.stock.Connect() {
		return false
	}

	if !f.hook.Connect() {
		f.log.Warn("Hook unavailable, pointer input uses the stock controller until it connects")
	}

	return true
}

// Close releases the hook side. The stock controller belongs to the caller.
func (f *Fallback) Close() error {
	clear(f.contacts)
	return f.hook.Close()
}

func (f *Fallback) RequestUUID() (string, bool)      { return f.stock.RequestUUID() }
func (f *Fallback) GetFeatures() Feature             { return f.stock.GetFeatures() }
func (f *Fallback) StartApp(intent string) bool      { return f.stock.StartApp(intent) }
func (f *Fallback) StopApp(intent string) bool       { return f.stock.StopApp(intent) }
func (f *Fallback) Screencap() (windows.Frame, bool) { return f.stock.Screencap() }
func (f *Fallback) ClickKey(key int) bool            { return f.stock.ClickKey(key) }
func (f *Fallback) InputText(text string) bool       { return f.stock.InputText(text) }
func (f *Fallback) KeyDown(key int) bool             { return f.stock.KeyDown(key) }
func (f *Fallback) KeyUp(key int) bool               { return f.stock.KeyUp(key) }
func (f *Fallback) Scroll(dx, dy int32) bool         { return f.stock.Scroll(dx, dy) }

// route sends one pointer operation through the hook, falling back to the
// stock controller when the hook could not reach the target. A gesture that
// failed after input was posted is not repeated.
func (f *Fallback) route(op string, viaHook func() error, viaStock func() bool) (bool, Controller) {
	err := viaHook()
	if err == nil {
		return true, f.hook
	}

	if !errors.Is(err, controller.ErrUnavailable) {
		return f.hook.report(op, err), f.hook
	}

	f.log.Debug("Hook not ready, using stock controller", slog.String("op", op), slog.Any("error", err))
	return viaStock(), f.stock
}

func (f *Fallback) Click(x, y int32) bool {
	ok, _ := f.route("click",
		func() error { return f.hook.core.Click(x, y) },
		func() bool { return f.stock.Click(x, y) },
	)
	return ok
}

func (f *Fallback) Swipe(x1, y1, x2, y2 int32, duration time.Duration) bool {
	ok, _ := f.route("swipe",
		func() error { return f.hook.core.Swipe(x1, y1, x2, y2, duration) },
		func() bool { return f.stock.Swipe(x1, y1, x2, y2, duration) },
	)
	return ok
}

// TouchDown pins the contact to the variant that accepted it; moves and the
// release follow that variant.
func (f *Fallback) TouchDown(contact int, x, y int32, pressure int) bool {
	ok, via := f.route("touch_down",
		func() error { return f.hook.core.TouchDown(contact, x, y) },
		func() bool { return f.stock.TouchDown(contact, x, y, pressure) },
	)
	if ok {
		f.contacts[contact] = via
	}

	return ok
}

func (f *Fallback) TouchMove(contact int, x, y int32, pressure int) bool {
	if via, ok := f.contacts[contact]; ok {
		return via.TouchMove(contact, x, y, pressure)
	}

	ok, _ := f.route("touch_move",
		func() error { return f.hook.core.TouchMove(contact, x, y) },
		func() bool { return f.stock.TouchMove(contact, x, y, pressure) },
	)
	return ok
}

func (f *Fallback) TouchUp(contact int) bool {
	if via, ok := f.contacts[contact]; ok {
		delete(f.contacts, contact)
		return via.TouchUp(contact)
	}

	ok, _ := f.route("touch_up",
		func() error { return f.hook.core.TouchUp(contact) },
		func() bool { return f.stock.TouchUp(contact) },
	)
	return ok
}
