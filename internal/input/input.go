// Package input sequences shared record writes and posted mouse messages into
// clicks, swipes and single-contact touch gestures.
//
// Every gesture writes the coordinates before enabling the record, posts
// WM_ACTIVATE so the target believes it has focus, and disables the record
// only after a fixed settle delay. There is no acknowledgement from the
// target; the delays in package timeouts are the only synchronization.
package input

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Norgate-AV/hookctl/internal/channel"
	"github.com/Norgate-AV/hookctl/internal/interfaces"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/timeouts"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

// SwipeSteps is the number of segments a swipe is divided into.
const SwipeSteps = 20

// Channel is the part of the shared record a gesture touches.
type Channel interface {
	Valid() bool
	Init(hwnd uintptr) error
	SetTarget(x, y int32) error
	SetEnabled(enabled bool) error
	Record() (channel.Record, error)
}

// Engine posts gestures to a window. It is not safe for concurrent use.
type Engine struct {
	log     logger.LoggerInterface
	ch      Channel
	poster  interfaces.MessagePoster
	sleeper interfaces.Sleeper
}

func New(log logger.LoggerInterface, ch Channel, poster interfaces.MessagePoster, sleeper interfaces.Sleeper) *Engine {
	return &Engine{
		log:     log.With("input"),
		ch:      ch,
		poster:  poster,
		sleeper: sleeper,
	}
}

// Click presses and releases the primary button at (x, y).
func (e *Engine) Click(hwnd uintptr, x, y int32) error {
	e.log.Debug("Click", slog.Int("x", int(x)), slog.Int("y", int(y)))

	if err := e.press(hwnd, x, y); err != nil {
		return err
	}

	e.sleeper.Sleep(timeouts.PressHoldDelay)

	return e.release(hwnd, x, y)
}

// Swipe drags from (x1, y1) to (x2, y2) over roughly duration.
func (e *Engine) Swipe(hwnd uintptr, x1, y1, x2, y2 int32, duration time.Duration) error {
	delay := StepDelay(duration)

	e.log.Debug("Swipe",
		slog.Int("x1", int(x1)), slog.Int("y1", int(y1)),
		slog.Int("x2", int(x2)), slog.Int("y2", int(y2)),
		slog.Duration("duration", duration),
		slog.Duration("step_delay", delay),
	)

	if err := e.press(hwnd, x1, y1); err != nil {
		return err
	}

	for i := 1; i < SwipeSteps; i++ {
		x, y := Interpolate(x1, y1, x2, y2, i)

		if err := e.move(hwnd, x, y); err != nil {
			return e.abort(err)
		}

		e.sleeper.Sleep(delay)
	}

	if err := e.ch.SetTarget(x2, y2); err != nil {
		return e.abort(err)
	}

	return e.release(hwnd, x2, y2)
}

// TouchDown starts a contact at (x, y) and leaves the record enabled.
// The contact id is accepted for API symmetry; one logical contact exists.
func (e *Engine) TouchDown(hwnd uintptr, contact int, x, y int32) error {
	e.log.Debug("Touch down", slog.Int("contact", contact), slog.Int("x", int(x)), slog.Int("y", int(y)))

	if !e.ch.Valid() {
		if err := e.ch.Init(hwnd); err != nil {
			return err
		}
	}

	return e.press(hwnd, x, y)
}

// TouchMove updates the position of a contact started by TouchDown. The
// enabled flag is not touched.
func (e *Engine) TouchMove(hwnd uintptr, contact int, x, y int32) error {
	e.log.Trace("Touch move", slog.Int("contact", contact), slog.Int("x", int(x)), slog.Int("y", int(y)))

	return e.move(hwnd, x, y)
}

// TouchUp releases the contact at the last written position.
func (e *Engine) TouchUp(hwnd uintptr, contact int) error {
	rec, err := e.ch.Record()
	if err != nil {
		return err
	}

	e.log.Debug("Touch up", slog.Int("contact", contact), slog.Int("x", int(rec.TargetX)), slog.Int("y", int(rec.TargetY)))

	return e.release(hwnd, rec.TargetX, rec.TargetY)
}

// press writes the target, enables the record, then posts activate and
// button-down. On failure the record is left disabled.
func (e *Engine) press(hwnd uintptr, x, y int32) error {
	if err := e.ch.SetTarget(x, y); err != nil {
		return err
	}

	if err := e.ch.SetEnabled(true); err != nil {
		return err
	}

	if err := e.post(hwnd, windows.WM_ACTIVATE, windows.WA_ACTIVE, 0); err != nil {
		return e.abort(err)
	}

	if err := e.post(hwnd, windows.WM_LBUTTONDOWN, windows.MK_LBUTTON, windows.MakeLParam(x, y)); err != nil {
		return e.abort(err)
	}

	return nil
}

func (e *Engine) move(hwnd uintptr, x, y int32) error {
	if err := e.ch.SetTarget(x, y); err != nil {
		return err
	}

	return e.post(hwnd, windows.WM_MOUSEMOVE, windows.MK_LBUTTON, windows.MakeLParam(x, y))
}

// release posts button-up, waits for the target to sample the position and
// disables the record.
func (e *Engine) release(hwnd uintptr, x, y int32) error {
	if err := e.post(hwnd, windows.WM_LBUTTONUP, 0, windows.MakeLParam(x, y)); err != nil {
		return e.abort(err)
	}

	e.sleeper.Sleep(timeouts.ReleaseSettleDelay)

	return e.ch.SetEnabled(false)
}

// abort disables the record after a failed step and returns cause.
func (e *Engine) abort(cause error) error {
	if err := e.ch.SetEnabled(false); err != nil {
		e.log.Debug("Disable after failure failed", slog.Any("error", err))
	}

	return cause
}

func (e *Engine) post(hwnd uintptr, msg uint32, wparam, lparam uintptr) error {
	if err := e.poster.PostMessage(hwnd, msg, wparam, lparam); err != nil {
		return fmt.Errorf("posting %s to 0x%x: %w", windows.MessageName(msg), hwnd, err)
	}

	return nil
}

// StepDelay is the pause after each swipe step: duration split across
// SwipeSteps, floored at timeouts.MinSwipeStepDelay.
func StepDelay(duration time.Duration) time.Duration {
	return max(duration/SwipeSteps, timeouts.MinSwipeStepDelay)
}

// Interpolate returns the rounded point at step i of SwipeSteps on the line
// from (x1, y1) to (x2, y2).
func Interpolate(x1, y1, x2, y2 int32, i int) (int32, int32) {
	return x1 + lerp(x2-x1, i), y1 + lerp(y2-y1, i)
}

func lerp(delta int32, i int) int32 {
	// delta*i is exact, so halves round away from zero as math.Round defines
	return int32(math.Round(float64(int64(delta)*int64(i)) / SwipeSteps))
}
