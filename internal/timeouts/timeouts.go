// Package timeouts defines the fixed delays and timeouts of the hook protocol.
//
// The shared control channel has no acknowledgement mechanism. These values are
// the only thing giving the injected library time to observe a state before
// the controller changes it again, so they are part of the cross-process
// contract and are deliberately not configurable.
package timeouts

import "time"

const (
	// Injection

	// RemoteThreadTimeout bounds the wait for the remote loader thread to
	// return the module handle of the injected library.
	RemoteThreadTimeout = 5 * time.Second

	// InjectionSettleDelay gives the freshly loaded library time to map the
	// shared channel and install its hooks before the first gesture.
	InjectionSettleDelay = 100 * time.Millisecond

	// Gestures

	// PressHoldDelay is the time between button-down and button-up of a click.
	PressHoldDelay = 50 * time.Millisecond

	// ReleaseSettleDelay keeps the channel enabled after the terminal
	// button-up so the target can sample the forged pointer position.
	ReleaseSettleDelay = 50 * time.Millisecond

	// MinSwipeStepDelay is the floor for the per-step delay of a swipe.
	MinSwipeStepDelay = 5 * time.Millisecond

	// DefaultSwipeDuration is used by the CLI when no duration is given.
	DefaultSwipeDuration = 200 * time.Millisecond

	// Cleanup

	// CleanupDelay bounds how long a signal handler waits for an in-flight
	// gesture before exiting. The channel is only released once the gesture
	// has finished.
	CleanupDelay = 1 * time.Second
)
