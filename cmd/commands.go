package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/hookctl/internal/timeouts"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the target and print its identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, runConnect)
	},
}

var clickCmd = &cobra.Command{
	Use:   "click X Y",
	Short: "Click at client coordinates",
	Args:  coordinateArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, _ := parseCoordinates(args)
		return runSession(cmd, func(ctx *ExecutionContext) error {
			return runClick(ctx, coords[0], coords[1])
		})
	},
}

var swipeCmd = &cobra.Command{
	Use:   "swipe X1 Y1 X2 Y2",
	Short: "Drag from one client point to another",
	Args:  coordinateArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, _ := parseCoordinates(args)

		duration, err := swipeDuration(cmd)
		if err != nil {
			return err
		}

		return runSession(cmd, func(ctx *ExecutionContext) error {
			return runSwipe(ctx, coords[0], coords[1], coords[2], coords[3], duration)
		})
	},
}

var screencapCmd = &cobra.Command{
	Use:   "screencap",
	Short: "Capture the target window and print the frame size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, runScreencap)
	},
}

func init() {
	swipeCmd.Flags().IntP("duration", "d", int(timeouts.DefaultSwipeDuration/time.Millisecond), "swipe duration in milliseconds")
}

// coordinateArgs checks the argument count and that every argument is a
// 32-bit integer, before any privileged work starts.
func coordinateArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return err
		}

		_, err := parseCoordinates(args)
		return err
	}
}

func parseCoordinates(args []string) ([]int32, error) {
	coords := make([]int32, len(args))

	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: must be an integer", arg)
		}

		coords[i] = int32(v)
	}

	return coords, nil
}

func swipeDuration(cmd *cobra.Command) (time.Duration, error) {
	ms, err := cmd.Flags().GetInt("duration")
	if err != nil {
		return 0, err
	}

	if ms < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %d", ms)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

func runConnect(ctx *ExecutionContext) error {
	id, ok := ctx.hook.RequestUUID()
	if !ok {
		return errors.New("connected but no identity is available")
	}

	success(ctx, "Connected: %s\n", id)
	return nil
}

func runClick(ctx *ExecutionContext, x, y int32) error {
	if !ctx.hook.Click(x, y) {
		return fmt.Errorf("click at (%d, %d) failed", x, y)
	}

	success(ctx, "Clicked (%d, %d)\n", x, y)
	return nil
}

func runSwipe(ctx *ExecutionContext, x1, y1, x2, y2 int32, duration time.Duration) error {
	if !ctx.hook.Swipe(x1, y1, x2, y2, duration) {
		return fmt.Errorf("swipe from (%d, %d) to (%d, %d) failed", x1, y1, x2, y2)
	}

	success(ctx, "Swiped (%d, %d) -> (%d, %d) in %s\n", x1, y1, x2, y2, duration)
	return nil
}

func runScreencap(ctx *ExecutionContext) error {
	frame, ok := ctx.hook.Screencap()
	if !ok {
		return errors.New("screen capture failed")
	}

	success(ctx, "Captured %dx%d (%d bytes)\n", frame.Width, frame.Height, len(frame.Pixels))
	return nil
}

func success(ctx *ExecutionContext, format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(ctx.out, format, args...)
}
