package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/hookctl/internal/adapter"
	"github.com/Norgate-AV/hookctl/internal/config"
	"github.com/Norgate-AV/hookctl/internal/controller"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/timeouts"
	"github.com/Norgate-AV/hookctl/internal/version"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

var _ adapter.Core = (*controller.Controller)(nil)

// ExecutionContext holds state needed throughout a session and for cleanup
// in signal handlers. mu is held while the session talks to the target.
type ExecutionContext struct {
	mu       sync.Mutex
	log      logger.LoggerInterface
	hook     *adapter.HookController
	out      io.Writer
	exitFunc func(int) // Injectable for testing; defaults to os.Exit
}

// RootCmd is the root command for the hookctl CLI application.
var RootCmd = &cobra.Command{
	Use:   "hookctl",
	Short: "hookctl - Drive a game window with background pointer input",
	Long: `hookctl injects a hook library into the target process and forges
pointer input through window messages, so the window keeps working while it
is in the background or covered by other windows.`,
	Version:      version.GetVersion(),
	Args:         cobra.NoArgs,
	RunE:         Execute,
	SilenceUsage: true, // Don't show usage on runtime errors
}

func init() {
	// Set custom version template to show full version info
	RootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Add flags
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolP("logs", "l", false, "print the current log file to stdout and exit")
	RootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file (default $"+config.EnvConfig+")")
	RootCmd.PersistentFlags().String("process", "", "target process executable name")
	RootCmd.PersistentFlags().String("class", "", "target window class name")
	RootCmd.PersistentFlags().String("hwnd", "", "use this window handle instead of searching (decimal or 0x hex)")

	RootCmd.AddCommand(connectCmd, clickCmd, swipeCmd, screencapCmd)
}

// handleLogsFlag processes the --logs flag and exits if needed
func handleLogsFlag(cfg *Config, exitFunc func(int)) error {
	if !cfg.ShowLogs {
		return nil
	}

	if err := logger.PrintLogFile(nil, logger.LoggerOptions{}); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logPath := logger.GetLogPath(logger.LoggerOptions{})
			fmt.Fprintf(os.Stderr, "Log file does not exist: %s\n", logPath)
			exitFunc(1)
			return nil
		}

		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		exitFunc(1)
		return nil
	}

	exitFunc(0)
	return nil // Won't actually reach here due to exitFunc
}

// initializeLogger creates a logger and logs startup information
func initializeLogger(cfg *Config) (logger.LoggerInterface, error) {
	log, err := logger.NewLogger(logger.LoggerOptions{
		Verbose:  cfg.Verbose,
		Compress: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// ensureElevated checks for admin privileges and relaunches if needed
func ensureElevated(log logger.LoggerInterface) error {
	return ensureElevatedWithDeps(log, windows.IsElevated, windows.RelaunchAsAdmin, os.Exit)
}

// ensureElevatedWithDeps is the testable version with injected dependencies
func ensureElevatedWithDeps(
	log logger.LoggerInterface,
	isElevated func() bool,
	relaunchAsAdmin func() error,
	exitFunc func(int),
) error {
	log.Debug("Checking elevation status")
	if !isElevated() {
		log.Info("Opening the target process requires administrator privileges")
		log.Info("Relaunching as administrator")

		if err := relaunchAsAdmin(); err != nil {
			log.Error("RelaunchAsAdmin failed", slog.Any("error", err))
			return fmt.Errorf("error relaunching as admin: %w", err)
		}

		// Exit this instance, the elevated one will continue
		log.Debug("Relaunched successfully, exiting non-elevated instance")
		log.Close()
		exitFunc(0)
	}

	log.Debug("Running with administrator privileges")
	return nil
}

// loadConfiguration reads the config file and applies the target flags
func loadConfiguration(flags *Config, log logger.LoggerInterface) (*config.Config, uintptr, error) {
	hwnd, err := flags.WindowHandle()
	if err != nil {
		return nil, 0, err
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Error("Loading configuration failed", slog.Any("error", err))
		return nil, 0, err
	}

	flags.Apply(cfg)

	log.Debug("Configuration loaded",
		slog.String("process", cfg.Target.Process),
		slog.String("class", cfg.Target.WindowClass),
		slog.String("channel", cfg.Channel.Name),
		slog.Uint64("hwnd", uint64(hwnd)),
	)

	return cfg, hwnd, nil
}

// setupSignalHandlers configures console control and interrupt signal handlers
// It captures the ExecutionContext in closures to access state for cleanup
func setupSignalHandlers(ctx *ExecutionContext) {
	// Set up Windows console control handler to catch window close events
	_ = windows.SetConsoleCtrlHandler(func(ctrlType uint32) uintptr {
		ctx.log.Debug("Received console control event",
			slog.String("type", windows.GetCtrlTypeName(ctrlType)),
			slog.Uint64("code", uint64(ctrlType)),
		)

		ctx.log.Info("Cleaning up after console control event")
		ctx.cleanup()
		ctx.log.Debug("Cleanup completed, exiting")

		ctx.exitFunc(130)
		return 1
	})

	// Set up signal handler for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		ctx.log.Debug("Received signal", slog.Any("signal", sig))
		ctx.log.Info("Interrupt signal received, starting cleanup")

		ctx.cleanup()

		ctx.log.Debug("Cleanup completed, exiting")
		ctx.exitFunc(130)
	}()
}

// cleanup disables and releases the shared record once the running operation
// has finished. If it does not finish within the cleanup delay the record is
// left mapped; the next connect clears it.
func (ctx *ExecutionContext) cleanup() {
	if !lockWithin(&ctx.mu, timeouts.CleanupDelay) {
		ctx.log.Warn("Operation still running, exiting without releasing the channel")
		return
	}
	defer ctx.mu.Unlock()

	if ctx.hook == nil {
		return
	}

	if err := ctx.hook.Close(); err != nil {
		ctx.log.Warn("Releasing the channel failed", slog.Any("error", err))
	}
}

func lockWithin(mu *sync.Mutex, limit time.Duration) bool {
	deadline := time.Now().Add(limit)

	for !mu.TryLock() {
		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(10 * time.Millisecond)
	}

	return true
}

// Execute runs the root command, which only serves --logs and help.
func Execute(cmd *cobra.Command, args []string) error {
	cfg := NewConfigFromFlags(cmd)

	if err := handleLogsFlag(cfg, os.Exit); err != nil {
		return err
	}

	return cmd.Help()
}

// runSession connects to the target, runs action and releases the channel.
// Every subcommand goes through here.
func runSession(cmd *cobra.Command, action func(ctx *ExecutionContext) error) (err error) {
	flags := NewConfigFromFlags(cmd)

	if err := handleLogsFlag(flags, os.Exit); err != nil {
		return err
	}

	log, err := initializeLogger(flags)
	if err != nil {
		return err
	}

	defer log.Close()

	log.Debug("Starting hookctl",
		slog.String("command", cmd.Name()),
		slog.Any("args", os.Args[1:]),
	)

	// Recover from panics and log them
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC RECOVERED",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			fmt.Fprintf(os.Stderr, "\n*** PANIC: %v ***\n", r)
			fmt.Fprintf(os.Stderr, "Check log file for details\n")

			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, hwnd, err := loadConfiguration(flags, log)
	if err != nil {
		return err
	}

	// Validate the library before requesting elevation
	if err := cfg.ValidateLibrary(os.Executable); err != nil {
		log.Error("Hook library check failed", slog.Any("error", err))
		return err
	}

	if err := ensureElevated(log); err != nil {
		return err
	}

	// DPI awareness is per thread and the controller is not safe for
	// concurrent use, so the whole session stays on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := &ExecutionContext{
		log:      log,
		hook:     adapter.NewHookController(log, controller.New(log, cfg.ToOptions(hwnd))),
		out:      cmd.OutOrStdout(),
		exitFunc: os.Exit,
	}

	setupSignalHandlers(ctx)

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	defer func() {
		if err := ctx.hook.Close(); err != nil {
			log.Warn("Releasing the channel failed", slog.Any("error", err))
		}
	}()

	if !ctx.hook.Connect() {
		return fmt.Errorf("could not connect to %s, see %s for details", cfg.Target.Process, log.GetLogPath())
	}

	return action(ctx)
}
