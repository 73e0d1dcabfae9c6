package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/hookctl/internal/config"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/version"
)

// resetFlags resets all flags to their default values between tests
func resetFlags() {
	_ = RootCmd.PersistentFlags().Set("verbose", "false")
	_ = RootCmd.PersistentFlags().Set("logs", "false")
	_ = RootCmd.PersistentFlags().Set("config", "")
	_ = RootCmd.PersistentFlags().Set("process", "")
	_ = RootCmd.PersistentFlags().Set("class", "")
	_ = RootCmd.PersistentFlags().Set("hwnd", "")
}

// TestHandleLogsFlag tests the --logs flag functionality
func TestHandleLogsFlag(t *testing.T) {
	resetFlags()
	defer resetFlags() // Clean up after test

	// Create temp directory for log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "hookctl", "hookctl.log")

	// Cannot use t.Parallel() - modifies environment variables
	t.Setenv("LOCALAPPDATA", tmpDir)

	// Write some test content to log file
	testContent := "Test log content\nLine 2\nLine 3"
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath, []byte(testContent), 0o644))

	// Capture stdout
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	exitCalled := false
	exitCode := -1
	mockExit := func(code int) {
		exitCalled = true
		exitCode = code
	}

	err := handleLogsFlag(&Config{ShowLogs: true}, mockExit)
	assert.NoError(t, err)

	// Restore stdout
	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	assert.True(t, exitCalled, "Should call exit function for --logs flag")
	assert.Equal(t, 0, exitCode, "Should exit with code 0 for --logs")
	assert.Contains(t, buf.String(), testContent, "Should print log file content to stdout")
}

// TestHandleLogsFlag_NoLogFile tests --logs when no log has been written yet
func TestHandleLogsFlag_NoLogFile(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	t.Setenv("LOCALAPPDATA", t.TempDir())

	exitCode := -1
	err := handleLogsFlag(&Config{ShowLogs: true}, func(code int) { exitCode = code })

	assert.NoError(t, err)
	assert.Equal(t, 1, exitCode, "Should exit with code 1 when the log file is missing")
}

// TestHandleLogsFlag_NotSet tests that nothing happens without --logs
func TestHandleLogsFlag_NotSet(t *testing.T) {
	t.Parallel()

	exitCalled := false
	err := handleLogsFlag(&Config{}, func(int) { exitCalled = true })

	assert.NoError(t, err)
	assert.False(t, exitCalled)
}

// TestRootCmd_Version tests --version flag
func TestRootCmd_Version(t *testing.T) {
	resetFlags()

	output := captureCommandOutput(t, []string{"--version"})

	assert.Contains(t, output, version.GetVersion(), "Should print version information")
}

// TestRootCmd_Help tests --help flag
func TestRootCmd_Help(t *testing.T) {
	resetFlags()

	output := captureCommandOutput(t, []string{"--help"})

	assert.Contains(t, output, "hookctl", "Should show usage")
	assert.Contains(t, output, "injects a hook library", "Should show description")
	for _, flag := range []string{"--verbose", "--logs", "--config", "--process", "--class", "--hwnd"} {
		assert.Contains(t, output, flag)
	}
	for _, sub := range []string{"connect", "click", "swipe", "screencap"} {
		assert.Contains(t, output, sub)
	}
}

// TestRootCmd_Flags tests flag parsing
func TestRootCmd_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		args            []string
		expectedVerbose bool
		expectedLogs    bool
		expectedConfig  string
		expectedHwnd    string
	}{
		{
			name: "no flags",
			args: []string{},
		},
		{
			name:            "verbose flag short",
			args:            []string{"-V"},
			expectedVerbose: true,
		},
		{
			name:            "verbose flag long",
			args:            []string{"--verbose"},
			expectedVerbose: true,
		},
		{
			name:         "logs flag short",
			args:         []string{"-l"},
			expectedLogs: true,
		},
		{
			name:           "config flag short",
			args:           []string{"-c", "C:\\hookctl.yaml"},
			expectedConfig: "C:\\hookctl.yaml",
		},
		{
			name:         "hwnd flag",
			args:         []string{"--hwnd", "0x120ABC"},
			expectedHwnd: "0x120ABC",
		},
		{
			name:            "all flags",
			args:            []string{"--verbose", "--logs", "--config", "x.yaml", "--hwnd", "42"},
			expectedVerbose: true,
			expectedLogs:    true,
			expectedConfig:  "x.yaml",
			expectedHwnd:    "42",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create a new command instance to avoid flag conflicts
			cmd := &cobra.Command{Use: "test"}
			cmd.PersistentFlags().BoolP("verbose", "V", false, "enable verbose output")
			cmd.PersistentFlags().BoolP("logs", "l", false, "print log file")
			cmd.PersistentFlags().StringP("config", "c", "", "config file")
			cmd.PersistentFlags().String("process", "", "process")
			cmd.PersistentFlags().String("class", "", "class")
			cmd.PersistentFlags().String("hwnd", "", "window handle")

			require.NoError(t, cmd.ParseFlags(tt.args), "Flag parsing should not error")

			cfg := NewConfigFromFlags(cmd)
			assert.Equal(t, tt.expectedVerbose, cfg.Verbose, "Verbose flag mismatch")
			assert.Equal(t, tt.expectedLogs, cfg.ShowLogs, "Logs flag mismatch")
			assert.Equal(t, tt.expectedConfig, cfg.ConfigPath, "Config flag mismatch")
			assert.Equal(t, tt.expectedHwnd, cfg.Hwnd, "Hwnd flag mismatch")
		})
	}
}

// TestRootCmd_InvalidFlag tests behavior with unknown flags
func TestRootCmd_InvalidFlag(t *testing.T) {
	resetFlags()

	// Capture stderr for error output
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	RootCmd.SetArgs([]string{"--invalid-flag"})
	err := RootCmd.Execute()

	w.Close()
	os.Stderr = oldStderr

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	assert.Error(t, err, "Should return error for invalid flag")
	assert.Contains(t, buf.String(), "unknown flag", "Error message should mention unknown flag")
}

// TestSubcommand_InvalidArgsFailBeforeSession tests that bad coordinates are
// rejected by argument validation, before logging or elevation
func TestSubcommand_InvalidArgsFailBeforeSession(t *testing.T) {
	resetFlags()

	tests := []struct {
		name      string
		args      []string
		expectErr string
	}{
		{name: "click missing y", args: []string{"click", "10"}, expectErr: "accepts 2 arg(s), received 1"},
		{name: "click text", args: []string{"click", "ten", "20"}, expectErr: "invalid coordinate \"ten\""},
		{name: "swipe too few", args: []string{"swipe", "1", "2", "3"}, expectErr: "accepts 4 arg(s), received 3"},
		{name: "connect extra", args: []string{"connect", "now"}, expectErr: "unknown command \"now\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldStderr := os.Stderr
			_, w, _ := os.Pipe()
			os.Stderr = w

			RootCmd.SetArgs(tt.args)
			err := RootCmd.Execute()

			w.Close()
			os.Stderr = oldStderr

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}
}

// Helper function to capture command output
func captureCommandOutput(_ *testing.T, args []string) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	RootCmd.SetArgs(args)
	_ = RootCmd.Execute()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	return buf.String()
}

// TestExecutionContext_ExitFuncInjectable tests that exitFunc is injectable for testing
func TestExecutionContext_ExitFuncInjectable(t *testing.T) {
	t.Parallel()

	exitCalled := false
	var exitCode int

	ctx := &ExecutionContext{
		exitFunc: func(code int) {
			exitCalled = true
			exitCode = code
		},
	}

	ctx.exitFunc(130)

	assert.True(t, exitCalled, "Exit function should have been called")
	assert.Equal(t, 130, exitCode, "Exit code should be 130")
}

// TestConfig_WindowHandle tests --hwnd parsing
func TestConfig_WindowHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		hwnd      string
		expected  uintptr
		expectErr bool
	}{
		{name: "empty searches", hwnd: "", expected: 0},
		{name: "decimal", hwnd: "1182396", expected: 0x120ABC},
		{name: "hex", hwnd: "0x120ABC", expected: 0x120ABC},
		{name: "zero", hwnd: "0", expectErr: true},
		{name: "negative", hwnd: "-5", expectErr: true},
		{name: "text", hwnd: "window", expectErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hwnd, err := (&Config{Hwnd: tt.hwnd}).WindowHandle()
			if tt.expectErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "invalid window handle")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, hwnd)
		})
	}
}

// TestConfig_Apply tests that target flags override the loaded configuration
func TestConfig_Apply(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	(&Config{}).Apply(cfg)
	assert.Equal(t, config.Default(), cfg, "empty flags change nothing")

	(&Config{Process: "Other.exe", Class: "OtherClass"}).Apply(cfg)
	assert.Equal(t, "Other.exe", cfg.Target.Process)
	assert.Equal(t, "OtherClass", cfg.Target.WindowClass)
}

// TestLoadConfiguration_RejectsBadHwnd tests that --hwnd is validated first
func TestLoadConfiguration_RejectsBadHwnd(t *testing.T) {
	t.Parallel()

	cfg, hwnd, err := loadConfiguration(&Config{Hwnd: "nope"}, logger.NewNoOpLogger())

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Zero(t, hwnd)
}

// TestLoadConfiguration_AppliesFlags tests the config file plus flag overlay
func TestLoadConfiguration_AppliesFlags(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	t.Setenv(config.EnvLibrary, "")

	path := filepath.Join(t.TempDir(), "hookctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  process: FromFile.exe\n"), 0o644))

	cfg, hwnd, err := loadConfiguration(&Config{ConfigPath: path, Class: "FlagClass", Hwnd: "0x10"}, logger.NewNoOpLogger())

	require.NoError(t, err)
	assert.Equal(t, "FromFile.exe", cfg.Target.Process)
	assert.Equal(t, "FlagClass", cfg.Target.WindowClass)
	assert.Equal(t, uintptr(0x10), hwnd)
}

// TestEnsureElevated_AlreadyElevated tests when process is already elevated
func TestEnsureElevated_AlreadyElevated(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCalled := false
	relaunchCalled := false

	isElevated := func() bool { return true }
	relaunchAsAdmin := func() error {
		relaunchCalled = true
		return nil
	}
	exitFunc := func(code int) {
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	assert.NoError(t, err, "Should not error when already elevated")
	assert.False(t, relaunchCalled, "Should not relaunch when already elevated")
	assert.False(t, exitCalled, "Should not exit when already elevated")
}

// TestEnsureElevated_NotElevated_SuccessfulRelaunch tests auto-elevation flow
func TestEnsureElevated_NotElevated_SuccessfulRelaunch(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCode := -1
	exitCalled := false
	relaunchCalled := false

	isElevated := func() bool { return false }
	relaunchAsAdmin := func() error {
		relaunchCalled = true
		return nil
	}
	exitFunc := func(code int) {
		exitCode = code
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	assert.NoError(t, err, "Should not return error on successful relaunch")
	assert.True(t, relaunchCalled, "Should call relaunch when not elevated")
	assert.True(t, exitCalled, "Should call exit after successful relaunch")
	assert.Equal(t, 0, exitCode, "Should exit with code 0 after successful relaunch")
}

// TestEnsureElevated_NotElevated_RelaunchFails tests relaunch failure handling
func TestEnsureElevated_NotElevated_RelaunchFails(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCalled := false
	relaunchCalled := false
	relaunchErr := fmt.Errorf("failed to relaunch")

	isElevated := func() bool { return false }
	relaunchAsAdmin := func() error {
		relaunchCalled = true
		return relaunchErr
	}
	exitFunc := func(code int) {
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	assert.Error(t, err, "Should return error when relaunch fails")
	assert.True(t, relaunchCalled, "Should attempt to relaunch")
	assert.False(t, exitCalled, "Should not exit when relaunch fails")
	assert.Contains(t, err.Error(), "error relaunching as admin", "Error should mention relaunch failure")
	assert.ErrorIs(t, err, relaunchErr, "Should wrap the relaunch error")
}
