// Package cmd implements the command-line interface for hookctl.
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/hookctl/internal/config"
)

// Config holds the flag values of one invocation
type Config struct {
	Verbose    bool
	ShowLogs   bool
	ConfigPath string
	Process    string
	Class      string
	Hwnd       string
}

// NewConfigFromFlags creates a Config from parsed command flags
func NewConfigFromFlags(cmd *cobra.Command) *Config {
	return &Config{
		Verbose:    getBoolFlag(cmd, "verbose"),
		ShowLogs:   getBoolFlag(cmd, "logs"),
		ConfigPath: getStringFlag(cmd, "config"),
		Process:    getStringFlag(cmd, "process"),
		Class:      getStringFlag(cmd, "class"),
		Hwnd:       getStringFlag(cmd, "hwnd"),
	}
}

// WindowHandle parses --hwnd. Decimal and 0x-prefixed hex are accepted; an
// empty value means search for the window.
func (c *Config) WindowHandle() (uintptr, error) {
	if c.Hwnd == "" {
		return 0, nil
	}

	v, err := strconv.ParseUint(c.Hwnd, 0, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid window handle %q: expected a non-zero decimal or 0x-prefixed hex value", c.Hwnd)
	}

	return uintptr(v), nil
}

// Apply overlays the target flags on a loaded configuration
func (c *Config) Apply(cfg *config.Config) {
	if c.Process != "" {
		cfg.Target.Process = c.Process
	}

	if c.Class != "" {
		cfg.Target.WindowClass = c.Class
	}
}

// getBoolFlag retrieves a boolean flag, checking both local and persistent flags
func getBoolFlag(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		// Try persistent flags if not found in local flags
		val, _ = cmd.PersistentFlags().GetBool(name)
	}

	return val
}

// getStringFlag is getBoolFlag for string flags
func getStringFlag(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		val, _ = cmd.PersistentFlags().GetString(name)
	}

	return val
}
