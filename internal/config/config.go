// Package config loads hookctl configuration.
//
// Configuration is a YAML file located by the --config flag or, failing that,
// the HOOKCTL_CONFIG environment variable. With neither set the built-in
// defaults apply. HOOKCTL_LIBRARY overrides the library path regardless of
// where the rest of the configuration came from.
//
// Example hookctl.yaml:
//
//	target:
//	  process: StarEra.exe
//	  window_class: UnityWndClass
//	library:
//	  name: msa_hook.dll
//	  path: ${USERPROFILE}\hooks\msa_hook.dll
//	channel:
//	  name: MSA_SharedMemory
//	identity:
//	  prefix: MSA_Controller
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/hookctl/internal/channel"
	"github.com/Norgate-AV/hookctl/internal/controller"
	"github.com/Norgate-AV/hookctl/internal/injector"
)

const (
	// EnvConfig names the configuration file when --config is not given.
	EnvConfig = "HOOKCTL_CONFIG"

	// EnvLibrary overrides library.path.
	EnvLibrary = "HOOKCTL_LIBRARY"
)

// Config is the complete hookctl configuration.
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Library  LibraryConfig  `yaml:"library"`
	Channel  ChannelConfig  `yaml:"channel"`
	Identity IdentityConfig `yaml:"identity"`
}

// TargetConfig selects the process and window to drive.
type TargetConfig struct {
	// Process is the executable file name, matched case-insensitively.
	Process string `yaml:"process"`

	// WindowClass is the exact class name of the render window.
	WindowClass string `yaml:"window_class"`
}

// LibraryConfig locates the library loaded into the target.
type LibraryConfig struct {
	// Name is the file name looked up next to the hookctl executable.
	Name string `yaml:"name"`

	// Path is an absolute path that takes precedence over Name. ${VAR}
	// references are expanded from the environment.
	Path string `yaml:"path"`
}

// ChannelConfig names the shared control record.
type ChannelConfig struct {
	// Name must match the name the injected library opens.
	Name string `yaml:"name"`
}

// IdentityConfig shapes the identity reported to the framework.
type IdentityConfig struct {
	Prefix string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Process:     controller.DefaultProcessName,
			WindowClass: controller.DefaultWindowClass,
		},
		Library: LibraryConfig{
			Name: controller.DefaultLibraryName,
		},
		Channel: ChannelConfig{
			Name: channel.DefaultName,
		},
		Identity: IdentityConfig{
			Prefix: controller.DefaultIdentityPrefix,
		},
	}
}

// Load builds the configuration from path, or from HOOKCTL_CONFIG when path
// is empty. Values missing from the file keep their defaults. A path that was
// asked for but cannot be read is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile merges a single YAML file into c. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s\n"+
				"Please check the --config flag or the %s environment variable", path, EnvConfig)
		}

		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnvironment() {
	if envPath := os.Getenv(EnvLibrary); envPath != "" {
		c.Library.Path = envPath
	}

	c.Library.Path = os.ExpandEnv(c.Library.Path)
}

// Validate checks that every value the controller needs is present.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.Process == "" {
		errs = append(errs, errors.New("target.process is required"))
	}

	if c.Target.WindowClass == "" {
		errs = append(errs, errors.New("target.window_class is required"))
	}

	if c.Library.Name == "" && c.Library.Path == "" {
		errs = append(errs, errors.New("library.name or library.path is required"))
	}

	if c.Channel.Name == "" {
		errs = append(errs, errors.New("channel.name is required"))
	}

	if c.Identity.Prefix == "" {
		errs = append(errs, errors.New("identity.prefix is required"))
	}

	return errors.Join(errs...)
}

// LibraryPath returns the library that will be injected: library.path when
// set, otherwise library.name next to the executable.
func (c *Config) LibraryPath(executable func() (string, error)) (string, error) {
	if c.Library.Path != "" {
		return c.Library.Path, nil
	}

	return injector.DefaultLibraryPath(executable, c.Library.Name)
}

// ValidateLibrary checks that the library exists before elevation is
// requested, with guidance that depends on where the path came from.
func (c *Config) ValidateLibrary(executable func() (string, error)) error {
	path, err := c.LibraryPath(executable)
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		switch {
		case os.Getenv(EnvLibrary) != "":
			return fmt.Errorf("hook library not found at custom path: %s\n"+
				"Please verify the %s environment variable is correct", path, EnvLibrary)
		case c.Library.Path != "":
			return fmt.Errorf("hook library not found at configured path: %s\n"+
				"Please verify library.path in the config file", path)
		default:
			return fmt.Errorf("hook library not found at default path: %s\n"+
				"Please place %s next to hookctl or set the %s environment variable", path, c.Library.Name, EnvLibrary)
		}
	}

	if err != nil {
		return fmt.Errorf("error checking hook library at %s: %w", path, err)
	}

	return nil
}

// ToOptions converts the configuration to controller options. A non-zero
// hwnd binds the controller to that window instead of searching for one.
func (c *Config) ToOptions(hwnd uintptr) controller.Options {
	return controller.Options{
		ProcessName:    c.Target.Process,
		WindowClass:    c.Target.WindowClass,
		LibraryName:    c.Library.Name,
		LibraryPath:    c.Library.Path,
		ChannelName:    c.Channel.Name,
		IdentityPrefix: c.Identity.Prefix,
		Hwnd:           hwnd,
	}
}
