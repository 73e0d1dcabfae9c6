package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/hookctl/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(testutil.CreateTempDir(t), "hookctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func executableIn(dir string) func() (string, error) {
	return func() (string, error) {
		return filepath.Join(dir, "hookctl.exe"), nil
	}
}

func clearEnv(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLibrary, "")
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, "StarEra.exe", cfg.Target.Process)
	assert.Equal(t, "UnityWndClass", cfg.Target.WindowClass)
	assert.Equal(t, "msa_hook.dll", cfg.Library.Name)
	assert.Empty(t, cfg.Library.Path)
	assert.Equal(t, "MSA_SharedMemory", cfg.Channel.Name)
	assert.Equal(t, "MSA_Controller", cfg.Identity.Prefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	path := writeConfig(t, `
target:
  process: Other.exe
channel:
  name: Other_SharedMemory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Other.exe", cfg.Target.Process)
	assert.Equal(t, "UnityWndClass", cfg.Target.WindowClass, "unset keys keep their default")
	assert.Equal(t, "Other_SharedMemory", cfg.Channel.Name)
	assert.Equal(t, "msa_hook.dll", cfg.Library.Name)
	assert.Equal(t, "MSA_Controller", cfg.Identity.Prefix)
}

func TestLoad_FromEnvironment(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	path := writeConfig(t, "identity:\n  prefix: Bench\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Bench", cfg.Identity.Prefix)
}

func TestLoad_FlagBeatsEnvironment(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	t.Setenv(EnvConfig, writeConfig(t, "identity:\n  prefix: FromEnv\n"))
	flagPath := writeConfig(t, "identity:\n  prefix: FromFlag\n")

	cfg, err := Load(flagPath)
	require.NoError(t, err)
	assert.Equal(t, "FromFlag", cfg.Identity.Prefix)
}

func TestLoad_EmptyFile(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	tests := []struct {
		name      string
		path      func(t *testing.T) string
		expectErr string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "absent.yaml")
			},
			expectErr: "config file not found",
		},
		{
			name: "unknown key",
			path: func(t *testing.T) string {
				return writeConfig(t, "target:\n  proces: typo.exe\n")
			},
			expectErr: "field proces not found",
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string {
				return writeConfig(t, "target: [unterminated\n")
			},
			expectErr: "parsing config file",
		},
		{
			name: "blanked required value",
			path: func(t *testing.T) string {
				return writeConfig(t, "channel:\n  name: \"\"\n")
			},
			expectErr: "channel.name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path(t))

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}
}

func TestLoad_LibraryEnvOverride(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	customPath := "D:\\Custom\\Path\\To\\msa_hook.dll"
	t.Setenv(EnvLibrary, customPath)

	path := writeConfig(t, "library:\n  path: C:\\from\\file.dll\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, customPath, cfg.Library.Path, "environment wins over the file")
}

func TestLoad_ExpandsLibraryPath(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	t.Setenv("HOOK_DIR", "/opt/hooks")

	cfg, err := Load(writeConfig(t, "library:\n  path: ${HOOK_DIR}/msa_hook.dll\n"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/hooks/msa_hook.dll", cfg.Library.Path)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	err := cfg.Validate()

	require.Error(t, err)
	for _, want := range []string{
		"target.process",
		"target.window_class",
		"library.name or library.path",
		"channel.name",
		"identity.prefix",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLibraryPath(t *testing.T) {
	t.Parallel()

	dir := testutil.CreateTempDir(t)

	cfg := Default()
	path, err := cfg.LibraryPath(executableIn(dir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "msa_hook.dll"), path)

	cfg.Library.Path = "C:\\hooks\\custom.dll"
	path, err = cfg.LibraryPath(func() (string, error) {
		t.Fatal("executable must not be resolved when a path is configured")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "C:\\hooks\\custom.dll", path)
}

func TestLibraryPath_ExecutableError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no module path")

	_, err := Default().LibraryPath(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestValidateLibrary_DefaultPathFound(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	dir := testutil.CreateTempDir(t)
	testutil.CreateTestLibrary(t, dir, "msa_hook.dll")

	assert.NoError(t, Default().ValidateLibrary(executableIn(dir)))
}

func TestValidateLibrary_DefaultPathNotFound(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	dir := testutil.CreateTempDir(t)

	err := Default().ValidateLibrary(executableIn(dir))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook library not found at default path")
	assert.Contains(t, err.Error(), filepath.Join(dir, "msa_hook.dll"))
	assert.Contains(t, err.Error(), EnvLibrary)
}

func TestValidateLibrary_ConfiguredPathNotFound(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	cfg := Default()
	cfg.Library.Path = filepath.Join(testutil.CreateTempDir(t), "missing.dll")

	err := cfg.ValidateLibrary(executableIn(""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook library not found at configured path")
	assert.Contains(t, err.Error(), "library.path")
}

func TestValidateLibrary_CustomPathNotFound(t *testing.T) {
	// Cannot use t.Parallel() - modifies environment variables
	clearEnv(t)

	nonExistentPath := "Z:\\NonExistent\\Path\\msa_hook.dll"
	t.Setenv(EnvLibrary, nonExistentPath)

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.ValidateLibrary(executableIn(""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook library not found at custom path")
	assert.Contains(t, err.Error(), nonExistentPath)
	assert.Contains(t, err.Error(), EnvLibrary)
}

func TestToOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Library.Path = "C:\\hooks\\msa_hook.dll"

	opts := cfg.ToOptions(0x120ABC)

	assert.Equal(t, "StarEra.exe", opts.ProcessName)
	assert.Equal(t, "UnityWndClass", opts.WindowClass)
	assert.Equal(t, "msa_hook.dll", opts.LibraryName)
	assert.Equal(t, "C:\\hooks\\msa_hook.dll", opts.LibraryPath)
	assert.Equal(t, "MSA_SharedMemory", opts.ChannelName)
	assert.Equal(t, "MSA_Controller", opts.IdentityPrefix)
	assert.Equal(t, uintptr(0x120ABC), opts.Hwnd)
}
