package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withPlatform overrides platform detection for one test.
func withPlatform(t *testing.T, goos, home, cwd string) {
	t.Helper()
	saved := platform
	t.Cleanup(func() { platform = saved })
	platform.goos = goos
	platform.homeDir = func() (string, error) { return home, nil }
	platform.userConfigDir = func() (string, error) { return filepath.Join(home, "AppData"), nil }
	platform.getwd = func() (string, error) { return cwd, nil }
}

func TestUserDirs_Linux(t *testing.T) {
	withPlatform(t, "linux", "/home/ada", "/work")

	t.Run("xdg set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
		t.Setenv("XDG_DATA_HOME", "/xdg/data")
		cfg, err := UserConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/xdg/config/strata", cfg)
		data, err := UserDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/xdg/data/strata", data)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		cfg, err := UserConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.config/strata", cfg)
		data, err := UserDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.local/share/strata", data)
	})
}

func TestUserDirs_Other(t *testing.T) {
	withPlatform(t, "windows", "/home/ada", "/work")

	cfg, err := UserConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/ada", "AppData", "strata"), cfg)
	data, err := UserDataDir()
	require.NoError(t, err)
	assert.Equal(t, cfg, data)
}

func TestUserConfigDir_HomeError(t *testing.T) {
	withPlatform(t, "linux", "", "/work")
	platform.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := UserConfigDir()
	assert.Error(t, err)
}

func TestResolveConfigDir(t *testing.T) {
	cwd := t.TempDir()
	withPlatform(t, "linux", "/home/ada", cwd)
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name  string
		flag  string
		env   string
		local bool
		want  string
	}{
		{name: "flag wins over env", flag: "/flag/cfg", env: "/env/cfg", want: "/flag/cfg"},
		{name: "env when no flag", env: "/env/cfg", want: "/env/cfg"},
		{name: "user dir when nothing local", want: "/home/ada/.config/strata"},
		{name: "local dir when present", local: true, want: filepath.Join(cwd, DefaultConfigDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			if tt.local {
				require.NoError(t, os.MkdirAll(filepath.Join(cwd, DefaultConfigDirName), 0o755))
			}
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	withPlatform(t, "linux", "/home/ada", "/work")

	tests := []struct {
		name        string
		flag        string
		configValue string
		configDir   string
		env         string
		want        string
	}{
		{name: "flag wins over all", flag: "/flag/data", configValue: "/cfg/data", env: "/env/data", want: "/flag/data"},
		{name: "config over env", configValue: "/cfg/data", env: "/env/data", want: "/cfg/data"},
		{name: "relative config joins config dir", configValue: "db", configDir: "/etc/strata", want: "/etc/strata/db"},
		{name: "env when no flag or config", env: "/env/data", want: "/env/data"},
		{name: "cwd default", want: "/work/.strata-db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.configValue, tt.configDir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_RelativeBecomesAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	t.Setenv(EnvDataDir, "relative/env")

	cfg, err := ResolveConfigDir("relative/cfg")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg), cfg)

	data, err := ResolveDataDir("", "", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(data), data)
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, filepath.Join("/etc/strata", "config.yaml"), ConfigFile("/etc/strata"))
}
