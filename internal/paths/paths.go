// Package paths resolves the configuration and data directories of the
// strata CLI.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Directory names used when no override is given.
const (
	AppName              = "strata"
	DefaultConfigDirName = ".strata"
	DefaultDataDirName   = ".strata-db"
	ConfigFileName       = "config.yaml"
)

// Environment variables overriding the directories.
const (
	EnvConfigDir = "STRATA_CONFIG_DIR"
	EnvDataDir   = "STRATA_DATA_DIR"
)

// platform is swapped out by tests.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// UserConfigDir returns the per-user configuration directory:
// $XDG_CONFIG_HOME/strata or ~/.config/strata on Linux, and the
// os.UserConfigDir location elsewhere.
func UserConfigDir() (string, error) {
	if platform.goos == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platform.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// UserDataDir returns the per-user data directory: $XDG_DATA_HOME/strata
// or ~/.local/share/strata on Linux, and the configuration location
// elsewhere.
func UserDataDir() (string, error) {
	if platform.goos == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	return UserConfigDir()
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}

// ResolveConfigDir picks the configuration directory: the flag, then
// STRATA_CONFIG_DIR, then ./.strata when it exists, then UserConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platform.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, DefaultConfigDirName)
	if fi, err := os.Stat(local); err == nil && fi.IsDir() {
		return local, nil
	}
	return UserConfigDir()
}

// ResolveDataDir picks the data directory: the flag, then the data_dir
// config value, then STRATA_DATA_DIR, then ./.strata-db. A relative config
// value is taken relative to configDir.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		if !filepath.IsAbs(configValue) && configDir != "" {
			configValue = filepath.Join(configDir, configValue)
		}
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platform.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the config.yaml path inside dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}
