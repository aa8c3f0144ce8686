package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/strata/internal/paths"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyOutput    = "output"
	cfgKeyLogLevel  = "log.level"
	cfgKeyLogFormat = "log.format"

	envPrefix = "STRATA"
)

// defaultConfigYAML is written by init when config.yaml is missing.
const defaultConfigYAML = `# strata configuration

backend: sqlite

# Data directory; relative paths are taken from this directory.
# data_dir: ../.strata-db

# Output format: table, json or yaml.
output: table

log:
  level: info
  format: text
`

// loadConfig reads config.yaml from configDir. Precedence is flag, then
// STRATA_* environment variable, then config file, then default. A
// missing config.yaml is not an error.
func loadConfig(configDir string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, "sqlite")
	v.SetDefault(cfgKeyOutput, formatTable)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{cfgKeyOutput, cfgKeyLogLevel, cfgKeyLogFormat} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if flags != nil {
		for key, flag := range map[string]string{
			cfgKeyOutput:    "output",
			cfgKeyLogLevel:  "log-level",
			cfgKeyLogFormat: "log-format",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if b := v.GetString(cfgKeyBackend); b != "sqlite" {
		return nil, usagef("backend %q is not supported", b)
	}
	return v, nil
}

// writeDefaultConfig creates config.yaml in configDir unless it exists.
// It reports whether the file was written.
func writeDefaultConfig(configDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("writing config: %w", err)
	}
	return true, nil
}
