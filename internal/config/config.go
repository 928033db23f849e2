package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mateo/envoy/internal/keys"
	"gopkg.in/yaml.v3"
)

// Config holds optional per-user overrides. envoy only ever reads it.
type Config struct {
	Agent    string `yaml:"agent"`
	SSHAdd   string `yaml:"ssh_add"`
	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		SSHAdd:   keys.DefaultSSHAdd,
		LogLevel: "warn",
	}
}

func BaseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "envoy")
}

// ConfigPath honours ENVOY_CONFIG before the per-user default.
func ConfigPath() string {
	if path := os.Getenv("ENVOY_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(BaseDir(), "config.yaml")
}

func Load() (Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads path over the defaults. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.SSHAdd == "" {
		cfg.SSHAdd = keys.DefaultSSHAdd
	}
	return cfg, nil
}

// Level maps LogLevel onto slog; ENVOY_DEBUG forces debug.
func (c Config) Level() (slog.Level, error) {
	if os.Getenv("ENVOY_DEBUG") != "" {
		return slog.LevelDebug, nil
	}
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
