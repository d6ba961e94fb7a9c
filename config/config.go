// Package config loads the harness configuration shared by embedding
// programs and the CLI. Every field is optional; zero values defer to the
// harness defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/zhengpingwan/artemis/experiments"
	"github.com/zhengpingwan/artemis/pkg/logger"
	"github.com/zhengpingwan/artemis/plotting"
)

// Config is the file configuration for the experiment harness.
type Config struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`               // Record store root. Empty means "~/.artemis/experiments".
	Template  string `mapstructure:"template" yaml:"template"`     // Identifier template with %T and %N placeholders.
	LogFormat string `mapstructure:"log_format" yaml:"log_format"` // "json", "console" or "human". Empty means "json".
	ShowMode  string `mapstructure:"show_mode" yaml:"show_mode"`   // Default figure policy: "hang", "draw" or "suppress".
	Workers   int    `mapstructure:"workers" yaml:"workers"`       // Fan-out pool size. Zero means the CPU count.
}

// validLogFormats are the accepted log_format values.
var validLogFormats = []string{"json", "console", "human"}

// Validate checks every field that is set. Empty fields are valid and defer
// to the harness defaults.
func (c *Config) Validate() error {
	if c.Template != "" {
		if err := experiments.Template(c.Template).Validate(); err != nil {
			return err
		}
	}
	if c.ShowMode != "" {
		if _, err := plotting.ParseShowMode(c.ShowMode); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log_format %q (expected %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}

	return nil
}

// LabOptions translates the configuration into lab construction options,
// validating it first. Unset fields contribute no option.
func (c *Config) LabOptions(lggr logger.Logger) ([]experiments.LabOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []experiments.LabOption
	if lggr != nil {
		opts = append(opts, experiments.WithLogger(lggr))
	}
	if c.Dir != "" {
		opts = append(opts, experiments.WithDir(c.Dir))
	}
	if c.Template != "" {
		opts = append(opts, experiments.WithTemplate(experiments.Template(c.Template)))
	}
	if c.ShowMode != "" {
		mode, err := plotting.ParseShowMode(c.ShowMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, experiments.WithDefaultShowMode(mode))
	}
	if c.Workers > 0 {
		opts = append(opts, experiments.WithWorkers(c.Workers))
	}

	return opts, nil
}

// DefaultPath returns the conventional config file location,
// "~/.artemis/config.yaml".
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return filepath.Join(home, ".artemis", "config.yaml"), nil
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	// Bind environment variables
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we fallback to using
	// environment variables
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := viper.New()

	// Bind environment variables
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// envBindings defines how environment variables map to configuration keys
// used by Viper. Each entry maps a config key to the environment variable
// names that can provide its value, checked in order.
var envBindings = map[string][]string{
	"dir":        {"ARTEMIS_DIR"},
	"template":   {"ARTEMIS_TEMPLATE"},
	"log_format": {"ARTEMIS_LOG_FORMAT", "LOG_FORMAT"},
	"show_mode":  {"ARTEMIS_SHOW_MODE"},
	"workers":    {"ARTEMIS_WORKERS"},
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	// Bind environment variables mappings to the viper instance
	for key, envs := range envBindings {
		// Prepend the env key to the start of the arguments
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
