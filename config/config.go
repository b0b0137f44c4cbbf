// Package config holds adaxctl configuration: defaults, optional YAML file
// overrides, and logger construction.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/adaxtools/adaxctl/internal/provision"
)

// FileName is the optional per-user configuration file, looked up in the home
// directory.
const FileName = ".adaxctl.yaml"

// Config holds application configuration.
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"panic"`
	ScanWindow     time.Duration `yaml:"scan_window" default:"60s"`
	ScanRetries    int           `yaml:"scan_retries" default:"1"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" default:"15s"`
}

// Default returns the default configuration values.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads configuration from path, overlaying defaults. An absent file is
// not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the per-user config file if present.
func LoadDefault() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	return Load(filepath.Join(home, FileName))
}

// UnmarshalYAML decodes the config, accepting durations as strings ("90s",
// "2m"). Absent keys keep their current (default) values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LogLevel       string `yaml:"log_level"`
		ScanWindow     string `yaml:"scan_window"`
		ScanRetries    *int   `yaml:"scan_retries"`
		ConnectTimeout string `yaml:"connect_timeout"`
		HTTPTimeout    string `yaml:"http_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.ScanRetries != nil {
		if *raw.ScanRetries < 0 {
			return fmt.Errorf("scan_retries must not be negative")
		}
		c.ScanRetries = *raw.ScanRetries
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"scan_window", raw.ScanWindow, &c.ScanWindow},
		{"connect_timeout", raw.ConnectTimeout, &c.ConnectTimeout},
		{"http_timeout", raw.HTTPTimeout, &c.HTTPTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// SessionOptions maps the config onto provisioning session options.
func (c *Config) SessionOptions() *provision.Options {
	opts := provision.DefaultOptions()
	opts.ScanWindow = c.ScanWindow
	opts.ScanRetries = c.ScanRetries
	opts.ConnectTimeout = c.ConnectTimeout
	return opts
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
