// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "CVMFS_CLIENT_CONFIG"

// Config is the client configuration.
type Config struct {
	// Source locates the repository: an http(s) URL of a Stratum
	// server, a file:// URL or local directory holding a repository
	// tree, or a bare repository name served from /srv/cvmfs.
	Source string `yaml:"source"`

	// CacheDir holds downloaded objects and root files. It must exist
	// and be writable.
	CacheDir string `yaml:"cache_dir"`

	// PublicKey is the path to the PEM-encoded key that signs the
	// repository whitelist. Empty disables the verify command unless
	// a key is passed on the command line.
	PublicKey string `yaml:"public_key"`

	// AllowStaleManifest permits falling back to a cached manifest
	// younger than its TTL when the source cannot be reached.
	AllowStaleManifest bool `yaml:"allow_stale_manifest"`

	// HTTP configures downloads from Stratum servers.
	HTTP HTTPConfig `yaml:"http"`

	// Log configures the stderr logger.
	Log LogConfig `yaml:"log"`
}

// HTTPConfig configures the HTTP source.
type HTTPConfig struct {
	// Timeout bounds each request, as a Go duration string.
	// Default: 60s
	Timeout string `yaml:"timeout"`

	// UserAgent overrides the User-Agent header. Empty uses the
	// build's default.
	UserAgent string `yaml:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: warn
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration. The cache lives under
// the user's cache directory.
func Default() *Config {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = os.TempDir()
	}

	return &Config{
		CacheDir: filepath.Join(cacheRoot, "cvmfs"),
		HTTP: HTTPConfig{
			Timeout: "60s",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load loads configuration from the CVMFS_CLIENT_CONFIG environment
// variable. If the variable is unset, Load returns [Default].
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, on top of
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// HTTPTimeout parses HTTP.Timeout. An empty value means no timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if c.HTTP.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 0, fmt.Errorf("http.timeout: %w", err)
	}
	return timeout, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.CacheDir = expandVars(c.CacheDir, vars)
	vars["CVMFS_CACHE"] = c.CacheDir

	c.Source = expandVars(c.Source, vars)
	c.PublicKey = expandVars(c.PublicKey, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars take precedence over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir is required"))
	}
	if _, err := c.HTTPTimeout(); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
