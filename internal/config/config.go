// Package config loads and edits patchtool.toml, the per-installation
// settings file.
package config

import (
	"path/filepath"
	"time"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/identity"
	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/policy"
)

// FileName is the config file name inside the installation metadata directory.
const FileName = "patchtool.toml"

// Config is the full patchtool.toml contents.
type Config struct {
	Installation InstallationConfig `toml:"installation"`
	Policy       policy.Options     `toml:"policy"`
	Log          LogConfig          `toml:"log"`
	Lock         LockConfig         `toml:"lock"`
}

// InstallationConfig describes the installation before any patch was applied.
// Once an identity has been saved, the saved identity wins over these values.
type InstallationConfig struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Layers  []string `toml:"layers"`
	AddOns  []string `toml:"add-ons"`
	// Configuration lists home-relative paths captured with every patch and
	// restored by rollback --reset-configuration.
	Configuration []string `toml:"configuration"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LockConfig controls waiting for the installation lock.
type LockConfig struct {
	Timeout string `toml:"timeout"`
}

// Default returns the configuration used when no patchtool.toml exists.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info", Format: logging.FormatText},
		Lock: LockConfig{Timeout: fsutil.DefaultLockTimeout.String()},
	}
}

// DefaultPath returns <home>/.installation/patchtool.toml.
func DefaultPath(home string) string {
	return filepath.Join(home, identity.MetadataDirName, FileName)
}

// HasInstallation reports whether the installation section is filled in.
func (c *Config) HasInstallation() bool {
	in := c.Installation
	return in.Name != "" || in.Version != "" || len(in.Layers) > 0 || len(in.AddOns) > 0
}

// Defaults returns the identity used before the first committed patch.
func (c *Config) Defaults() identity.Defaults {
	return identity.Defaults{
		Name:    c.Installation.Name,
		Version: c.Installation.Version,
		Layers:  append([]string(nil), c.Installation.Layers...),
		AddOns:  append([]string(nil), c.Installation.AddOns...),
	}
}

// PolicyOptions returns the configured default conflict policy.
func (c *Config) PolicyOptions() policy.Options {
	opts := c.Policy
	opts.Override = append([]string(nil), opts.Override...)
	opts.Preserve = append([]string(nil), opts.Preserve...)
	return opts
}

// LockTimeout parses lock.timeout, falling back to the default when unset.
// Validate rejects unparsable values, so errors are not reported here.
func (c *Config) LockTimeout() time.Duration {
	if c.Lock.Timeout == "" {
		return fsutil.DefaultLockTimeout
	}
	d, err := time.ParseDuration(c.Lock.Timeout)
	if err != nil || d <= 0 {
		return fsutil.DefaultLockTimeout
	}
	return d
}

// LogLevel returns the configured level name, defaulting to info.
func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}

// LogFormat returns the configured format, defaulting to text.
func (c *Config) LogFormat() string {
	if c.Log.Format == "" {
		return logging.FormatText
	}
	return c.Log.Format
}
