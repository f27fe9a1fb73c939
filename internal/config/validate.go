package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conn-castle/patchtool/internal/logging"
	"github.com/conn-castle/patchtool/internal/messages"
)

// Validate ensures the config is consistent. The installation section may be
// left out entirely; once any of it is set, name, version and at least one
// layer are required.
func (c *Config) Validate(path string) error {
	if err := c.validateValues(path); err != nil {
		return err
	}
	if !c.HasInstallation() {
		return nil
	}
	in := c.Installation
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf(messages.ConfigInstallationNameFmt, path)
	}
	if strings.TrimSpace(in.Version) == "" {
		return fmt.Errorf(messages.ConfigInstallationVersionFmt, path)
	}
	if len(in.Layers) == 0 {
		return fmt.Errorf(messages.ConfigLayersRequiredFmt, path)
	}
	return nil
}

// validateValues checks every value that is set without requiring the
// installation section to be complete.
func (c *Config) validateValues(path string) error {
	in := c.Installation
	if err := validateTargets(path, "layer", in.Layers); err != nil {
		return err
	}
	if err := validateTargets(path, "add-on", in.AddOns); err != nil {
		return err
	}
	for _, entry := range in.Configuration {
		if entry == "" || !filepath.IsLocal(filepath.FromSlash(entry)) {
			return fmt.Errorf(messages.ConfigConfigurationPathFmt, path, entry)
		}
	}

	for _, entry := range c.Policy.Override {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf(messages.ConfigPolicyPathEmptyFmt, path, "override")
		}
	}
	for _, entry := range c.Policy.Preserve {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf(messages.ConfigPolicyPathEmptyFmt, path, "preserve")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf(messages.ConfigLogLevelInvalidFmt, path)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf(messages.ConfigLogFormatInvalidFmt, path)
	}

	if c.Lock.Timeout != "" {
		d, err := time.ParseDuration(c.Lock.Timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf(messages.ConfigLockTimeoutInvalidFmt, path, c.Lock.Timeout)
		}
	}
	return nil
}

func validateTargets(path, kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf(messages.ConfigTargetNameInvalidFmt, path, kind, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf(messages.ConfigDuplicateTargetFmt, path, kind, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
