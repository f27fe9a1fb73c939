package messages

// Config messages for loading, validating and editing patchtool.toml.
const (
	// ConfigReadFmt formats config read errors.
	ConfigReadFmt                = "failed to read config %s: %w"
	ConfigInvalidConfigFmt       = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt    = "config %s contains unrecognized keys: %v"
	ConfigValidationGuidance     = "(fix the value or remove the key to use the default)"
	ConfigInstallationNameFmt    = "%s: installation.name is required"
	ConfigInstallationVersionFmt = "%s: installation.version is required"
	ConfigLayersRequiredFmt      = "%s: installation.layers must name at least one layer"
	ConfigDuplicateTargetFmt     = "%s: %s %q is listed more than once"
	ConfigTargetNameInvalidFmt   = "%s: %s name %q must be a single path component"
	ConfigConfigurationPathFmt   = "%s: installation.configuration entry %q must be a relative path inside the installation"
	ConfigLogLevelInvalidFmt     = "%s: log.level must be one of debug, info, warn, error"
	ConfigLogFormatInvalidFmt    = "%s: log.format must be text or json"
	ConfigLockTimeoutInvalidFmt  = "%s: lock.timeout %q is not a positive duration"
	ConfigPolicyPathEmptyFmt     = "%s: policy.%s entries must not be empty"
	ConfigUnknownKeyFmt          = "unknown config key %q"
	ConfigParseValueFmt          = "invalid value %q for %s: %w"
	ConfigWriteFmt               = "failed to write config %s: %w"
	ConfigEncodeFmt              = "encode config %s: %w"
	ConfigExpandPathFmt          = "expand path %q: %w"
)
