// Package config implements the feature/compliance gate plus the ambient
// logging and TOML-loading concerns every other package depends on.
// Resolution follows a five-layer precedence over feature flags: environment
// variables, project-local config, user config, system config, and
// compiled-in defaults (highest to lowest).
package config

// FeatureFlags is a mapping of feature name to enabled/disabled, the unit the
// gate resolves and that dispatch consults before exposing or invoking a
// tool.
type FeatureFlags map[string]bool

// Enabled reports whether the named feature is on. Unknown features default
// to enabled, matching an additive tool registry: a flag only needs to be
// listed to turn something off.
func (f FeatureFlags) Enabled(name string) bool {
	if v, ok := f[name]; ok {
		return v
	}
	return true
}

// CompliancePreset is one of the enumerated regulatory postures from §4.8.
type CompliancePreset string

const (
	PresetNone        CompliancePreset = ""
	PresetEnterprise  CompliancePreset = "enterprise"
	PresetGovernment  CompliancePreset = "government"
	PresetHealthcare  CompliancePreset = "healthcare"
	PresetEducation   CompliancePreset = "education"
	PresetFinancial   CompliancePreset = "financial"
)

// presetFlags enumerates the concrete flag combination each compliance
// preset establishes before user overrides apply on top.
func presetFlags(p CompliancePreset) FeatureFlags {
	switch p {
	case PresetEnterprise:
		return FeatureFlags{"edit_tools": false, "live_monitor": false}
	case PresetGovernment:
		return FeatureFlags{"edit_tools": false, "live_monitor": false, "content_search": false}
	case PresetHealthcare:
		return FeatureFlags{"edit_tools": false, "live_monitor": false, "content_search": false, "relations": false}
	case PresetEducation:
		return FeatureFlags{"live_monitor": false}
	case PresetFinancial:
		return FeatureFlags{"edit_tools": false, "live_monitor": false}
	default:
		return FeatureFlags{}
	}
}

// DaemonConfig is the top-level, fully-resolved configuration record for a
// tool-server process. It is immutable for the lifetime of the process
// unless the host performs an explicit reload, swapping in a freshly
// resolved pointer rather than mutating fields in place.
type DaemonConfig struct {
	Features FeatureFlags `toml:"features"`

	Compliance CompliancePreset `toml:"compliance"`

	// AllowedPaths / BlockedPaths are canonicalized path prefixes. Evaluation
	// is allow-then-deny: a path under an allowed prefix and not under any
	// blocked prefix is permitted.
	AllowedPaths []string `toml:"allowed_paths"`
	BlockedPaths []string `toml:"blocked_paths"`

	// MaxTokensPerResponse is the compression manager's wrap threshold
	// override; 0 selects the package default (20000).
	MaxTokensPerResponse int `toml:"max_tokens_per_response"`

	// Strict mirrors ST_AI_STRICT: JSON-only stdout, no emoji, deterministic
	// ordering.
	Strict bool `toml:"strict"`

	// PrivacyMode disables any outbound collaborator the host might wire in
	// (telemetry, update checks); the core never performs network I/O
	// itself, so this flag exists purely for the gate to report.
	PrivacyMode bool `toml:"privacy_mode"`

	DisableMCP     bool `toml:"disable_mcp"`
	DisableLogging bool `toml:"disable_logging"`
}

// ResolvedConfig pairs the merged DaemonConfig with source attribution so
// callers can report which layer set each field.
type ResolvedConfig struct {
	Config  *DaemonConfig
	Sources SourceMap
}

// IsFeatureEnabled applies the compliance preset first, then any explicit
// Features overrides recorded on top of it.
func (c *DaemonConfig) IsFeatureEnabled(name string) bool {
	merged := presetFlags(c.Compliance)
	for k, v := range c.Features {
		merged[k] = v
	}
	return merged.Enabled(name)
}
