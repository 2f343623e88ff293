package config

// DefaultConfig returns a new DaemonConfig populated with built-in defaults.
// Callers receive a fresh copy each time; mutating the returned value does
// not affect subsequent calls.
func DefaultConfig() *DaemonConfig {
	return &DaemonConfig{
		Features:             FeatureFlags{},
		Compliance:           PresetNone,
		AllowedPaths:         nil,
		BlockedPaths:         nil,
		MaxTokensPerResponse: 20000,
		Strict:               false,
		PrivacyMode:          false,
		DisableMCP:           false,
		DisableLogging:       false,
	}
}
