package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names recognized by the daemon and CLI.
const (
	EnvAIStrict       = "ST_AI_STRICT"
	EnvAITools        = "AI_TOOLS"
	EnvNoCompress     = "MCP_NO_COMPRESS"
	EnvForceCompress  = "ST_FORCE_COMPRESS"
	EnvMaxTokens      = "ST_MAX_TOKENS"
	EnvAllowedPaths   = "ST_MCP_ALLOWED_PATHS"
	EnvBlockedPaths   = "ST_MCP_BLOCKED_PATHS"
	EnvComplianceMode = "ST_COMPLIANCE_MODE"
	EnvPrivacyMode    = "ST_PRIVACY_MODE"
	EnvDisableMCP     = "ST_DISABLE_MCP"
	EnvDisableLogging = "ST_DISABLE_LOGGING"
	EnvLogFormat      = "ST_LOG_FORMAT"
	EnvDebug          = "ST_DEBUG"
)

// buildEnvMap reads the ST_* environment variables above and returns a flat
// map suitable for a koanf confmap provider. Invalid numeric/boolean values
// are silently skipped so a bad env var never blocks resolution.
func buildEnvMap() map[string]any {
	m := make(map[string]any)

	if v := os.Getenv(EnvAIStrict); v == "1" {
		m["strict"] = true
	}
	if v := os.Getenv(EnvMaxTokens); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m["max_tokens_per_response"] = n
		}
	}
	if v := os.Getenv(EnvAllowedPaths); v != "" {
		m["allowed_paths"] = splitCSV(v)
	}
	if v := os.Getenv(EnvBlockedPaths); v != "" {
		m["blocked_paths"] = splitCSV(v)
	}
	if v := os.Getenv(EnvComplianceMode); v != "" {
		m["compliance"] = v
	}
	if v := os.Getenv(EnvPrivacyMode); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m["privacy_mode"] = b
		}
	}
	if v := os.Getenv(EnvDisableMCP); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m["disable_mcp"] = b
		}
	}
	if v := os.Getenv(EnvDisableLogging); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m["disable_logging"] = b
		}
	}

	return m
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
