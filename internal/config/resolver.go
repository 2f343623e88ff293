package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/providers/confmap"
	koanf "github.com/knadh/koanf/v2"
)

// ResolveOptions configures the multi-source configuration resolution.
type ResolveOptions struct {
	// TargetDir is the directory searched for a project-local smarttree.toml.
	// Defaults to "." if empty.
	TargetDir string

	// UserConfigPath overrides the default ~/.config/smarttree/config.toml.
	UserConfigPath string

	// SystemConfigPath overrides the default /etc/smarttree/config.toml.
	SystemConfigPath string

	// CLIOverrides holds explicit CLI flag overrides, applied above every
	// other layer. The CLI collaborator is out of scope for this package,
	// but a host may still supply overrides programmatically (e.g. the
	// tool server reading its own launch flags).
	CLIOverrides map[string]any
}

// Resolve runs the five-layer configuration resolution pipeline:
//  1. Built-in defaults
//  2. System config (/etc/smarttree/config.toml)
//  3. User config (~/.config/smarttree/config.toml)
//  4. Project-local config (smarttree.toml in TargetDir)
//  5. Environment variables (ST_* prefix) — highest precedence
//
// CLIOverrides, when supplied, are layered on top of everything else,
// matching the gate's stated intent that environment variables are
// authoritative for the *ambient* layers while an interactive caller can
// still override explicitly.
//
// Missing config files are silently ignored; malformed ones return an
// error.
func Resolve(opts ResolveOptions) (*ResolvedConfig, error) {
	k := koanf.New(".")
	sources := make(SourceMap)

	defaultCfg := DefaultConfig()
	if err := loadLayer(k, configToFlatMap(defaultCfg), sources, SourceDefault); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	systemPath := opts.SystemConfigPath
	if systemPath == "" {
		systemPath = filepath.Join(string(filepath.Separator), "etc", "smarttree", "config.toml")
	}
	if err := loadFileLayer(k, systemPath, sources, SourceSystem); err != nil {
		return nil, err
	}

	userPath := opts.UserConfigPath
	if userPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			userPath = filepath.Join(home, ".config", "smarttree", "config.toml")
		}
	}
	if userPath != "" {
		if err := loadFileLayer(k, userPath, sources, SourceUser); err != nil {
			return nil, err
		}
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = "."
	}
	localPath := filepath.Join(targetDir, "smarttree.toml")
	if err := loadFileLayer(k, localPath, sources, SourceLocal); err != nil {
		return nil, err
	}

	envMap := buildEnvMap()
	if len(envMap) > 0 {
		if err := loadLayer(k, envMap, sources, SourceEnv); err != nil {
			return nil, fmt.Errorf("loading env vars: %w", err)
		}
	}

	if len(opts.CLIOverrides) > 0 {
		if err := loadLayer(k, opts.CLIOverrides, sources, SourceFlag); err != nil {
			return nil, fmt.Errorf("loading CLI overrides: %w", err)
		}
	}

	final := flatMapToConfig(k)

	slog.Debug("config resolved",
		"compliance", final.Compliance,
		"strict", final.Strict,
		"max_tokens", final.MaxTokensPerResponse,
	)

	return &ResolvedConfig{Config: final, Sources: sources}, nil
}

func loadFileLayer(k *koanf.Koanf, path string, sources SourceMap, src Source) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	var cfg DaemonConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	warnUndecodedKeys(meta, path)

	// Only keys the file actually sets take part in the merge, so unset
	// fields neither override lower layers nor get attributed to this one.
	flat := configToFlatMap(&cfg)
	for key := range flat {
		if !meta.IsDefined(strings.Split(key, ".")...) {
			delete(flat, key)
		}
	}
	return loadLayer(k, flat, sources, src)
}

func loadLayer(k *koanf.Koanf, m map[string]any, sources SourceMap, src Source) error {
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return fmt.Errorf("merge layer %s: %w", src.String(), err)
	}
	for key := range m {
		sources[key] = src
	}
	return nil
}

func configToFlatMap(c *DaemonConfig) map[string]any {
	m := map[string]any{
		"compliance":              string(c.Compliance),
		"allowed_paths":           c.AllowedPaths,
		"blocked_paths":           c.BlockedPaths,
		"max_tokens_per_response": c.MaxTokensPerResponse,
		"strict":                  c.Strict,
		"privacy_mode":            c.PrivacyMode,
		"disable_mcp":             c.DisableMCP,
		"disable_logging":         c.DisableLogging,
	}
	for name, enabled := range c.Features {
		m["features."+name] = enabled
	}
	return m
}

func flatMapToConfig(k *koanf.Koanf) *DaemonConfig {
	features := FeatureFlags{}
	for key, val := range k.Cut("features").Raw() {
		if b, ok := val.(bool); ok {
			features[key] = b
		}
	}

	return &DaemonConfig{
		Features:             features,
		Compliance:           CompliancePreset(k.String("compliance")),
		AllowedPaths:         k.Strings("allowed_paths"),
		BlockedPaths:         k.Strings("blocked_paths"),
		MaxTokensPerResponse: k.Int("max_tokens_per_response"),
		Strict:               k.Bool("strict"),
		PrivacyMode:          k.Bool("privacy_mode"),
		DisableMCP:           k.Bool("disable_mcp"),
		DisableLogging:       k.Bool("disable_logging"),
	}
}
