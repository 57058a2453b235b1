package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"validd/pkg/types"
)

// SafetyProfile collects the operational margins previously spread across
// near-identical server variants. Zero values mean "unspecified" and are
// replaced by Defaults.
type SafetyProfile struct {
	// MemoryMarginMB is subtracted from available memory before a model is
	// considered to fit.
	MemoryMarginMB int `json:"memory_margin_mb" yaml:"memory_margin_mb" toml:"memory_margin_mb"`
	// MaxLoadRetries bounds load attempts per EnsureLoaded call.
	MaxLoadRetries int `json:"max_load_retries" yaml:"max_load_retries" toml:"max_load_retries"`
	// RetryBaseDelay is multiplied by the attempt index between retries.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" toml:"retry_base_delay"`
	// LoadDeadline is the hard wall-clock ceiling per load attempt.
	LoadDeadline time.Duration `json:"load_deadline" yaml:"load_deadline" toml:"load_deadline"`
	// MaxTokens caps requested completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	// MinArtifactBytes is the integrity size floor for model files.
	MinArtifactBytes int64 `json:"min_artifact_bytes" yaml:"min_artifact_bytes" toml:"min_artifact_bytes"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`

	// Models lists the selectable descriptors in preference order,
	// smallest first; the last fitting entry is "most capable that fits".
	Models []types.ModelDescriptor `json:"models" yaml:"models" toml:"models"`
	// Affinity maps a field type to a preferred descriptor id.
	Affinity map[string]string `json:"affinity" yaml:"affinity" toml:"affinity"`
	// Fallback is the descriptor order to walk when no affinity applies.
	Fallback []string `json:"fallback" yaml:"fallback" toml:"fallback"`

	Profile SafetyProfile `json:"profile" yaml:"profile" toml:"profile"`

	// CacheLookupThreshold is the minimum confidence for serving a cached
	// decision; CachePersistFloor is the minimum for persisting one.
	CacheLookupThreshold float64 `json:"cache_lookup_threshold" yaml:"cache_lookup_threshold" toml:"cache_lookup_threshold"`
	CachePersistFloor    float64 `json:"cache_persist_floor" yaml:"cache_persist_floor" toml:"cache_persist_floor"`
}

// Defaults returns the profile with unspecified fields filled in.
func (p SafetyProfile) Defaults() SafetyProfile {
	if p.MemoryMarginMB <= 0 {
		p.MemoryMarginMB = 512
	}
	if p.MaxLoadRetries <= 0 {
		p.MaxLoadRetries = 3
	}
	if p.RetryBaseDelay <= 0 {
		p.RetryBaseDelay = 5 * time.Second
	}
	if p.LoadDeadline <= 0 {
		p.LoadDeadline = 60 * time.Second
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 1024
	}
	if p.MinArtifactBytes <= 0 {
		p.MinArtifactBytes = 100 * 1024 * 1024
	}
	return p
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	expanded, err := ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	for i := range cfg.Models {
		p, err := ExpandHome(cfg.Models[i].Path)
		if err != nil {
			return cfg, err
		}
		cfg.Models[i].Path = p
	}
	return cfg, nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
