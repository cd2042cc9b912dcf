package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// PacksDir is the directory holding quest pack JSON files.
	// Defaults to <base>/questpacks.
	PacksDir string `json:"packs_dir,omitempty"`

	// HomeRegionRadius is the geofence radius around the home coordinate,
	// in meters.
	HomeRegionRadius float64 `json:"home_region_radius,omitempty"`

	// CaptureTimeoutSecs bounds a one-shot current-location request.
	CaptureTimeoutSecs int `json:"capture_timeout_secs,omitempty"`

	// WebBind and WebPort configure the widget web server.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// LogMode selects the zap configuration: "dev" or "prod".
	LogMode string `json:"log_mode,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HomeRegionRadius:   500,
		CaptureTimeoutSecs: 10,
		WebBind:            "127.0.0.1",
		WebPort:            7438,
		LogMode:            "dev",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist. PacksDir defaults to
// baseDir/questpacks when unset.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.sidequests.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if cfg.PacksDir == "" {
		cfg.PacksDir = filepath.Join(baseDir, "questpacks")
	}
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.PacksDir = overlay.PacksDir
	if result.PacksDir == "" {
		result.PacksDir = base.PacksDir
	}

	result.HomeRegionRadius = overlay.HomeRegionRadius
	if result.HomeRegionRadius == 0 {
		result.HomeRegionRadius = base.HomeRegionRadius
	}

	result.CaptureTimeoutSecs = overlay.CaptureTimeoutSecs
	if result.CaptureTimeoutSecs == 0 {
		result.CaptureTimeoutSecs = base.CaptureTimeoutSecs
	}

	result.WebBind = overlay.WebBind
	if result.WebBind == "" {
		result.WebBind = base.WebBind
	}

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	result.LogMode = overlay.LogMode
	if result.LogMode == "" {
		result.LogMode = base.LogMode
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
