package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// RunConfig represents the root configuration for an extraction run.
// All fields are optional; Get* methods supply defaults for anything
// the JSON omits, so partial configs are safe.
type RunConfig struct {
	// Scheduling params
	Workers     *int    `json:"workers,omitempty"`
	UnitTimeout *string `json:"unit_timeout,omitempty"` // duration string like "60s"

	// Merge params
	MergeScope *string `json:"merge_scope,omitempty"` // "all" or "fail_only"

	// Input params
	ProfilesPath  *string `json:"profiles_path,omitempty"`
	ClusterPoints *bool   `json:"cluster_points,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields set to nil.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.Workers != nil {
		if *c.Workers < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
		}
	}

	if c.UnitTimeout != nil && *c.UnitTimeout != "" {
		d, err := time.ParseDuration(*c.UnitTimeout)
		if err != nil {
			return fmt.Errorf("invalid unit_timeout '%s': %w", *c.UnitTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("unit_timeout must be positive, got %s", d)
		}
	}

	if c.MergeScope != nil && *c.MergeScope != "" {
		switch *c.MergeScope {
		case "all", "fail_only":
		default:
			return fmt.Errorf("merge_scope must be \"all\" or \"fail_only\", got %q", *c.MergeScope)
		}
	}

	return nil
}

// GetWorkers returns the workers value or the default (one per CPU).
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetUnitTimeout parses and returns the UnitTimeout as a time.Duration.
func (c *RunConfig) GetUnitTimeout() time.Duration {
	if c.UnitTimeout == nil || *c.UnitTimeout == "" {
		return 60 * time.Second // default
	}
	d, err := time.ParseDuration(*c.UnitTimeout)
	if err != nil {
		return 60 * time.Second // default on parse error
	}
	return d
}

// GetMergeScope returns the merge_scope value or the default.
func (c *RunConfig) GetMergeScope() string {
	if c.MergeScope == nil || *c.MergeScope == "" {
		return "all" // default: merge regardless of quality
	}
	return *c.MergeScope
}

// GetProfilesPath returns the profiles_path value or empty for built-in
// profiles.
func (c *RunConfig) GetProfilesPath() string {
	if c.ProfilesPath == nil {
		return ""
	}
	return *c.ProfilesPath
}

// GetClusterPoints returns the cluster_points value or the default.
func (c *RunConfig) GetClusterPoints() bool {
	if c.ClusterPoints == nil {
		return false // default: instances arrive pre-clustered
	}
	return *c.ClusterPoints
}
