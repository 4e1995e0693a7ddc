// Package config loads the engine's IngestConfig the way the rest of
// this codebase's ambient packages load configuration: sensible
// defaults, overlaid by an optional YAML file, overlaid by environment
// variables -- highest-precedence source wins. This package is a
// *loader*; parsing of a host's own command-line flags remains the
// host's responsibility.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// DefaultMaxRect is the default rectangle budget (spec §6).
const DefaultMaxRect = 25000

// IngestConfig mirrors statemap_config_t from the original implementation.
type IngestConfig struct {
	MaxRect int64 `yaml:"maxrect"`
	Begin   int64 `yaml:"begin"`
	End     int64 `yaml:"end"`
	NoTags  bool  `yaml:"notags"`
	DryRun  bool  `yaml:"dryrun"`
}

// Default returns an IngestConfig with the documented defaults.
func Default() IngestConfig {
	return IngestConfig{MaxRect: DefaultMaxRect}
}

// Load builds an IngestConfig starting from Default, optionally overlaid
// by a YAML file at yamlPath (ignored if empty or missing), then by
// environment variables:
//
//	STATEMAP_MAXRECT, STATEMAP_BEGIN, STATEMAP_END, STATEMAP_NOTAGS,
//	STATEMAP_DRYRUN
func Load(yamlPath string) (IngestConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", yamlPath, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", yamlPath, err)
		}
	}

	if v, ok := os.LookupEnv("STATEMAP_MAXRECT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("STATEMAP_MAXRECT: %w", err)
		}
		cfg.MaxRect = n
	}
	if v, ok := os.LookupEnv("STATEMAP_BEGIN"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("STATEMAP_BEGIN: %w", err)
		}
		cfg.Begin = n
	}
	if v, ok := os.LookupEnv("STATEMAP_END"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("STATEMAP_END: %w", err)
		}
		cfg.End = n
	}
	if v, ok := os.LookupEnv("STATEMAP_NOTAGS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("STATEMAP_NOTAGS: %w", err)
		}
		cfg.NoTags = b
	}
	if v, ok := os.LookupEnv("STATEMAP_DRYRUN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("STATEMAP_DRYRUN: %w", err)
		}
		cfg.DryRun = b
	}

	if cfg.MaxRect <= 0 {
		cfg.MaxRect = DefaultMaxRect
	}

	return cfg, nil
}
