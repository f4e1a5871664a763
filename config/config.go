// Package config holds the server's static configuration: runtime limits,
// filesystem allow-list, and the optional LLM model name. Values come from
// compiled-in defaults, an optional dataloom.yaml, and DATALOOM_* env
// overrides, in that order.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the config file looked up in the working directory.
const ConfigFileName = "dataloom.yaml"

// Limits mirrors the runtime guardrails section of the config file.
type Limits struct {
	MaxConcurrentRequests int           `koanf:"max_concurrent_requests"`
	MaxOpenDatasets       int           `koanf:"max_open_datasets"`
	MaxPayloadBytes       int           `koanf:"max_payload_bytes"`
	MaxRowsPerOp          int           `koanf:"max_rows_per_op"`
	PreviewRowLimit       int           `koanf:"preview_row_limit"`
	OperationTimeout      time.Duration `koanf:"operation_timeout"`
	AcquireRequestTimeout time.Duration `koanf:"acquire_request_timeout"`
}

// Config is the resolved server configuration.
type Config struct {
	Limits Limits   `koanf:"limits"`
	Dirs   []string `koanf:"dirs"`  // allowed dataset directories
	Model  string   `koanf:"model"` // LLM model name; empty disables instruction tools
	Writes bool     `koanf:"writes"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		Limits: Limits{
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			MaxOpenDatasets:       DefaultMaxOpenDatasets,
			MaxPayloadBytes:       DefaultMaxPayloadBytes,
			MaxRowsPerOp:          DefaultMaxRowsPerOp,
			PreviewRowLimit:       DefaultPreviewRowLimit,
			OperationTimeout:      DefaultOperationTimeout,
			AcquireRequestTimeout: DefaultAcquireRequestTimeout,
		},
	}
}

// Load resolves the configuration from defaults, an optional dataloom.yaml
// in dir (or the working directory when dir is empty), and DATALOOM_* env
// overrides for the flat keys (DATALOOM_MODEL, DATALOOM_WRITES).
func Load(dir string) (Config, error) {
	cfg := Defaults()

	k := koanf.New(".")

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, err
		}
	}

	// Flat env overrides: DATALOOM_MODEL, DATALOOM_WRITES. Multi-word
	// nested keys stay file-only; the allow-list additionally honors
	// DATALOOM_ALLOWED_DIRS via the security manager.
	if err := k.Load(env.Provider("DATALOOM_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "DATALOOM_"))
		if strings.Contains(key, "_") {
			return "" // drop multi-word env keys; they belong to other components
		}
		return key
	}), nil); err != nil {
		return cfg, err
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	cfg.applyFloors()
	return cfg, nil
}

// applyFloors restores defaults for unset or nonsensical values.
func (c *Config) applyFloors() {
	d := Defaults()
	if c.Limits.MaxConcurrentRequests <= 0 {
		c.Limits.MaxConcurrentRequests = d.Limits.MaxConcurrentRequests
	}
	if c.Limits.MaxOpenDatasets <= 0 {
		c.Limits.MaxOpenDatasets = d.Limits.MaxOpenDatasets
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits.MaxPayloadBytes = d.Limits.MaxPayloadBytes
	}
	if c.Limits.MaxRowsPerOp <= 0 {
		c.Limits.MaxRowsPerOp = d.Limits.MaxRowsPerOp
	}
	if c.Limits.PreviewRowLimit <= 0 {
		c.Limits.PreviewRowLimit = d.Limits.PreviewRowLimit
	}
	if c.Limits.OperationTimeout <= 0 {
		c.Limits.OperationTimeout = d.Limits.OperationTimeout
	}
	if c.Limits.AcquireRequestTimeout <= 0 {
		c.Limits.AcquireRequestTimeout = d.Limits.AcquireRequestTimeout
	}
}
