// Package config loads the host configuration from YAML, TOML or JSON files
// with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// EnvPrefix prefixes every environment override, e.g. PRAGTICAL_LOG_LEVEL.
const EnvPrefix = "PRAGTICAL_"

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// HostConfig configures the embedded interpreter host.
type HostConfig struct {
	Log LogConfig `json:"log,omitempty" yaml:"log" toml:"log" envPrefix:"LOG_"`

	// SearchPaths are Lua module patterns prepended to package.path.
	SearchPaths []string `json:"search_paths,omitempty" yaml:"search_paths" toml:"search_paths" env:"SEARCH_PATHS" envSeparator:";"`

	Limits LimitsConfig `json:"limits,omitempty" yaml:"limits" toml:"limits" envPrefix:"LIMITS_"`
}

// LogConfig configures the host logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level" toml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `json:"format,omitempty" yaml:"format" toml:"format" env:"FORMAT" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json"`
	Source bool   `json:"source,omitempty" yaml:"source" toml:"source" env:"SOURCE"`
}

// LimitsConfig bounds the resources native modules may use. Zero selects
// the built-in default.
type LimitsConfig struct {
	MaxOutputSize int `json:"max_output_size,omitempty" yaml:"max_output_size" toml:"max_output_size" env:"MAX_OUTPUT_SIZE" validate:"gte=0" jsonschema:"minimum=0"`
	MaxThreads    int `json:"max_threads,omitempty" yaml:"max_threads" toml:"max_threads" env:"MAX_THREADS" validate:"gte=0,lte=4096" jsonschema:"minimum=0,maximum=4096"`
	ShmemCapacity int `json:"shmem_capacity,omitempty" yaml:"shmem_capacity" toml:"shmem_capacity" env:"SHMEM_CAPACITY" validate:"gte=0" jsonschema:"minimum=0"`
}

// Default returns the configuration used when no file is given.
func Default() HostConfig {
	return HostConfig{
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path, applies environment overrides and validates the result.
// The format is chosen by extension: .yaml, .yml, .toml or .json. An empty
// path loads the defaults plus environment overrides.
func Load(path string) (HostConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		format, err := FormatOf(path)
		if err != nil {
			return cfg, err
		}
		if err := Decode(format, data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FormatOf returns the document format for a file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	case ".json":
		return "json", nil
	}
	return "", &derrors.ConfigError{Err: fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))}
}

// Decode parses data in format into cfg. Fields absent from data keep their
// current values.
func Decode(format string, data []byte, cfg *HostConfig) error {
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	case "json":
		err = json.Unmarshal(data, cfg)
	default:
		return &derrors.ConfigError{Err: fmt.Errorf("unsupported config format %q", format)}
	}
	if err != nil {
		return &derrors.ConfigError{Err: fmt.Errorf("failed to parse %s: %w", format, err)}
	}
	return nil
}

// ApplyEnv overrides cfg with PRAGTICAL_* environment variables.
func ApplyEnv(cfg *HostConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return &derrors.ConfigError{Err: fmt.Errorf("parse env: %w", err)}
	}
	return nil
}

// Validate checks field constraints. The first violation is returned as a
// *errors.ConfigError naming the field.
func (c HostConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &derrors.ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("failed on the '%s' rule", fe.Tag()),
		}
	}
	return &derrors.ConfigError{Err: err}
}

// HostLimits converts the configured limits, filling zero values from
// hostfuncs.DefaultLimits.
func (c HostConfig) HostLimits() hostfuncs.Limits {
	l := hostfuncs.DefaultLimits()
	if c.Limits.MaxOutputSize > 0 {
		l.MaxOutputSize = c.Limits.MaxOutputSize
	}
	if c.Limits.MaxThreads > 0 {
		l.MaxThreads = c.Limits.MaxThreads
	}
	if c.Limits.ShmemCapacity > 0 {
		l.ShmemCapacity = c.Limits.ShmemCapacity
	}
	return l
}
