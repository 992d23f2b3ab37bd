// Package config loads the settings of the gofhir-profiler command from a
// config file, PROFILER_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gofhir/profiler"
	"github.com/gofhir/profiler/pkg/export"
	"github.com/gofhir/profiler/pkg/loader"
	"github.com/gofhir/profiler/pkg/logger"
)

// EnvPrefix prefixes every environment variable, e.g. PROFILER_LOG_LEVEL.
const EnvPrefix = "PROFILER"

// Config holds the command settings.
type Config struct {
	// PackagePath is the FHIR package cache directory.
	PackagePath string `mapstructure:"package_path"`
	// Packages lists "name#version" references or .tgz files holding base definitions.
	Packages []string `mapstructure:"packages"`
	// RegistryURL is used to download packages missing from the cache.
	RegistryURL string `mapstructure:"registry_url"`
	// Fetch allows downloads from RegistryURL.
	Fetch bool `mapstructure:"fetch"`

	FHIRVersion string `mapstructure:"fhir_version"`
	LogLevel    string `mapstructure:"log_level"`
	Workers     int    `mapstructure:"workers"`
	CacheSize   int    `mapstructure:"cache_size"`

	Snapshot     bool `mapstructure:"snapshot"`
	Differential bool `mapstructure:"differential"`
	Pretty       bool `mapstructure:"pretty"`
	Validate     bool `mapstructure:"validate"`
	Strict       bool `mapstructure:"strict"`
}

var keys = []string{
	"package_path", "packages", "registry_url", "fetch", "fhir_version", "log_level",
	"workers", "cache_size", "snapshot", "differential", "pretty", "validate", "strict",
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("package_path", loader.DefaultPackagePath())
	v.SetDefault("packages", []string{loader.CorePackages["4.0.1"].String()})
	v.SetDefault("registry_url", loader.DefaultRegistryURL)
	v.SetDefault("fetch", false)
	v.SetDefault("fhir_version", "4.0.1")
	v.SetDefault("log_level", "warn")
	v.SetDefault("workers", 0)
	v.SetDefault("cache_size", 64)
	v.SetDefault("snapshot", true)
	v.SetDefault("differential", true)
	v.SetDefault("pretty", true)
	v.SetDefault("validate", true)
	v.SetDefault("strict", false)

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the settings. A named file must exist; without one, an optional
// .gofhir-profiler.{yaml,json} in the working directory is read.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".gofhir-profiler")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// A single env value arrives as one comma separated string.
	if len(cfg.Packages) == 1 && strings.Contains(cfg.Packages[0], ",") {
		cfg.Packages = strings.Split(cfg.Packages[0], ",")
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check reports settings that cannot be used as given and normalizes the
// FHIR version to its number, e.g. "R4" to "4.0.1".
func (c *Config) Check() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	v, err := profiler.ParseVersion(c.FHIRVersion)
	if err != nil {
		return err
	}
	c.FHIRVersion = v.Number()
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// ExportOptions returns the export options the settings select.
func (c *Config) ExportOptions() []export.Option {
	return []export.Option{
		export.WithSnapshot(c.Snapshot),
		export.WithDifferential(c.Differential),
		export.WithPretty(c.Pretty),
		export.WithValidation(c.Validate),
		export.WithStrict(c.Strict),
	}
}
