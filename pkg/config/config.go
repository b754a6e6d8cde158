// Package config provides configuration loading and management for nsdmap.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"nsdmap/pkg/logging"
)

// Config represents the application configuration
type Config struct {
	// Data locates the dataset on disk
	Data struct {
		// NSDLocation is the directory that contains nsddata/, nsddata_betas/, ...
		NSDLocation string `yaml:"nsdLocation" toml:"nsd_location"`

		// Subject is the default subject index (1-8)
		Subject int `yaml:"subject" toml:"subject"`
	} `yaml:"data" toml:"data"`

	// Mapping holds the defaults applied to every transform call
	Mapping struct {
		// InterpType is one of nearest, linear, cubic, wta, surfacewta
		InterpType string `yaml:"interpType" toml:"interp_type"`

		// BadValue replaces every output location without a valid source
		BadValue float64 `yaml:"badValue" toml:"bad_value"`

		// OutputClass casts results (e.g. "float32"); empty keeps the source class
		OutputClass string `yaml:"outputClass" toml:"output_class"`

		// DivisorPolicy is "warn" (substitute the fill value) or "abort"
		DivisorPolicy string `yaml:"divisorPolicy" toml:"divisor_policy"`

		// DivisorCaution is the magnitude below which accumulated weights count as zero
		DivisorCaution float64 `yaml:"divisorCaution" toml:"divisor_caution"`

		// LabelWarnLimit triggers a warning when a label vote sees more labels
		LabelWarnLimit int `yaml:"labelWarnLimit" toml:"label_warn_limit"`
	} `yaml:"mapping" toml:"mapping"`

	// Log controls log severity and the optional rotating log file
	Log logging.LogConfig `yaml:"log" toml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.NSDLocation = "."
	cfg.Data.Subject = 1

	cfg.Mapping.InterpType = "cubic"
	cfg.Mapping.BadValue = 0
	cfg.Mapping.DivisorPolicy = "warn"
	cfg.Mapping.DivisorCaution = 1e-5
	cfg.Mapping.LabelWarnLimit = 1000

	cfg.Log.Mode = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file, or a TOML file when the
// extension is .toml. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Mapping.DivisorPolicy {
	case "warn", "abort":
	default:
		return fmt.Errorf("invalid divisorPolicy %q (want warn or abort)", c.Mapping.DivisorPolicy)
	}
	if c.Mapping.DivisorCaution < 0 {
		return fmt.Errorf("divisorCaution must be non-negative, got %g", c.Mapping.DivisorCaution)
	}
	if _, err := logging.ParseMode(c.Log.Mode); err != nil {
		return err
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// DataLocation returns the directory for one part of the dataset:
// "" for nsddata, or betas, timeseries, stimuli, behaviour.
func (c *Config) DataLocation(kind string) (string, error) {
	base := c.Data.NSDLocation
	switch kind {
	case "":
		return filepath.Join(base, "nsddata"), nil
	case "betas":
		return filepath.Join(base, "nsddata_betas"), nil
	case "timeseries":
		return filepath.Join(base, "nsddata_timeseries"), nil
	case "stimuli":
		return filepath.Join(base, "nsddata_stimuli"), nil
	case "behaviour":
		return filepath.Join(base, "nsddata", "bdata", "meadows"), nil
	}
	return "", fmt.Errorf("unknown data location %q", kind)
}

// TransformDir returns the per-subject directory holding transform fields.
func (c *Config) TransformDir(subject int) string {
	return filepath.Join(c.Data.NSDLocation, "nsddata", "ppdata",
		fmt.Sprintf("subj%02d", subject), "transforms")
}
