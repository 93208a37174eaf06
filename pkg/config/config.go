// Package config provides configuration loading and management for rsfmri.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"rsfmri/pkg/gz"
	"rsfmri/pkg/motion"
	"rsfmri/pkg/spm"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// External tools
	Tools struct {
		// Gzip and Gunzip are command lines; the file name is appended
		Gzip   string `yaml:"gzip"`
		Gunzip string `yaml:"gunzip"`

		// Matlab starts MATLAB with the SPM toolbox on its path
		Matlab string `yaml:"matlab"`
	} `yaml:"tools"`

	// Acquisition parameters
	Acquisition struct {
		// TR is the repetition time in seconds; 0 means read it from the image header
		TR float64 `yaml:"tr"`
	} `yaml:"acquisition"`

	// Processing parameters
	Processing struct {
		// Jobs bounds how many files are compressed at once
		Jobs int `yaml:"jobs"`

		// Glob selects the functional images inside a run directory
		Glob string `yaml:"glob"`
	} `yaml:"processing"`

	// Realign holds the realign & unwarp job options
	Realign spm.Options `yaml:"realign"`

	// Motion summary parameters
	Motion struct {
		// Radius is the head radius in mm for framewise displacement
		Radius float64 `yaml:"radius"`

		// FDThreshold flags volumes moving more than this many mm
		FDThreshold float64 `yaml:"fdThreshold"`
	} `yaml:"motion"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	zip := gz.DefaultOptions()
	cfg.Tools.Gzip = zip.GzipCmd
	cfg.Tools.Gunzip = zip.GunzipCmd
	cfg.Tools.Matlab = spm.DefaultMatlabCmd

	cfg.Processing.Jobs = zip.Jobs
	cfg.Processing.Glob = "*.nii*"

	cfg.Realign = spm.DefaultOptions()

	cfg.Motion.Radius = motion.DefaultRadius
	cfg.Motion.FDThreshold = 0.5

	cfg.Output.Verbose = false

	return cfg
}

// ZipOptions returns the gz options described by the configuration
func (c *Config) ZipOptions() gz.Options {
	return gz.Options{
		GzipCmd:   c.Tools.Gzip,
		GunzipCmd: c.Tools.Gunzip,
		Jobs:      c.Processing.Jobs,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
