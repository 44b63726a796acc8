// Package config provides configuration loading and management for babybrowser.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultTimePoints are the age brackets of the MGH ADC atlas, youngest first.
var DefaultTimePoints = []string{
	"week0-1",
	"quarter0_excludingweek0",
	"quarter1",
	"quarter2",
	"quarter3",
	"year1-2",
	"year2-3",
	"year3-4",
	"year4-5",
	"year5-6",
}

// DefaultVolumeTypes are the statistic suffixes: the mean atlas and its
// standard deviation.
var DefaultVolumeTypes = []string{"", "_stdev"}

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Atlas locates the atlas files on disk
	Atlas struct {
		// Root is the directory holding the atlas tree
		Root string `yaml:"root" toml:"root"`

		// RegisteredDir is the subdirectory of Root with the rigidly registered 3D atlases
		RegisteredDir string `yaml:"registeredDir" toml:"registered_dir"`

		// FilePattern names a 3D atlas file from its timepoint and volume type
		FilePattern string `yaml:"filePattern" toml:"file_pattern"`

		// Developmental is the 4D atlas, relative to Root unless absolute
		Developmental string `yaml:"developmental" toml:"developmental"`

		// VolumeTypes are the statistic suffixes to load
		VolumeTypes []string `yaml:"volumeTypes" toml:"volume_types"`

		// TimePoints label the frames of the developmental atlas, in order
		TimePoints []string `yaml:"timePoints" toml:"time_points"`
	} `yaml:"atlas" toml:"atlas"`

	// Logging parameters
	Logging struct {
		// Level is a logrus level name
		Level string `yaml:"level" toml:"level"`

		// File enables a rotating log file when set
		File string `yaml:"file" toml:"file"`

		// MaxSize is the log file size in megabytes before rotation
		MaxSize int `yaml:"maxSize" toml:"max_log_size"`

		// MaxAge is the number of days to keep rotated logs
		MaxAge int `yaml:"maxAge" toml:"max_log_age"`
	} `yaml:"logging" toml:"logging"`

	// Preview controls JPEG export of the developmental atlas frames
	Preview struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Dir     string `yaml:"dir" toml:"dir"`
		Axis    string `yaml:"axis" toml:"axis"`
		Quality int    `yaml:"quality" toml:"quality"`
	} `yaml:"preview" toml:"preview"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Atlas.Root = "."
	cfg.Atlas.RegisteredDir = "atlases_rigidregistered"
	cfg.Atlas.FilePattern = "atlas_%s%s_rigidtoyear1-2.nii.gz"
	cfg.Atlas.Developmental = filepath.Join("babyBrain", "MGH_ADC_Atlases_registered_4Ddramms", "reg_allatlases_dramms4D.nii")
	cfg.Atlas.VolumeTypes = append([]string(nil), DefaultVolumeTypes...)
	cfg.Atlas.TimePoints = append([]string(nil), DefaultTimePoints...)

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 28

	cfg.Preview.Enabled = false
	cfg.Preview.Dir = "previews"
	cfg.Preview.Axis = "z"
	cfg.Preview.Quality = 90

	return cfg
}

// DevelopmentalPath returns the path of the 4D atlas.
func (c *Config) DevelopmentalPath() string {
	if filepath.IsAbs(c.Atlas.Developmental) {
		return c.Atlas.Developmental
	}
	return filepath.Join(c.Atlas.Root, c.Atlas.Developmental)
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Atlas.Root == "":
		return errors.New("atlas root must be set")
	case len(c.Atlas.TimePoints) == 0:
		return errors.New("at least one timepoint is required")
	case strings.Count(c.Atlas.FilePattern, "%s") != 2:
		return fmt.Errorf("file pattern %q must contain two %%s verbs", c.Atlas.FilePattern)
	case c.Preview.Quality < 1 || c.Preview.Quality > 100:
		return fmt.Errorf("preview quality %d not in range [1, 100]", c.Preview.Quality)
	}

	seen := make(map[string]bool, len(c.Atlas.TimePoints))
	for _, tp := range c.Atlas.TimePoints {
		if tp == "" {
			return errors.New("timepoint labels must not be empty")
		}
		if seen[tp] {
			return fmt.Errorf("duplicate timepoint %q", tp)
		}
		seen[tp] = true
	}

	switch c.Preview.Axis {
	case "x", "y", "z":
	default:
		return fmt.Errorf("invalid preview axis: %s (must be x, y, or z)", c.Preview.Axis)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
