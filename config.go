package zastepstwa

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file.
// Durations are written as Go durations, e.g. "10m".
type FileConfig struct {
	Origin          string        `yaml:"origin"`
	CacheDir        string        `yaml:"cacheDir"`
	Freshness       time.Duration `yaml:"freshness"`
	Port            int           `yaml:"port"`
	Timezone        string        `yaml:"timezone"`
	UpstreamTimeout time.Duration `yaml:"upstreamTimeout"`
	// Journal is "memory" or the file name of an SQLite database.
	Journal  string   `yaml:"journal"`
	Messages Messages `yaml:"messages"`
}

// LoadConfig reads the configuration file.
func LoadConfig(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("could not parse %s: %w", filename, err)
	}
	if config.Freshness < 0 || config.UpstreamTimeout < 0 {
		return config, fmt.Errorf("%s: durations must not be negative", filename)
	}
	return config, nil
}

// Location loads the configured time zone, time.Local if none.
func (c FileConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
