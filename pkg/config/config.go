// Package config loads the optional operator-supplied YAML file that
// extends the module classifier's static tables and sets logging level
// and Airbrake reporting, following the "load file into a typed struct,
// apply defaults, validate" shape the pack's config loaders use. Config
// is entirely optional: every package downstream works identically with
// a zero-value Config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/jloutsch/minidumptruck/pkg/classify"
)

// Classifier holds operator extensions to the built-in module
// classification tables. Entries only add to the named buckets; the
// built-in tables are never removed or reordered.
type Classifier struct {
	System         []string `yaml:"system"`
	GraphicsDriver []string `yaml:"graphics_driver"`
	Application    []string `yaml:"application"`
}

// Config is the top-level shape of the YAML config file.
type Config struct {
	LogLevel   string     `yaml:"log_level"`
	AirbrakeDSN string    `yaml:"airbrake_dsn"`
	Classifier Classifier `yaml:"classifier"`
}

// Default returns a Config with its documented defaults: info-level
// logging, no Airbrake DSN, no classifier extensions.
func Default() Config {
	return Config{LogLevel: "info"}
}

// Load reads and parses the YAML config file at path. A missing path
// argument (empty string) returns Default() with no error: config is
// optional.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ClassifierTables builds a classify.Tables from the config's classifier
// extension lists, on top of the built-in tables.
func (c Config) ClassifierTables() *classify.Tables {
	t := &classify.Tables{}
	if len(c.Classifier.System) > 0 {
		t.ExtraSystem = toSet(c.Classifier.System)
	}
	if len(c.Classifier.GraphicsDriver) > 0 {
		t.ExtraGraphicsDriver = toSet(c.Classifier.GraphicsDriver)
	}
	if len(c.Classifier.Application) > 0 {
		t.ExtraApplication = toSet(c.Classifier.Application)
	}
	return t
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
