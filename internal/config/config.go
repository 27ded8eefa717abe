// Package config loads and validates the declarative pipeline configuration.
//
// Credentials never live here: they are read from the environment at the CLI
// boundary and passed into components as plain values.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"peerpipe/internal/dates"
)

// DefaultFile is the conventional config location at the repo root.
const DefaultFile = "pipeline.yaml"

// Config is the parsed pipeline.yaml.
type Config struct {
	Settings  Settings             `yaml:"settings"`
	Dates     dates.Policy         `yaml:"dates"`
	Queries   map[string]QueryUnit `yaml:"queries"`
	Notebooks []NotebookUnit       `yaml:"notebooks"`
	Publish   PublishSettings      `yaml:"publish"`
}

// Settings are pipeline-wide paths and parameters.
type Settings struct {
	DataDir     string `yaml:"data_dir"`
	RenderedDir string `yaml:"rendered_dir"`
	DistDir     string `yaml:"dist_dir"`
	Network     string `yaml:"network"`
}

// QueryUnit declares one data query work unit. Source and Function locate the
// producer's defining logic for fingerprinting; the producer itself is bound
// through the registry, never resolved by name at runtime.
type QueryUnit struct {
	Source     string `yaml:"source"`
	Function   string `yaml:"function"`
	OutputFile string `yaml:"output_file"`
}

// NotebookUnit declares one report notebook work unit.
type NotebookUnit struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
}

// PublishSettings configure the blob store target. Credentials come from the
// environment, not from this file.
type PublishSettings struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

// Error is a configuration error: fatal, reported before any pipeline I/O.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "config: " + e.Msg }

// Load reads and validates a pipeline configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.DataDir == "" {
		c.Settings.DataDir = "notebooks/data"
	}
	if c.Settings.RenderedDir == "" {
		c.Settings.RenderedDir = "site/public/rendered"
	}
	if c.Settings.DistDir == "" {
		c.Settings.DistDir = "site/dist"
	}
	if c.Settings.Network == "" {
		c.Settings.Network = "mainnet"
	}
}

func (c *Config) validate() error {
	for id, q := range c.Queries {
		if q.Source == "" || q.Function == "" {
			return &Error{Msg: fmt.Sprintf("query %q needs source and function", id)}
		}
		if q.OutputFile == "" {
			return &Error{Msg: fmt.Sprintf("query %q needs output_file", id)}
		}
	}
	seen := map[string]bool{}
	for _, nb := range c.Notebooks {
		if nb.ID == "" || nb.Source == "" {
			return &Error{Msg: "notebook entries need id and source"}
		}
		if seen[nb.ID] {
			return &Error{Msg: fmt.Sprintf("duplicate notebook id %q", nb.ID)}
		}
		seen[nb.ID] = true
	}
	return nil
}

// QueryIDs returns the declared query unit ids, sorted.
func (c *Config) QueryIDs() []string {
	ids := make([]string, 0, len(c.Queries))
	for id := range c.Queries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
