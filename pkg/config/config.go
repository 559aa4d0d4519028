// Package config loads and validates the YAML configuration an embedder
// uses to build an index: dimensionality, metric, HNSW tuning parameters,
// and an optional sealed-persistence passphrase section.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/vecdex/pkg/index"
	"github.com/orneryd/vecdex/pkg/vecmath"
)

// Encryption configures sealed (encrypted-at-rest) persistence. A zero
// value (empty Passphrase) disables sealing.
type Encryption struct {
	Passphrase string `yaml:"passphrase"`
}

// Config is the YAML-loadable shape of everything needed to build and
// tune an index.
type Config struct {
	Dims           uint16      `yaml:"dims"`
	Metric         string      `yaml:"metric"`
	M0             int         `yaml:"m0"`
	EfConstruction int         `yaml:"ef_construction"`
	EfSearch       int         `yaml:"ef_search"`
	Seed           int64       `yaml:"seed"`
	Encryption     *Encryption `yaml:"encryption,omitempty"`
}

// Load reads and parses a YAML config file, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &index.Error{Code: index.FileIOError, Message: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &index.Error{Code: index.InvalidFile, Message: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants Load and callers building a
// Config by hand both need enforced before it reaches New.
func (c *Config) Validate() error {
	if c.Dims == 0 {
		return &index.Error{Code: index.InvalidDimensions, Message: "dims must be > 0"}
	}
	if !c.metric().Valid() {
		return &index.Error{Code: index.InvalidMethod, Message: "metric must be one of l2_squared, cosine, dot"}
	}
	if c.M0 < 0 || c.EfConstruction < 0 || c.EfSearch < 0 {
		return &index.Error{Code: index.InvalidArgument, Message: "m0/ef_construction/ef_search must be non-negative"}
	}
	return nil
}

func (c *Config) metric() vecmath.Metric {
	switch c.Metric {
	case "cosine":
		return vecmath.Cosine
	case "dot":
		return vecmath.Dot
	case "l2_squared", "":
		return vecmath.L2Squared
	default:
		return vecmath.Metric(0xFFFF) // deliberately invalid, caught by Validate
	}
}

// ToIndexConfig translates the validated YAML shape into the façade's
// Config, for direct use with index.New.
func (c *Config) ToIndexConfig() *index.Config {
	return &index.Config{
		M0:          c.M0,
		EfConstruct: c.EfConstruction,
		EfSearch:    c.EfSearch,
		Seed:        c.Seed,
	}
}

// Sealed reports whether this config requests encrypted-at-rest
// persistence.
func (c *Config) Sealed() bool {
	return c.Encryption != nil && c.Encryption.Passphrase != ""
}

// Build constructs an index.Index using this config's dims/metric and
// HNSW overrides.
func (c *Config) Build() (*index.Index, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return index.New(index.HNSW, c.metric(), c.Dims, c.ToIndexConfig())
}
