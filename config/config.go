// Package config loads image-dedup settings from defaults, an optional TOML
// file and command line overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/signalhandler"
	"github.com/OiAnthony/image-deduplicate/utils"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is read from the working directory when no --config is given
const DefaultFile = ".image-dedup.toml"

const (
	DefaultHashSize  = 8
	DefaultThreshold = 10
	MinHashSize      = 2 // a 1x1 average hash is always 1
	MaxHashSize      = 64
)

type HashConfig struct {
	Size      int    `toml:"size"`
	Algorithm string `toml:"algorithm"`
}

type GroupConfig struct {
	Threshold int    `toml:"threshold"`
	Select    string `toml:"select"`
}

type CacheConfig struct {
	Path       string `toml:"path"`
	Backend    string `toml:"backend"`
	FlushEvery int    `toml:"flush_every"`
	Disabled   bool   `toml:"disabled"`
}

type ScanConfig struct {
	Workers int `toml:"workers"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config represents the image-dedup configuration
type Config struct {
	Hash  HashConfig  `toml:"hash"`
	Group GroupConfig `toml:"group"`
	Cache CacheConfig `toml:"cache"`
	Scan  ScanConfig  `toml:"scan"`
	Log   LogConfig   `toml:"log"`

	source string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Hash: HashConfig{
			Size:      DefaultHashSize,
			Algorithm: string(imageprocessor.AlgorithmAverage),
		},
		Group: GroupConfig{
			Threshold: DefaultThreshold,
			Select:    string(grouping.PolicyFirst),
		},
		Cache: CacheConfig{
			Path:       utils.GetDefaultCachePath(),
			Backend:    database.BackendSQLite,
			FlushEvery: database.DefaultFlushEvery,
		},
		Scan: ScanConfig{Workers: signalhandler.GetOptimalProcs()},
		Log:  LogConfig{Level: "warn"},
	}
}

// Load returns the defaults overlaid with the TOML file at path. When path is
// empty, DefaultFile is used if it exists; an explicitly named file must exist.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.source = path
	return cfg, nil
}

// Source returns the file the configuration was read from, or "" for defaults
func (c *Config) Source() string {
	return c.source
}

// Validate checks ranges and names. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Hash.Size < MinHashSize || c.Hash.Size > MaxHashSize {
		errs = append(errs, fmt.Errorf("hash size %d out of range [%d, %d]", c.Hash.Size, MinHashSize, MaxHashSize))
	}

	alg, err := imageprocessor.ParseAlgorithm(c.Hash.Algorithm)
	if err != nil {
		errs = append(errs, err)
	} else if !alg.SupportsHashSize(c.Hash.Size) {
		errs = append(errs, fmt.Errorf("algorithm %s does not support hash size %d (need a power of two bit count of at least 64, e.g. 8 or 16)", alg, c.Hash.Size))
	}

	if err := utils.ValidateThreshold(c.Group.Threshold, c.Hash.Size); err != nil {
		errs = append(errs, err)
	}
	if _, err := grouping.ParsePolicy(c.Group.Select); err != nil {
		errs = append(errs, err)
	}

	switch c.Cache.Backend {
	case database.BackendSQLite, database.BackendBolt, database.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.FlushEvery < 0 {
		errs = append(errs, fmt.Errorf("flush_every must not be negative"))
	}
	if !c.Cache.Disabled && c.Cache.Backend != database.BackendMemory && c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache path must be set for backend %s", c.Cache.Backend))
	}

	if c.Scan.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Scan.Workers))
	}

	return errors.Join(errs...)
}

// Profile returns the cache profile matching the hash settings
func (c *Config) Profile() database.Profile {
	return database.Profile{Algorithm: c.Hash.Algorithm, HashSize: c.Hash.Size}
}

// CacheBackend returns the backend to open, honoring Disabled
func (c *Config) CacheBackend() string {
	if c.Cache.Disabled {
		return database.BackendMemory
	}
	return c.Cache.Backend
}
