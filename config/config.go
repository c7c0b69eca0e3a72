// Package config loads the harness configuration: a YAML file, then
// environment overrides, then defaults for whatever is still unset.
package config

import (
	"dbeval/benchmark/crud"
	"dbeval/benchmark/engines/mongo"
	"dbeval/benchmark/engines/postgres"
	"dbeval/benchmark/integrity"
	"os"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	MongoDB    = "mongodb"
	PostgreSQL = "postgresql"
	Memory     = "memory"
)

const defaultDatabase = "comparison_test"

type Config struct {
	Backends   []string `yaml:"backends"`
	Sizes      []int    `yaml:"sizes"`
	Seed       int64    `yaml:"seed"` // 0 picks a random seed
	ResultFile string   `yaml:"resultFile"`

	Postgres  postgres.Config   `yaml:"postgres"`
	Mongo     mongo.Config      `yaml:"mongodb"`
	Integrity integrity.Options `yaml:"integrity"`
}

// Load reads the config file at path (none if empty) and applies the
// environment overrides and defaults before validating the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without the validation, for callers that override fields
// first.
func Read(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"MONGODB_URI":       &c.Mongo.URI,
		"MONGODB_DATABASE":  &c.Mongo.Database,
		"POSTGRES_HOST":     &c.Postgres.Host,
		"POSTGRES_DATABASE": &c.Postgres.Database,
		"POSTGRES_USER":     &c.Postgres.User,
		"POSTGRES_PASSWORD": &c.Postgres.Password,
		"POSTGRES_SSLMODE":  &c.Postgres.SSLMode,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}
	if v, ok := os.LookupEnv("POSTGRES_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid POSTGRES_PORT %q", v)
		}
		c.Postgres.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.Backends) == 0 {
		c.Backends = []string{MongoDB, PostgreSQL}
	}
	if len(c.Sizes) == 0 {
		c.Sizes = append([]int{}, crud.DefaultSizes...)
	}
	if c.ResultFile == "" {
		c.ResultFile = "comparison_results.json"
	}

	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.User == "" {
		c.Postgres.User = "postgres"
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = defaultDatabase
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "require"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = defaultDatabase
	}
	if c.Integrity.SpeedOrders == 0 {
		c.Integrity.SpeedOrders = integrity.DefaultOptions.SpeedOrders
	}
	if c.Integrity.PairedTransactions == 0 {
		c.Integrity.PairedTransactions = integrity.DefaultOptions.PairedTransactions
	}
}

// Validate sorts the sizes and checks the resulting configuration.
func (c *Config) Validate() error {
	sort.Ints(c.Sizes)
	for i, size := range c.Sizes {
		if size <= 0 {
			return errors.Newf("dataset size %d is not positive", size)
		}
		if i > 0 && size == c.Sizes[i-1] {
			return errors.Newf("dataset size %d listed twice", size)
		}
	}
	if c.Integrity.SpeedOrders < 0 || c.Integrity.PairedTransactions < 0 {
		return errors.New("integrity probe counts must not be negative")
	}

	seen := map[string]bool{}
	for _, b := range c.Backends {
		switch b {
		case MongoDB:
			if c.Mongo.URI == "" {
				return errors.New("mongodb backend selected but no connection string set (MONGODB_URI)")
			}
		case PostgreSQL, Memory:
		default:
			return errors.Newf("unknown backend %q", b)
		}
		if seen[b] {
			return errors.Newf("backend %q listed twice", b)
		}
		seen[b] = true
	}
	return nil
}
