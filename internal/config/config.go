// Package config loads quarry settings from defaults, an optional file and
// QUARRY_ prefixed environment variables.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/quarry/internal/errors"
)

// Storage kinds accepted by storage.kind.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// Config is the full set of settings.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Query   QueryConfig   `mapstructure:"query"`
	Mapping MappingConfig `mapstructure:"mapping"`
	Storage StorageConfig `mapstructure:"storage"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

type QueryConfig struct {
	PerPage int `mapstructure:"per_page"`
}

type MappingConfig struct {
	Dir  string `mapstructure:"dir"`
	Root string `mapstructure:"root"`
}

type StorageConfig struct {
	Kind       string `mapstructure:"kind"`
	SQLitePath string `mapstructure:"sqlite_path"`
	FileDir    string `mapstructure:"file_dir"`
}

// SetDefaults registers default values for every option.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("query.per_page", 20)
	v.SetDefault("mapping.dir", "mappings")
	v.SetDefault("mapping.root", "app")
	v.SetDefault("storage.kind", StorageMemory)
	v.SetDefault("storage.sqlite_path", "quarry.db")
	v.SetDefault("storage.file_dir", "data")
}

// NewViper builds a viper instance with defaults and env binding.
// configPath may be empty.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configPath)
		}
	}
	return v, nil
}

// Load reads configuration from configPath (optional) and the environment.
func Load(configPath string) (*Config, error) {
	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.Query.PerPage <= 0 {
		return errors.NewInvalidRequestError("query.per_page must be positive, got %d", c.Query.PerPage)
	}
	if c.Mapping.Root == "" {
		return errors.NewInvalidRequestError("mapping.root must not be empty")
	}
	switch c.Storage.Kind {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.NewInvalidRequestError("storage.sqlite_path is required for sqlite storage")
		}
	case StorageFile:
		if c.Storage.FileDir == "" {
			return errors.NewInvalidRequestError("storage.file_dir is required for file storage")
		}
	default:
		return errors.NewInvalidRequestError("unknown storage.kind %q", c.Storage.Kind)
	}
	return nil
}
