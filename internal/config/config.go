// Package config loads sweldo settings from a config file, a .env file and
// SWELDO_* environment variables.
//
// Precedence, highest first: environment, config file, defaults. A .env file
// in the working directory is loaded into the environment before anything
// else is read, but never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g.
// SWELDO_SYNC_BATCH_SIZE for sync.batch_size.
const EnvPrefix = "SWELDO"

// Config is the full set of runtime settings.
type Config struct {
	DBRoot    string          `mapstructure:"db_root" yaml:"db_root"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Ledger    LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
	Transform TransformConfig `mapstructure:"transform" yaml:"transform"`
	Log       logging.Config  `mapstructure:"log" yaml:"log"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Serve     ServeConfig     `mapstructure:"serve" yaml:"serve"`

	// File is the config file that was read, empty if none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type RemoteConfig struct {
	Driver string       `mapstructure:"driver" yaml:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	S3     S3Config     `mapstructure:"s3" yaml:"s3"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Region string `mapstructure:"region" yaml:"region"`
}

type SyncConfig struct {
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

type LedgerConfig struct {
	// MaxEntries caps history per document; 0 keeps everything.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

type TransformConfig struct {
	SniffDateStrings bool `mapstructure:"sniff_date_strings" yaml:"sniff_date_strings"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type ServeConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_root", ".")
	v.SetDefault("remote.driver", docstore.DriverSQLite)
	v.SetDefault("remote.sqlite.path", "remote.db")
	v.SetDefault("remote.s3.bucket", "")
	v.SetDefault("remote.s3.prefix", "")
	v.SetDefault("remote.s3.region", "")
	v.SetDefault("sync.batch_size", 5)
	v.SetDefault("ledger.max_entries", 0)
	v.SetDefault("transform.sniff_date_strings", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("watch.debounce", 2*time.Second)
	v.SetDefault("serve.port", 8080)
}

// Load reads configuration. When path is empty, sweldo.{yaml,toml,json} is
// searched in the working directory and $HOME/.config/sweldo; a missing
// file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sweldo")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sweldo"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a sync.
func (c *Config) Validate() error {
	if c.DBRoot == "" {
		return fmt.Errorf("db_root must not be empty")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive (got %d)", c.Sync.BatchSize)
	}
	if c.Ledger.MaxEntries < 0 {
		return fmt.Errorf("ledger.max_entries must not be negative (got %d)", c.Ledger.MaxEntries)
	}
	switch c.Remote.Driver {
	case docstore.DriverSQLite, docstore.DriverS3, docstore.DriverMemory:
	default:
		return fmt.Errorf("unknown remote.driver %q", c.Remote.Driver)
	}
	if c.Remote.Driver == docstore.DriverS3 && c.Remote.S3.Bucket == "" {
		return fmt.Errorf("remote.s3.bucket is required for the s3 driver")
	}
	return nil
}

// Docstore returns the remote store settings. A relative SQLite path is
// resolved against db_root.
func (c *Config) Docstore() docstore.Config {
	path := c.Remote.SQLite.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(c.DBRoot, path)
	}
	return docstore.Config{
		Driver:     c.Remote.Driver,
		SQLitePath: path,
		S3Bucket:   c.Remote.S3.Bucket,
		S3Prefix:   c.Remote.S3.Prefix,
		S3Region:   c.Remote.S3.Region,
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
