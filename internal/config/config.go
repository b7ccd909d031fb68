// Package config loads cache settings from an optional YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the file, environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// Environment variables read by Load.
const (
	EnvBackend        = "NOUN_CACHE_BACKEND"
	EnvPath           = "NOUN_CACHE_PATH"
	EnvSQLiteDriver   = "NOUN_CACHE_SQLITE_DRIVER"
	EnvHost           = "NOUN_CACHE_DB_HOST"
	EnvPort           = "NOUN_CACHE_DB_PORT"
	EnvDBName         = "NOUN_CACHE_DB_NAME"
	EnvUser           = "NOUN_CACHE_DB_USER"
	EnvPassword       = "NOUN_CACHE_DB_PASSWORD"
	EnvSSLMode        = "NOUN_CACHE_DB_SSLMODE"
	EnvConnectTimeout = "NOUN_CACHE_DB_CONNECT_TIMEOUT"
	EnvLogLevel       = "NOUN_CACHE_LOG_LEVEL"
	EnvLogFormat      = "NOUN_CACHE_LOG_FORMAT"
)

// Config is the resolved process configuration.
type Config struct {
	Store     store.Config
	LogLevel  string
	LogFormat string
}

// file is the on-disk YAML shape. The db section keeps the key names of the
// legacy db_config files (dbname, user, host, password, port).
type file struct {
	DB  dbSection  `yaml:"db"`
	Log logSection `yaml:"log,omitempty"`
}

type dbSection struct {
	Backend        string        `yaml:"backend,omitempty"`
	Path           string        `yaml:"path,omitempty"`
	Driver         string        `yaml:"driver,omitempty"`
	Host           string        `yaml:"host,omitempty"`
	Port           int           `yaml:"port,omitempty"`
	DBName         string        `yaml:"dbname,omitempty"`
	User           string        `yaml:"user,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	SSLMode        string        `yaml:"sslmode,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

type logSection struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:     store.Config{}.WithDefaults(),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load resolves the configuration. An empty path skips the file.
//
// A path that cannot be read is store.ErrBackendUnavailable: the backend
// it describes cannot be reached.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config %s: %w: file not found", path, store.ErrBackendUnavailable)
		}
		return store.WrapError(store.ErrBackendUnavailable, "read config "+path, err)
	}

	// Strict decoding rejects misspelled keys.
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	db := f.DB
	setString(&c.Store.Path, db.Path)
	setString(&c.Store.Driver, db.Driver)
	setString(&c.Store.Host, db.Host)
	setString(&c.Store.DBName, db.DBName)
	setString(&c.Store.User, db.User)
	setString(&c.Store.Password, db.Password)
	setString(&c.Store.SSLMode, db.SSLMode)
	if db.Backend != "" {
		c.Store.Backend = store.Backend(db.Backend)
	} else if db.DBName != "" {
		// Legacy files describe only a postgres connection.
		c.Store.Backend = store.BackendNetworked
	}
	if db.Port != 0 {
		c.Store.Port = db.Port
	}
	if db.ConnectTimeout > 0 {
		c.Store.ConnectTimeout = db.ConnectTimeout
	}

	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Store.Backend = store.Backend(v)
	}
	setString(&c.Store.Path, os.Getenv(EnvPath))
	setString(&c.Store.Driver, os.Getenv(EnvSQLiteDriver))
	setString(&c.Store.Host, os.Getenv(EnvHost))
	setString(&c.Store.DBName, os.Getenv(EnvDBName))
	setString(&c.Store.User, os.Getenv(EnvUser))
	setString(&c.Store.Password, os.Getenv(EnvPassword))
	setString(&c.Store.SSLMode, os.Getenv(EnvSSLMode))
	setString(&c.LogLevel, os.Getenv(EnvLogLevel))
	setString(&c.LogFormat, os.Getenv(EnvLogFormat))

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvPort, v, err)
		}
		c.Store.Port = port
	}
	if v := os.Getenv(EnvConnectTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvConnectTimeout, v, err)
		}
		c.Store.ConnectTimeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration ("5s") or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
