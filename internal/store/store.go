package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// TableName is the single cache table shared by both backends.
const TableName = "text_classification_results"

// Mode selects how Put treats an existing row.
type Mode int

const (
	// InsertOnly writes the record as given, replacing any existing payload.
	InsertOnly Mode = iota
	// UpsertMerge merges the record into an existing payload, or inserts it.
	UpsertMerge
)

func (m Mode) String() string {
	switch m {
	case InsertOnly:
		return "insert_only"
	case UpsertMerge:
		return "upsert_merge"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ResultStore is the cache contract shared by every backend.
type ResultStore interface {
	// Exists reports whether a row exists for fp.
	Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)

	// Get returns the stored record for fp with SourceFingerprint set to fp.
	// Returns ErrNotFound if no row exists.
	Get(ctx context.Context, fp fingerprint.Fingerprint) (*record.Record, error)

	// Put stores rec under fp. rec is not modified and its
	// SourceFingerprint is ignored: fp is the only key.
	Put(ctx context.Context, fp fingerprint.Fingerprint, rec *record.Record, mode Mode) error

	// Bootstrap creates the cache table if it does not exist.
	Bootstrap(ctx context.Context) error

	// Close releases the backend connection pool.
	Close() error
}

// Backend names a storage engine.
type Backend string

const (
	BackendEmbedded  Backend = "embedded"
	BackendNetworked Backend = "networked"
)

// Embedded driver names, as registered with database/sql.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// Default configuration values.
const (
	DefaultPath           = "internal_db.db"
	DefaultPort           = 5432
	DefaultSSLMode        = "disable"
	DefaultConnectTimeout = 5 * time.Second
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend Backend

	// Embedded backend.
	Path   string
	Driver string

	// Networked backend.
	Host           string
	Port           int
	DBName         string
	User           string
	Password       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// WithDefaults fills unset fields with their defaults.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendEmbedded
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Driver == "" {
		c.Driver = DriverMattn
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.SSLMode == "" {
		c.SSLMode = DefaultSSLMode
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Validate checks that c names a known backend with the parameters it needs.
// Failures are ErrBackendUnavailable: the store cannot be reached as configured.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendEmbedded:
		if c.Path == "" {
			return fmt.Errorf("config: %w: embedded backend requires path", ErrBackendUnavailable)
		}
		if c.Driver != DriverMattn && c.Driver != DriverModernc {
			return fmt.Errorf("config: %w: unknown sqlite driver %q (want %s or %s)",
				ErrBackendUnavailable, c.Driver, DriverMattn, DriverModernc)
		}
	case BackendNetworked:
		if c.Host == "" || c.DBName == "" || c.User == "" {
			return fmt.Errorf("config: %w: networked backend requires host, dbname and user", ErrBackendUnavailable)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("config: %w: invalid port %d", ErrBackendUnavailable, c.Port)
		}
	default:
		return fmt.Errorf("config: %w: unknown backend %q (want %s or %s)",
			ErrBackendUnavailable, c.Backend, BackendEmbedded, BackendNetworked)
	}
	return nil
}

// Open connects to the configured backend and bootstraps the cache table.
// A nil logger uses slog.Default().
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		s   *Store
		err error
	)
	switch cfg.Backend {
	case BackendEmbedded:
		logger.Debug("opening embedded cache", "path", cfg.Path, "driver", cfg.Driver)
		s, err = openEmbedded(ctx, cfg)
	case BackendNetworked:
		logger.Debug("opening networked cache", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBName)
		s, err = openNetworked(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	s.logger = logger.With("backend", string(cfg.Backend))

	if err := s.Bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Info("cache store ready", "table", TableName)
	return s, nil
}
