package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// embeddedDrivers lists every registered SQLite driver; embedded tests run
// once per driver.
var embeddedDrivers = []string{DriverMattn, DriverModernc}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// embeddedConfig returns a config for a fresh database file in a temp dir.
func embeddedConfig(t *testing.T, driver string) Config {
	t.Helper()
	return Config{
		Backend: BackendEmbedded,
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Driver:  driver,
	}
}

// createTestStore opens a bootstrapped embedded store closed at test end.
func createTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	return openTestStore(t, embeddedConfig(t, driver))
}

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err, "Open(%+v)", cfg)
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachDriver runs fn as a subtest per embedded driver.
func forEachDriver(t *testing.T, fn func(t *testing.T, driver string)) {
	t.Helper()
	for _, driver := range embeddedDrivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, driver)
		})
	}
}

func fpOf(ch byte) fingerprint.Fingerprint {
	b := make([]byte, fingerprint.Length)
	for i := range b {
		b[i] = ch
	}
	return fingerprint.Fingerprint(b)
}

func entry(category, value string) record.Entry {
	return record.Entry{Category: category, Value: value}
}

// rawPayload reads classified_text directly, bypassing decode.
func rawPayload(t *testing.T, s *Store, fp fingerprint.Fingerprint) string {
	t.Helper()
	var payload string
	err := s.db.QueryRow(s.d.get, string(fp)).Scan(&payload)
	require.NoError(t, err)
	return payload
}
