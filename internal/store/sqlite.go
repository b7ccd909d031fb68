package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// Schema version, tracked in PRAGMA user_version:
// 1 - text_classification_results
const sqliteSchemaVersion = 1

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

var sqliteDialect = dialect{
	name: "sqlite",
	bootstrap: []string{
		sqliteSchema,
		fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion),
	},
	exists: `SELECT COUNT(hash) FROM ` + TableName + ` WHERE hash = ?`,
	get:    `SELECT classified_text FROM ` + TableName + ` WHERE hash = ?`,
	// The IMMEDIATE transaction already holds the database write lock.
	getForUpdate: `SELECT classified_text FROM ` + TableName + ` WHERE hash = ?`,
	upsert: `INSERT INTO ` + TableName + ` (hash, classified_text) VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET classified_text = excluded.classified_text`,
	insertIfAbsent: `INSERT INTO ` + TableName + ` (hash, classified_text) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING`,
	update:      `UPDATE ` + TableName + ` SET classified_text = ? WHERE hash = ?`,
	unavailable: sqliteUnavailable,
}

// openEmbedded opens the SQLite file at cfg.Path, creating it if needed.
func openEmbedded(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open(cfg.Driver, sqliteDSN(cfg.Path))
	if err != nil {
		return nil, WrapError(ErrBackendUnavailable, "open sqlite", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, WrapError(ErrBackendUnavailable, "ping sqlite", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY inside
	// this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, WrapError(ErrBackendUnavailable, fmt.Sprintf("execute %q", pragma), err)
		}
	}

	return newStore(db, sqliteDialect), nil
}

// uriPathEscaper escapes the characters that end or alter the path part of
// a SQLite file URI. SQLite decodes %XX in the path before opening it.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// sqliteDSN builds a file URI that makes every transaction BEGIN IMMEDIATE.
// Both drivers understand _txlock.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	return "file:" + uriPathEscaper.Replace(path) + "?" + q.Encode()
}

// sqliteUnavailable reports lock contention and I/O level failures from
// either driver.
func sqliteUnavailable(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		switch mattnErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen,
			sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt,
			sqlite3.ErrReadonly, sqlite3.ErrFull:
			return true
		}
		return false
	}

	var moderncErr *sqlite.Error
	if errors.As(err, &moderncErr) {
		switch moderncErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED, sqlite3lib.SQLITE_CANTOPEN,
			sqlite3lib.SQLITE_IOERR, sqlite3lib.SQLITE_NOTADB, sqlite3lib.SQLITE_CORRUPT,
			sqlite3lib.SQLITE_READONLY, sqlite3lib.SQLITE_FULL:
			return true
		}
	}
	return false
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
