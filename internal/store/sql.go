package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// dialect holds the backend-specific SQL. Every value is bound as a
// parameter; only the constant table name is part of the query text.
type dialect struct {
	name string

	// bootstrap statements run in order inside one transaction.
	bootstrap []string

	exists         string
	get            string
	getForUpdate   string
	upsert         string
	insertIfAbsent string
	update         string

	// unavailable reports driver errors that mean the backend cannot serve
	// requests, beyond the generic checks in isUnavailable.
	unavailable func(error) bool
}

// Store implements ResultStore on database/sql.
// Safe for concurrent use.
type Store struct {
	db     *sql.DB
	d      dialect
	logger *slog.Logger
	closed atomic.Bool
}

var errClosed = errors.New("store is closed")

var _ ResultStore = (*Store)(nil)

func newStore(db *sql.DB, d dialect) *Store {
	return &Store{db: db, d: d, logger: slog.Default()}
}

// Close closes the connection pool. Later calls return nil.
func (s *Store) Close() error {
	if s.db == nil || s.closed.Swap(true) {
		return nil
	}
	s.logger.Debug("cache store closed")
	return s.db.Close()
}

// checkOpen fails operations issued after Close.
func (s *Store) checkOpen(operation string) error {
	if s.closed.Load() {
		return WrapError(ErrBackendUnavailable, operation, errClosed)
	}
	return nil
}

// Bootstrap creates the cache table if it does not exist.
// Safe to run repeatedly and from several processes at once.
func (s *Store) Bootstrap(ctx context.Context) error {
	if err := s.checkOpen("bootstrap"); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.backendError("bootstrap: begin", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range s.d.bootstrap {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return s.backendError("bootstrap: exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.backendError("bootstrap: commit", err)
	}
	s.logger.Debug("schema bootstrapped", "table", TableName)
	return nil
}

// Exists reports whether a row exists for fp.
func (s *Store) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	if err := fingerprint.Validate(fp); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	if err := s.checkOpen("exists"); err != nil {
		return false, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.d.exists, string(fp)).Scan(&count); err != nil {
		return false, s.backendError("exists", err)
	}
	return count > 0, nil
}

// Get returns the record stored for fp.
func (s *Store) Get(ctx context.Context, fp fingerprint.Fingerprint) (*record.Record, error) {
	if err := fingerprint.Validate(fp); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if err := s.checkOpen("get"); err != nil {
		return nil, err
	}

	var payload sql.NullString
	err := s.db.QueryRowContext(ctx, s.d.get, string(fp)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", fp.Short(), ErrNotFound)
	}
	if err != nil {
		return nil, s.backendError("get", err)
	}

	return decodeRow(fp, payload)
}

// Put stores rec under fp according to mode.
// Each call commits exactly one write transaction.
func (s *Store) Put(ctx context.Context, fp fingerprint.Fingerprint, rec *record.Record, mode Mode) error {
	if err := fingerprint.Validate(fp); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	if err := s.checkOpen("put"); err != nil {
		return err
	}

	switch mode {
	case InsertOnly:
		return s.putInsertOnly(ctx, fp, rec)
	case UpsertMerge:
		return s.putUpsertMerge(ctx, fp, rec)
	default:
		return fmt.Errorf("put: unknown mode %s", mode)
	}
}

// putInsertOnly overwrites an existing payload or inserts a new row, in a
// single statement.
func (s *Store) putInsertOnly(ctx context.Context, fp fingerprint.Fingerprint, rec *record.Record) error {
	payload, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("put %s: %w", fp.Short(), err)
	}

	if _, err := s.db.ExecContext(ctx, s.d.upsert, string(fp), string(payload)); err != nil {
		return s.backendError("put: upsert", err)
	}
	return nil
}

// putUpsertMerge merges rec into the row for fp inside one transaction.
func (s *Store) putUpsertMerge(ctx context.Context, fp fingerprint.Fingerprint, rec *record.Record) error {
	// Fail on an unencodable record before opening a transaction.
	if _, err := record.Encode(rec); err != nil {
		return fmt.Errorf("put %s: %w", fp.Short(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.backendError("put: begin", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	existing, found, err := s.readForUpdate(ctx, tx, fp)
	if err != nil {
		return err
	}

	if !found {
		inserted, err := s.insertIfAbsent(ctx, tx, fp, rec)
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent writer created the row first: merge into it.
			existing, found, err = s.readForUpdate(ctx, tx, fp)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("put %s: row vanished after insert conflict: %w", fp.Short(), ErrNotFound)
			}
		}
	}

	if found {
		merged := record.Merge(existing, rec)
		payload, err := record.Encode(merged)
		if err != nil {
			return fmt.Errorf("put %s: %w", fp.Short(), err)
		}
		if _, err := tx.ExecContext(ctx, s.d.update, string(payload), string(fp)); err != nil {
			return s.backendError("put: update", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.backendError("put: commit", err)
	}
	return nil
}

// readForUpdate loads and locks the row for fp within tx.
func (s *Store) readForUpdate(ctx context.Context, tx *sql.Tx, fp fingerprint.Fingerprint) (*record.Record, bool, error) {
	var payload sql.NullString
	err := tx.QueryRowContext(ctx, s.d.getForUpdate, string(fp)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.backendError("put: read", err)
	}

	rec, err := decodeRow(fp, payload)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// insertIfAbsent inserts rec for fp unless a row already exists.
// Reports whether a row was inserted.
func (s *Store) insertIfAbsent(ctx context.Context, tx *sql.Tx, fp fingerprint.Fingerprint, rec *record.Record) (bool, error) {
	payload, err := record.Encode(rec)
	if err != nil {
		return false, fmt.Errorf("put %s: %w", fp.Short(), err)
	}

	res, err := tx.ExecContext(ctx, s.d.insertIfAbsent, string(fp), string(payload))
	if err != nil {
		return false, s.backendError("put: insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.backendError("put: rows affected", err)
	}
	return n > 0, nil
}

// decodeRow turns a payload column into a record keyed by fp.
func decodeRow(fp fingerprint.Fingerprint, payload sql.NullString) (*record.Record, error) {
	if !payload.Valid {
		return nil, fmt.Errorf("get %s: %w: payload is NULL", fp.Short(), ErrSerialization)
	}
	rec, err := record.Decode([]byte(payload.String))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", fp.Short(), err)
	}
	rec.SourceFingerprint = fp
	return rec, nil
}

// backendError wraps a driver error, tagging it ErrBackendUnavailable when it
// means the backend cannot be reached or used.
func (s *Store) backendError(operation string, err error) error {
	if isUnavailable(err) || (s.d.unavailable != nil && s.d.unavailable(err)) {
		return WrapError(ErrBackendUnavailable, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// isUnavailable covers the driver-independent connection failures.
func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
