package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema/postgres.sql
var postgresSchema string

// bootstrapLockKey serializes schema bootstrap across processes.
const bootstrapLockKey int64 = 2026101901

var postgresDialect = dialect{
	name: "postgres",
	bootstrap: []string{
		fmt.Sprintf(`SELECT pg_advisory_xact_lock(%d)`, bootstrapLockKey),
		postgresSchema,
	},
	exists:       `SELECT COUNT(hash) FROM ` + TableName + ` WHERE hash = $1`,
	get:          `SELECT classified_text FROM ` + TableName + ` WHERE hash = $1`,
	getForUpdate: `SELECT classified_text FROM ` + TableName + ` WHERE hash = $1 FOR UPDATE`,
	upsert: `INSERT INTO ` + TableName + ` (hash, classified_text) VALUES ($1, $2)
		ON CONFLICT (hash) DO UPDATE SET classified_text = EXCLUDED.classified_text`,
	insertIfAbsent: `INSERT INTO ` + TableName + ` (hash, classified_text) VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING`,
	update:      `UPDATE ` + TableName + ` SET classified_text = $1 WHERE hash = $2`,
	unavailable: postgresUnavailable,
}

// openNetworked connects to PostgreSQL and verifies the connection.
func openNetworked(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg))
	if err != nil {
		return nil, WrapError(ErrBackendUnavailable, "open postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, WrapError(ErrBackendUnavailable, "ping postgres", err)
	}

	return newStore(db, postgresDialect), nil
}

// postgresDSN renders cfg as a postgres:// URL.
func postgresDSN(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	if cfg.ConnectTimeout > 0 {
		secs := int(cfg.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// postgresUnavailable reports connection-level failures and server
// shutdown or resource exhaustion.
func postgresUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03": // shutdown
			return true
		}
	}
	return false
}
