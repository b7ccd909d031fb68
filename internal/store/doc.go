// Package store provides the persistent classification result cache.
//
// One table holds one row per fingerprint:
//
//	text_classification_results(hash CHAR(64) PRIMARY KEY, classified_text TEXT)
//
// The payload column holds a record encoded by package record; the
// fingerprint lives only in the key column.
//
// # Backends
//
// Two backends satisfy the same ResultStore contract and are chosen once, at
// Open, from Config:
//   - embedded: a SQLite file (mattn/go-sqlite3, or modernc.org/sqlite when a
//     cgo-free build is needed). WAL mode, busy_timeout=5000, one connection,
//     transactions begin IMMEDIATE so the write lock is taken up front.
//   - networked: PostgreSQL through pgx's database/sql driver.
//
// # Concurrency
//
// Put with UpsertMerge is a read-modify-write. It runs in one transaction
// that locks the row before reading it (SELECT ... FOR UPDATE on PostgreSQL,
// the database write lock on SQLite), so concurrent merges into the same
// fingerprint are serialized and none of them is lost. If two writers race to
// create the same row, the loser's INSERT ... ON CONFLICT DO NOTHING affects
// no rows and it merges into the winner's row instead.
//
// The store never retries and never logs an error in place of returning it.
package store
