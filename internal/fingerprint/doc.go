// Package fingerprint computes and validates the content-addressed keys of the
// classification result cache.
//
// A fingerprint is the SHA-256 digest of a unit of document text, rendered as
// 64 lowercase hexadecimal characters. It is the primary key of the cache
// table and is never stored inside a classification payload.
//
// Validation is purely local: callers (and the store) reject malformed keys
// before any backend round trip.
package fingerprint
