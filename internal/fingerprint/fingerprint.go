package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Length is the number of hex characters in a SHA-256 fingerprint.
const Length = sha256.Size * 2

// ErrInvalid is the kind of every validation failure returned by this package.
var ErrInvalid = errors.New("invalid fingerprint")

// Fingerprint identifies a unit of document text.
type Fingerprint string

// String returns the fingerprint as a plain string.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first 12 characters, for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Compute hashes the UTF-8 bytes of text.
// The same text always yields the same fingerprint, across processes.
func Compute(text string) Fingerprint {
	sum := sha256.Sum256([]byte(text))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ComputeNormalized hashes the NFC normal form of text, so canonically
// equivalent spellings ("é" precomposed vs "e" + combining acute) share a key.
func ComputeNormalized(text string) Fingerprint {
	return Compute(norm.NFC.String(text))
}

// Validate reports whether candidate is a well-formed fingerprint.
// Accepts string and Fingerprint values; anything else is rejected.
func Validate(candidate any) error {
	var s string
	switch v := candidate.(type) {
	case Fingerprint:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("%w: must be a string, got %T", ErrInvalid, candidate)
	}

	if len(s) != Length {
		return fmt.Errorf("%w: must be %d characters, got %d", ErrInvalid, Length, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: character %q at offset %d is not lowercase hex", ErrInvalid, c, i)
		}
	}
	return nil
}

// Parse validates s and returns it as a Fingerprint.
func Parse(s string) (Fingerprint, error) {
	if err := Validate(s); err != nil {
		return "", err
	}
	return Fingerprint(s), nil
}

// Must is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func Must(s string) Fingerprint {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}
