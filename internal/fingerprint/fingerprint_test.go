package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeterminism(t *testing.T) {
	text := "Alice works at Acme in Wilmington."

	fp1 := Compute(text)
	fp2 := Compute(text)

	assert.Equal(t, fp1, fp2, "Compute must be deterministic")
	assert.Len(t, fp1.String(), Length, "SHA-256 hex is 64 characters")
	require.NoError(t, Validate(fp1))
}

func TestComputeKnownVector(t *testing.T) {
	// Stable across restarts: pinned against the published SHA-256 test vector.
	assert.Equal(t,
		Fingerprint("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		Compute("abc"))
	assert.Equal(t,
		Fingerprint("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		Compute(""))
}

func TestComputeChangesWithInput(t *testing.T) {
	assert.NotEqual(t, Compute("Alice"), Compute("alice"))
	assert.NotEqual(t, Compute("Alice"), Compute("Alice "))
}

func TestComputeNormalized(t *testing.T) {
	precomposed := "caf\u00e9"
	decomposed := "cafe\u0301"

	assert.NotEqual(t, Compute(precomposed), Compute(decomposed),
		"raw fingerprints keep byte-level identity")
	assert.Equal(t, ComputeNormalized(precomposed), ComputeNormalized(decomposed),
		"NFC fingerprints fold canonically equivalent text")
	assert.Equal(t, Compute(precomposed), ComputeNormalized(decomposed))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate any
		wantErr   bool
	}{
		{"valid string", strings.Repeat("a", 64), false},
		{"valid fingerprint", Compute("x"), false},
		{"too short", strings.Repeat("a", 63), true},
		{"too long", strings.Repeat("a", 65), true},
		{"empty", "", true},
		{"uppercase hex", strings.Repeat("A", 64), true},
		{"non hex", strings.Repeat("g", 64), true},
		{"quote injection", strings.Repeat("a", 63) + "'", true},
		{"int", 42, true},
		{"nil", nil, true},
		{"byte slice", []byte(strings.Repeat("a", 64)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candidate)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParse(t *testing.T) {
	fp, err := Parse(strings.Repeat("0", 64))
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(strings.Repeat("0", 64)), fp)

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMustPanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { Must("nope") })
	assert.NotPanics(t, func() { Must(strings.Repeat("f", 64)) })
}

func TestShort(t *testing.T) {
	fp := Must(strings.Repeat("ab", 32))
	assert.Equal(t, "abababababab", fp.Short())
	assert.Equal(t, "abc", Fingerprint("abc").Short())
}
