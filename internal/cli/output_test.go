package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success("ignored in json", map[string]string{"value": "AT&T <Legal>"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.NotContains(t, buf.String(), "ignored in json")
	assert.Contains(t, buf.String(), "AT&T <Legal>")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeNotFound, "classification result not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "classification result not found", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("true", nil))
	assert.Equal(t, "true\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(ErrCodeBackend, "backend unavailable", map[string]string{"path": "cache.db"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E202]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("Read record with %d entries", 2)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Read record with 2 entries")

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("hidden")
	assert.Empty(t, out.String())
}

func TestOutputFormatter_FailMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"invalid fingerprint", fmt.Errorf("parse: %w", store.ErrInvalidFingerprint), ErrCodeInvalidFingerprint, ExitInvalidInput},
		{"schema", fmt.Errorf("%w: category", record.ErrSchema), ErrCodeInvalidRecord, ExitInvalidInput},
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), ErrCodeNotFound, ExitFailure},
		{"backend", store.WrapError(store.ErrBackendUnavailable, "ping", errors.New("refused")), ErrCodeBackend, ExitCommandError},
		{"stored payload", fmt.Errorf("get: %w", store.ErrSerialization), ErrCodeStoredPayload, ExitFailure},
		{"other", errors.New("boom"), ErrCodeGeneric, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			err := formatter.Fail(tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, buf.String(), "Error ["+tt.wantCode+"]")
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitInvalidInput, "E101", errors.New("inner")))
	assert.Equal(t, ExitInvalidInput, GetExitCode(wrapped))
	assert.Equal(t, "E101: inner", WrapExitError(ExitInvalidInput, "E101", errors.New("inner")).Error())
}
