package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (e.g. get on a fingerprint that was never stored)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, backend unavailable)
	ExitInvalidInput = 3 // Invalid input (malformed fingerprint, record failing the schema)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric            = "E001" // Generic/unknown error
	ErrCodeUsage              = "E002" // Bad flags or arguments
	ErrCodeReadInput          = "E003" // Input file or stdin unreadable
	ErrCodeInvalidFingerprint = "E101" // Not a 64-char lowercase hex fingerprint
	ErrCodeInvalidRecord      = "E102" // Record JSON malformed or fails the schema
	ErrCodeNotFound           = "E201" // No cached result for the fingerprint
	ErrCodeBackend            = "E202" // Backend unavailable
	ErrCodeStoredPayload      = "E203" // Stored payload cannot be decoded
	ErrCodeClassifier         = "E204" // Classification collaborator failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classifyError maps a cache error to its output code and exit code.
func classifyError(err error) (code string, exit int) {
	switch {
	case errors.Is(err, store.ErrInvalidFingerprint):
		return ErrCodeInvalidFingerprint, ExitInvalidInput
	case errors.Is(err, record.ErrSchema):
		return ErrCodeInvalidRecord, ExitInvalidInput
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound, ExitFailure
	case errors.Is(err, store.ErrBackendUnavailable):
		return ErrCodeBackend, ExitCommandError
	case errors.Is(err, store.ErrSerialization):
		return ErrCodeStoredPayload, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
	RunID  string      `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E101", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// text is printed in text mode; data is the JSON payload.
func (f *OutputFormatter) Success(text string, data interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the matching ExitError.
func (f *OutputFormatter) Fail(err error) error {
	code, exit := classifyError(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// FailWith reports a failure with an explicit code and exit status.
func (f *OutputFormatter) FailWith(code string, exit int, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
