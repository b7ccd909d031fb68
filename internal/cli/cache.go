package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// InitResult is the JSON payload of init.
type InitResult struct {
	Table   string `json:"table"`
	Backend string `json:"backend"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the cache table if it does not exist",
		Long: `Create the text_classification_results table in the configured backend.

Safe to run repeatedly; existing rows are left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	// Open already bootstrapped; running it again proves idempotence.
	if err := sess.store.Bootstrap(cmd.Context()); err != nil {
		return formatter.Fail(err)
	}

	return formatter.Success(
		fmt.Sprintf("✓ %s ready (%s)", store.TableName, sess.backend),
		InitResult{Table: store.TableName, Backend: string(sess.backend)},
	)
}

// ExistsResult is the JSON payload of exists.
type ExistsResult struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Exists      bool                    `json:"exists"`
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "exists <fingerprint>",
		Short:         "Report whether a result is cached for a fingerprint",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(rootOpts, args[0], cmd)
		},
	}
}

func runExists(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return formatter.Fail(err)
	}

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	ok, err := sess.store.Exists(cmd.Context(), fp)
	if err != nil {
		return formatter.Fail(err)
	}
	return formatter.Success(fmt.Sprintf("%t", ok), ExistsResult{Fingerprint: fp, Exists: ok})
}

// GetResult is the JSON payload of get.
type GetResult struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Record      json.RawMessage         `json:"record"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <fingerprint>",
		Short: "Print the cached record for a fingerprint",
		Long: `Print the cached classification record for a fingerprint as JSON.

Exits 1 if nothing is cached for the fingerprint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], cmd)
		},
	}
}

func runGet(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return formatter.Fail(err)
	}

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	rec, err := sess.store.Get(cmd.Context(), fp)
	if err != nil {
		return formatter.Fail(err)
	}
	payload, err := record.Encode(rec)
	if err != nil {
		return formatter.Fail(err)
	}
	return formatter.Success(string(payload), GetResult{Fingerprint: fp, Record: payload})
}

// PutResult is the JSON payload of put and merge.
type PutResult struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Mode        string                  `json:"mode"`
	Entries     int                     `json:"entries"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		recordPath string
		merge      bool
	)

	cmd := &cobra.Command{
		Use:   "put <fingerprint>",
		Short: "Store a classification record under a fingerprint",
		Long: `Store a classification record read from --record (or stdin) under a
fingerprint.

The record is checked against the record schema first. Without --merge an
existing row is replaced; with --merge the entries are appended to it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := store.InsertOnly
			if merge {
				mode = store.UpsertMerge
			}
			return runPut(rootOpts, args[0], recordPath, mode, cmd)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "record JSON file (default stdin)")
	cmd.Flags().BoolVar(&merge, "merge", false, "append entries to an existing record")

	return cmd
}

// NewMergeCommand creates the merge command, shorthand for put --merge.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:           "merge <fingerprint>",
		Short:         "Append a record's entries to the cached record (put --merge)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(rootOpts, args[0], recordPath, store.UpsertMerge, cmd)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "record JSON file (default stdin)")

	return cmd
}

func runPut(opts *RootOptions, arg, recordPath string, mode store.Mode, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	fp, err := fingerprint.Parse(arg)
	if err != nil {
		return formatter.Fail(err)
	}

	rec, err := loadRecord(cmd, formatter, recordPath)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Read record with %d entries", rec.Len())

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	if err := sess.store.Put(cmd.Context(), fp, rec, mode); err != nil {
		return formatter.Fail(err)
	}

	return formatter.Success(
		fmt.Sprintf("✓ stored %s (%s, %d entries)", fp.Short(), mode, rec.Len()),
		PutResult{Fingerprint: fp, Mode: mode.String(), Entries: rec.Len()},
	)
}

// loadRecord reads, schema-checks and decodes a record, reporting any
// failure through formatter.
func loadRecord(cmd *cobra.Command, formatter *OutputFormatter, path string) (*record.Record, error) {
	rec, err := readRecord(cmd, path)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			_ = formatter.Error(exitErr.Message, exitErr.Err.Error(), nil)
		}
		return nil, err
	}
	return rec, nil
}

// readRecord is loadRecord without output. Failures are ExitErrors whose
// Message is the output error code.
func readRecord(cmd *cobra.Command, path string) (*record.Record, error) {
	raw, err := readInput(cmd, path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeReadInput, fmt.Errorf("read record: %w", err))
	}
	if err := record.CheckSchema(raw); err != nil {
		return nil, WrapExitError(ExitInvalidInput, ErrCodeInvalidRecord, err)
	}
	rec, err := record.Decode(raw)
	if err != nil {
		return nil, WrapExitError(ExitInvalidInput, ErrCodeInvalidRecord, err)
	}
	return rec, nil
}
