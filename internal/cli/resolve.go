package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/classify"
	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/resilience"
)

// ResolveResult is the JSON payload of resolve.
type ResolveResult struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Cached      bool                    `json:"cached"`
	Record      json.RawMessage         `json:"record"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		textFile   string
		textDir    string
		recordFile string
		nfc        bool
		merge      bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Look up texts in the cache, storing a record on a miss",
		Long: `Fingerprint the text in --text-file and print its cached record.

On a miss the record in --record stands in for the classifier: it is
schema-checked, stored, and printed. With --merge the record is always
appended to whatever is cached.

With --text-dir every .txt file under the directory is resolved on a
pool of --workers goroutines. Files with identical text share one cache
row and are classified once.

Examples:
  noun-cache resolve --text-file page1.txt --record ner.json
  noun-cache resolve --text-dir extracted/ --record ner.json --workers 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcOpts := classify.Options{
				Merge:         merge,
				Workers:       workers,
				NormalizeText: nfc,
			}
			if textDir != "" {
				return runResolveDir(rootOpts, textDir, recordFile, svcOpts, cmd)
			}
			svcOpts.Workers = 1
			return runResolve(rootOpts, textFile, recordFile, svcOpts, cmd)
		},
	}

	cmd.Flags().StringVar(&textFile, "text-file", "", "file holding the text to resolve")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "directory of .txt files to resolve as a batch")
	cmd.Flags().StringVar(&recordFile, "record", "", "record JSON to store on a miss (required)")
	cmd.Flags().BoolVar(&nfc, "nfc", false, "NFC-normalize the text before hashing")
	cmd.Flags().BoolVar(&merge, "merge", false, "always append the record to the cached one")
	cmd.Flags().IntVar(&workers, "workers", classify.DefaultWorkers, "concurrent documents for --text-dir")
	cmd.MarkFlagsOneRequired("text-file", "text-dir")
	cmd.MarkFlagsMutuallyExclusive("text-file", "text-dir")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func runResolve(opts *RootOptions, textFile, recordFile string, svcOpts classify.Options, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	text, err := readInput(cmd, textFile)
	if err != nil {
		return formatter.FailWith(ErrCodeReadInput, ExitCommandError, fmt.Errorf("read text: %w", err))
	}

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	// The record file is only read when the cache misses.
	fromFile := classify.ClassifierFunc(func(context.Context, string) (*record.Record, error) {
		formatter.VerboseLog("Cache miss, loading %s", recordFile)
		return loadRecord(cmd, formatter, recordFile)
	})
	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}, nil, opts.Logger)
	svc := classify.NewService(sess.store, fromFile, exec, svcOpts, opts.Logger)

	res, err := svc.Resolve(cmd.Context(), classify.Document{ID: textFile, Text: string(text)})
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		if errors.Is(err, classify.ErrClassifier) {
			return formatter.FailWith(ErrCodeClassifier, ExitFailure, err)
		}
		return formatter.Fail(err)
	}

	payload, err := record.Encode(res.Record)
	if err != nil {
		return formatter.Fail(err)
	}

	status := "stored"
	if res.Cached {
		status = "cached"
	}
	return formatter.Success(
		fmt.Sprintf("%s %s\n%s", res.Fingerprint, status, payload),
		ResolveResult{Fingerprint: res.Fingerprint, Cached: res.Cached, Record: payload},
	)
}
