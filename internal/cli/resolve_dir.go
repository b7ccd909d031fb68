package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/classify"
	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/resilience"
)

// BatchDocument is the outcome for one file of a --text-dir run.
type BatchDocument struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Cached      bool                    `json:"cached"`
	Entries     int                     `json:"entries"`
	Error       string                  `json:"error,omitempty"`
}

// BatchResolveResult is the JSON payload of resolve --text-dir, keyed by
// the file path relative to the directory.
type BatchResolveResult struct {
	Documents map[string]BatchDocument `json:"documents"`
	Stored    int                      `json:"stored"`
	Cached    int                      `json:"cached"`
	Failed    int                      `json:"failed"`
}

func runResolveDir(opts *RootOptions, dir, recordFile string, svcOpts classify.Options, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	docs, err := readTextDir(dir)
	if err != nil {
		return formatter.FailWith(ErrCodeReadInput, ExitCommandError, fmt.Errorf("read text dir: %w", err))
	}

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.close()

	// Every miss stores the same record; read it at most once.
	loadOnce := sync.OnceValues(func() (*record.Record, error) {
		formatter.VerboseLog("Cache miss, loading %s", recordFile)
		return readRecord(cmd, recordFile)
	})
	fromFile := classify.ClassifierFunc(func(context.Context, string) (*record.Record, error) {
		rec, err := loadOnce()
		if err != nil {
			return nil, err
		}
		return rec.Clone(), nil
	})
	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}, nil, opts.Logger)
	svc := classify.NewService(sess.store, fromFile, exec, svcOpts, opts.Logger)

	results, batchErr := svc.ResolveAll(cmd.Context(), docs)
	if results == nil {
		return formatter.Fail(batchErr)
	}

	out := BatchResolveResult{Documents: make(map[string]BatchDocument, len(results))}
	for id, res := range results {
		doc := BatchDocument{
			Fingerprint: res.Fingerprint,
			Cached:      res.Cached,
			Entries:     res.Record.Len(),
		}
		switch {
		case res.Err != nil:
			doc.Error = batchErrorText(res.Err)
			out.Failed++
		case res.Cached:
			out.Cached++
		default:
			out.Stored++
		}
		out.Documents[id] = doc
	}

	if err := formatter.Success(batchText(out), out); err != nil {
		return err
	}
	if out.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d of %d documents failed", out.Failed, len(docs)), batchErr)
	}
	return nil
}

// readTextDir collects every .txt file under dir, in path order.
func readTextDir(dir string) ([]classify.Document, error) {
	var docs []classify.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".txt" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, classify.Document{ID: filepath.ToSlash(rel), Text: string(text)})
		return nil
	})
	return docs, err
}

// batchErrorText prefixes a document failure with its output error code.
func batchErrorText(err error) string {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return fmt.Sprintf("%s: %v", exitErr.Message, exitErr.Err)
	case errors.Is(err, classify.ErrClassifier):
		return fmt.Sprintf("%s: %v", ErrCodeClassifier, err)
	default:
		code, _ := classifyError(err)
		return fmt.Sprintf("%s: %v", code, err)
	}
}

func batchText(out BatchResolveResult) string {
	ids := make([]string, 0, len(out.Documents))
	for id := range out.Documents {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	for _, id := range ids {
		doc := out.Documents[id]
		switch {
		case doc.Error != "":
			fmt.Fprintf(&b, "✗ %s %s\n", id, doc.Error)
		case doc.Cached:
			fmt.Fprintf(&b, "%s cached %s\n", doc.Fingerprint.Short(), id)
		default:
			fmt.Fprintf(&b, "%s stored %s\n", doc.Fingerprint.Short(), id)
		}
	}
	fmt.Fprintf(&b, "\n%d stored, %d cached, %d failed", out.Stored, out.Cached, out.Failed)
	return b.String()
}
