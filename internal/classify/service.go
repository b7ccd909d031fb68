package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/resilience"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// Classifier turns text into a classification record. Implemented by the
// remote classification client.
type Classifier interface {
	Classify(ctx context.Context, text string) (*record.Record, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (*record.Record, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (*record.Record, error) {
	return f(ctx, text)
}

// Document is one unit of extracted text, identified by its source (a file
// path or archive member).
type Document struct {
	ID   string
	Text string
}

// Options control a Service.
type Options struct {
	// Merge classifies every document and accumulates entries with
	// UpsertMerge instead of trusting an existing row.
	Merge bool
	// Workers bounds ResolveAll concurrency. Zero means DefaultWorkers.
	Workers int
	// NormalizeText fingerprints NFC-normalized text.
	NormalizeText bool
}

const DefaultWorkers = 4

// Result is the outcome for one document.
type Result struct {
	DocumentID  string                  `json:"document_id"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Record      *record.Record          `json:"record,omitempty"`
	Cached      bool                    `json:"cached"`
	Err         error                   `json:"-"`
}

// ErrClassifier marks failures of the classifier collaborator, as opposed
// to store failures.
var ErrClassifier = errors.New("classifier failed")

// Service resolves documents through the cache.
// Safe for concurrent use.
type Service struct {
	store      store.ResultStore
	classifier Classifier
	exec       *resilience.Executor
	opts       Options
	logger     *slog.Logger
	locks      *keyedMutex
}

// NewService wires a Service. A nil exec runs classifier calls through a
// default executor; a nil logger uses slog.Default().
func NewService(rs store.ResultStore, c Classifier, exec *resilience.Executor, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), nil, logger)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Service{
		store:      rs,
		classifier: c,
		exec:       exec,
		opts:       opts,
		logger:     logger,
		locks:      newKeyedMutex(),
	}
}

// Fingerprint returns the cache key for text under the service options.
func (s *Service) Fingerprint(text string) fingerprint.Fingerprint {
	if s.opts.NormalizeText {
		return fingerprint.ComputeNormalized(text)
	}
	return fingerprint.Compute(text)
}

// Resolve returns the classification for doc, from the cache when possible.
func (s *Service) Resolve(ctx context.Context, doc Document) (Result, error) {
	return s.resolve(ctx, s.logger, doc)
}

func (s *Service) resolve(ctx context.Context, logger *slog.Logger, doc Document) (Result, error) {
	fp := s.Fingerprint(doc.Text)
	res := Result{DocumentID: doc.ID, Fingerprint: fp}
	logger = logger.With("document", doc.ID, "fingerprint", fp.Short())

	unlock := s.locks.Lock(fp)
	defer unlock()

	if !s.opts.Merge {
		rec, ok, err := s.lookup(ctx, fp)
		if err != nil {
			return res, err
		}
		if ok {
			logger.Debug("cache hit")
			res.Record = rec
			res.Cached = true
			return res, nil
		}
	}

	rec, err := s.classify(ctx, doc.Text)
	if err != nil {
		return res, err
	}

	mode := store.InsertOnly
	if s.opts.Merge {
		mode = store.UpsertMerge
	}
	if err := s.store.Put(ctx, fp, rec, mode); err != nil {
		return res, fmt.Errorf("store %s: %w", doc.ID, err)
	}
	logger.Debug("classified and stored", "mode", mode.String(), "entries", rec.Len())

	if s.opts.Merge {
		merged, err := s.store.Get(ctx, fp)
		if err != nil {
			return res, fmt.Errorf("read merged %s: %w", doc.ID, err)
		}
		res.Record = merged
		return res, nil
	}

	res.Record = rec.Clone()
	res.Record.SourceFingerprint = fp
	return res, nil
}

// lookup checks the cache. A row that vanishes between Exists and Get
// counts as a miss.
func (s *Service) lookup(ctx context.Context, fp fingerprint.Fingerprint) (*record.Record, bool, error) {
	ok, err := s.store.Exists(ctx, fp)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := s.store.Get(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Service) classify(ctx context.Context, text string) (*record.Record, error) {
	var rec *record.Record
	err := s.exec.Execute(ctx, "classify", func(ctx context.Context) error {
		var err error
		rec, err = s.classifier.Classify(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifier, err)
	}
	if rec == nil {
		rec = record.New()
	}
	return rec, nil
}

// ResolveAll resolves docs on a bounded worker pool and returns one Result
// per document ID. Per-document failures are recorded in Result.Err and
// joined into the returned error; the batch keeps going.
//
// Document IDs are expected to be unique; a repeated ID keeps the last
// result.
func (s *Service) ResolveAll(ctx context.Context, docs []Document) (map[string]Result, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger := s.logger.With("run_id", runID.String())
	logger.Info("resolving batch", "documents", len(docs), "workers", s.opts.Workers, "merge", s.opts.Merge)

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(docs))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, doc := range docs {
		g.Go(func() error {
			res, err := s.resolve(gctx, logger, doc)
			res.Err = err

			mu.Lock()
			defer mu.Unlock()
			results[doc.ID] = res
			if err != nil {
				logger.Warn("document failed", "document", doc.ID, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	var hits int
	for _, r := range results {
		if r.Cached {
			hits++
		}
	}
	logger.Info("batch resolved", "documents", len(results), "cache_hits", hits, "failures", len(errs))

	return results, errors.Join(errs...)
}
