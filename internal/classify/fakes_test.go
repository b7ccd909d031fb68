package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// memStore is an in-memory ResultStore that keeps records by value.
type memStore struct {
	mu   sync.Mutex
	rows map[fingerprint.Fingerprint]*record.Record

	puts    atomic.Int32
	failPut error
	failGet error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[fingerprint.Fingerprint]*record.Record)}
}

func (m *memStore) Exists(_ context.Context, fp fingerprint.Fingerprint) (bool, error) {
	if err := fingerprint.Validate(fp); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[fp]
	return ok, nil
}

func (m *memStore) Get(_ context.Context, fp fingerprint.Fingerprint) (*record.Record, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[fp]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := rec.Clone()
	out.SourceFingerprint = fp
	return out, nil
}

func (m *memStore) Put(_ context.Context, fp fingerprint.Fingerprint, rec *record.Record, mode store.Mode) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.puts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[fp]; ok && mode == store.UpsertMerge {
		m.rows[fp] = record.Merge(existing, rec)
		return nil
	}
	m.rows[fp] = record.Merge(nil, rec)
	return nil
}

func (m *memStore) Bootstrap(context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

// countingClassifier labels every text as one TERM entry and counts calls.
type countingClassifier struct {
	calls atomic.Int32
	fail  error
}

func (c *countingClassifier) Classify(_ context.Context, text string) (*record.Record, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return record.New(record.Entry{Category: "TERM", Value: text}), nil
}

var errClassifierDown = errors.New("classifier down")

func docs(n int, text func(i int) string) []Document {
	out := make([]Document, n)
	for i := range out {
		out[i] = Document{ID: fmt.Sprintf("doc-%02d", i), Text: text(i)}
	}
	return out
}
