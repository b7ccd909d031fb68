package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

func TestInstrument_CountsOperationsAndLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics("embedded")
	rs := Instrument(createTestStore(t, DriverMattn), m)
	fp := fpOf('a')

	ok, err := rs.Exists(ctx, fp)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = rs.Get(ctx, fp)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, rs.Put(ctx, fp, record.New(entry("PERSON", "Alice")), InsertOnly))
	require.NoError(t, rs.Put(ctx, fp, record.New(entry("ORG", "Acme")), UpsertMerge))

	// A cached lookup is Exists followed by Get; only Exists counts.
	ok, err = rs.Exists(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = rs.Get(ctx, fp)
	require.NoError(t, err)

	_, err = rs.Exists(ctx, "bad")
	require.ErrorIs(t, err, ErrInvalidFingerprint)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("exists", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("exists", "invalid_fingerprint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("put_insert_only", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("put_upsert_merge", "ok")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))

	assert.Equal(t, 4, testutil.CollectAndCount(m.opsDuration))
}

func TestInstrument_NilMetricsIsPassthrough(t *testing.T) {
	s := createTestStore(t, DriverMattn)
	assert.Same(t, s, Instrument(s, nil))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics("networked")
	m.observe("exists", time.Now(), nil)

	path := filepath.Join(t.TempDir(), "noun_cache.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `noun_cache_store_operations_total{backend="networked",op="exists",outcome="ok"} 1`)
}
