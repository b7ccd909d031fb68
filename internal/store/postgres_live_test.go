package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// livePostgresConfig returns a networked config from
// NOUN_CACHE_TEST_POSTGRES_DSN, or skips the test.
func livePostgresConfig(t *testing.T) Config {
	t.Helper()
	dsn := os.Getenv("NOUN_CACHE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOUN_CACHE_TEST_POSTGRES_DSN not set")
	}
	pc, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)

	sslmode := "disable"
	if pc.TLSConfig != nil {
		sslmode = "prefer"
	}
	return Config{
		Backend:        BackendNetworked,
		Host:           pc.Host,
		Port:           int(pc.Port),
		DBName:         pc.Database,
		User:           pc.User,
		Password:       pc.Password,
		SSLMode:        sslmode,
		ConnectTimeout: pc.ConnectTimeout,
	}
}

func TestLivePostgres_ScenarioAndConcurrentMerge(t *testing.T) {
	cfg := livePostgresConfig(t)
	ctx := context.Background()

	s := openTestStore(t, cfg)
	// A second Open bootstraps again against the existing table.
	other := openTestStore(t, cfg)

	fp := fingerprint.Compute(fmt.Sprintf("%s live scenario", t.Name()))
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+TableName+` WHERE hash = $1`, string(fp))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, fp, record.New(entry("PERSON", "Alice")), InsertOnly))
	require.NoError(t, other.Put(ctx, fp, record.New(entry("ORG", "Acme")), UpsertMerge))

	got, err := s.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, []record.Entry{entry("PERSON", "Alice"), entry("ORG", "Acme")}, got.Entries)
	assert.NotContains(t, rawPayload(t, s, fp), string(fp))

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := s
			if i%2 == 1 {
				target = other
			}
			errs <- target.Put(ctx, fp, record.New(entry("TERM", fmt.Sprintf("w%d", i))), UpsertMerge)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err = s.Get(ctx, fp)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2+writers)
}
