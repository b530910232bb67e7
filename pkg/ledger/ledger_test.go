package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "processed_links.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestRecordAndHas(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	done, err := store.Has(ctx, "https://telegra.ph/abc-123")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.Record(ctx, "https://telegra.ph/abc-123", "page"))

	done, err = store.Has(ctx, "https://telegra.ph/abc-123")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRecordIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "k", "image"))
	require.NoError(t, store.Record(ctx, "k", "image"))
	require.NoError(t, store.Record(ctx, "k", "page")) // kind of first insert wins

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSurvivesReopen(t *testing.T) {
	store, dbPath := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "persisted", "post"))
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	done, err := reopened.Has(ctx, "persisted")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestConcurrentRecordSameKey(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Record(ctx, "raced", "image"))
		}()
	}
	wg.Wait()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReservationsExcludeRacers(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	res := NewReservations(store)

	ok, err := res.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second worker loses the race while the key is in flight
	ok, err = res.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, res.Commit(ctx, "k", "image"))

	// Recorded keys can never be re-acquired
	ok, err = res.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReservationRollback(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	res := NewReservations(store)

	ok, err := res.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// Simulated failure: release without committing
	res.Release("k")

	done, err := store.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)

	ok, err = res.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	res := NewReservations(store)

	var wg sync.WaitGroup
	winners := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := res.Acquire(ctx, "raced")
			assert.NoError(t, err)
			if ok {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	assert.Len(t, winners, 1)
}
