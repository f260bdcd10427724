package sqlx_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "loyaltykit/adapters/sqlx"
	"loyaltykit/core"
)

func newSQLiteStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "loyalty.db") + "?_pragma=busy_timeout(5000)"
	store, err := storage.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	points := core.TrackKey("alice", core.TrackBuyer, core.FieldPoints)
	_, err := store.Get(ctx, points)
	require.ErrorIs(t, err, core.ErrNotFound)

	total, err := store.IncrBy(ctx, points, 950)
	require.NoError(t, err)
	assert.EqualValues(t, 950, total)
	total, err = store.IncrBy(ctx, points, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 1150, total)

	require.NoError(t, store.Set(ctx, core.SharedKey("bob", core.FieldProfile), `{"country":"FR"}`))
	require.NoError(t, store.Set(ctx, core.SharedKey("bob", core.FieldProfile), `{"country":"US"}`))
	v, err := store.Get(ctx, core.SharedKey("bob", core.FieldProfile))
	require.NoError(t, err)
	assert.Equal(t, `{"country":"US"}`, v)

	history := core.TrackKey("alice", core.TrackBuyer, core.FieldHistory)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, history, fmt.Sprintf("e%d", i)))
	}
	all, err := store.Range(ctx, history, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"e0", "e1", "e2", "e3"}, all)
	last, err := store.Range(ctx, history, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, last)

	ids, err := store.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ParticipantID{"alice", "bob"}, ids)
}

func TestSQLite_ConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	key := core.TrackKey("carol", core.TrackSeller, core.FieldPoints)

	_, err := store.IncrBy(ctx, key, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrBy(ctx, key, 5)
		}()
	}
	wg.Wait()

	v, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "50", v)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, storage.DefaultConfig(storage.DriverPostgres).Validate())
	assert.NoError(t, storage.DefaultConfig(storage.DriverMySQL).Validate())
	assert.Error(t, storage.Config{Driver: "oracle", DSN: "x"}.Validate())
	assert.Error(t, storage.Config{Driver: storage.DriverSQLite}.Validate())
}
