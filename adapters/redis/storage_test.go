package redis

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyaltykit/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func TestStore_IncrBy(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	key := core.TrackKey("test-user", core.TrackBuyer, core.FieldPoints)

	total, err := store.IncrBy(ctx, key, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)

	total, err = store.IncrBy(ctx, key, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(75), total)

	raw, err := client.Get(ctx, "participant:test-user:buyer:points").Result()
	require.NoError(t, err)
	assert.Equal(t, "75", raw)

	v, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "75", v)
}

func TestStore_IncrBy_Overflow(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	key := core.TrackKey("test-user", core.TrackSeller, core.FieldPoints)

	require.NoError(t, store.Set(ctx, key, strconv.FormatInt(math.MaxInt64, 10)))
	_, err := store.IncrBy(ctx, key, 1)
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	_, err := store.Get(context.Background(), core.TrackKey("nobody", core.TrackBuyer, core.FieldStats))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_AppendAndRange(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	key := core.SharedKey("test-user", core.FieldNotifications)

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, key, v))
	}

	all, err := store.Range(ctx, key, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)

	last, err := store.Range(ctx, key, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, last)

	none, err := store.Range(ctx, key, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := client.LLen(ctx, "participant:test-user:notifications").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_Participants(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, core.SharedKey("bob", core.FieldProfile), `{"country":"FR"}`))
	_, err := store.IncrBy(ctx, core.TrackKey("alice", core.TrackBuyer, core.FieldPoints), 10)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, core.TrackKey("bob", core.TrackBuyer, core.FieldHistory), "{}"))

	ids, err := store.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ParticipantID{"bob", "alice"}, ids)
}

func TestStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewWithClient(client)
	mr.Close()

	_, err := store.IncrBy(context.Background(), core.TrackKey("u", core.TrackBuyer, core.FieldPoints), 1)
	assert.Error(t, err)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "participant:alice:buyer:points", redisKey(core.TrackKey("alice", core.TrackBuyer, core.FieldPoints)))
	assert.Equal(t, "participant:alice:profile", redisKey(core.SharedKey("alice", core.FieldProfile)))
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
