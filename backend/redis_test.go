package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestBackend creates a miniredis instance and returns a connected RedisBackend.
func setupTestBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = b.Close()
	})

	return b, mr
}

func TestNewRedisBackend(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)

		b, err := NewRedisBackend(RedisOptions{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		require.NotNil(t, b)
		defer b.Close()
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisBackend(RedisOptions{
			URL:            "redis://localhost:99999",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisBackend(RedisOptions{
			URL: "invalid://url",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestHashOperations(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()

	t.Run("missing hash is empty", func(t *testing.T) {
		fields, err := b.HGetAll(ctx, "thread:missing")
		require.NoError(t, err)
		assert.Empty(t, fields)
	})

	t.Run("write and read", func(t *testing.T) {
		err := b.HSet(ctx, "thread:1", map[string]string{"id": "1", "title": "Intro"})
		require.NoError(t, err)

		fields, err := b.HGetAll(ctx, "thread:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"id": "1", "title": "Intro"}, fields)
		assert.Equal(t, "Intro", mr.HGet("thread:1", "title"))
	})

	t.Run("empty write is a no-op", func(t *testing.T) {
		require.NoError(t, b.HSet(ctx, "thread:empty", nil))
		assert.False(t, mr.Exists("thread:empty"))
	})

	t.Run("read many keeps order", func(t *testing.T) {
		require.NoError(t, b.HSet(ctx, "message:a", map[string]string{"id": "a"}))
		require.NoError(t, b.HSet(ctx, "message:c", map[string]string{"id": "c"}))

		out, err := b.HGetAllMany(ctx, []string{"message:a", "message:b", "message:c"})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "a", out[0]["id"])
		assert.Empty(t, out[1])
		assert.Equal(t, "c", out[2]["id"])
	})

	t.Run("read many with no keys", func(t *testing.T) {
		out, err := b.HGetAllMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestSetOperations(t *testing.T) {
	b, _ := setupTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SAdd(ctx, "resource:r1:threads", "t1", "t2", "t3"))
	require.NoError(t, b.SRem(ctx, "resource:r1:threads", "t2"))

	members, err := b.SMembers(ctx, "resource:r1:threads")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t3"}, members)

	members, err = b.SMembers(ctx, "resource:none:threads")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestListOperations(t *testing.T) {
	b, _ := setupTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, b.LPush(ctx, "thread:t1:messages", id))
	}

	values, err := b.LRange(ctx, "thread:t1:messages", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, values)

	values, err = b.LRange(ctx, "thread:t1:messages", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, values)

	n, err := b.LLen(ctx, "thread:t1:messages")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = b.LLen(ctx, "thread:none:messages")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDel(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k1", "v"))
	require.NoError(t, mr.Set("k2", "v"))

	n, err := b.Del(ctx, "k1", "k2", "k3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = b.Del(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBatch(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()

	err := b.Batch(ctx, func(tx Batch) {
		tx.HSet("thread:t1", map[string]string{"id": "t1"})
		tx.SAdd("resource:r1:threads", "t1")
		tx.LPush("thread:t1:messages", "m1")
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", mr.HGet("thread:t1", "id"))
	ok, err := mr.SIsMember("resource:r1:threads", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	list, err := mr.List("thread:t1:messages")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, list)

	err = b.Batch(ctx, func(tx Batch) {
		tx.SRem("resource:r1:threads", "t1")
		tx.Del("thread:t1", "thread:t1:messages")
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("thread:t1"))
	assert.False(t, mr.Exists("thread:t1:messages"))
}

func TestUpdateHash(t *testing.T) {
	t.Run("merges fields", func(t *testing.T) {
		b, mr := setupTestBackend(t)
		ctx := context.Background()
		require.NoError(t, b.HSet(ctx, "thread:t1", map[string]string{"id": "t1", "title": "old"}))

		err := b.UpdateHash(ctx, "thread:t1", func(current map[string]string) (map[string]string, error) {
			assert.Equal(t, "old", current["title"])
			return map[string]string{"title": "new"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "new", mr.HGet("thread:t1", "title"))
		assert.Equal(t, "t1", mr.HGet("thread:t1", "id"))
	})

	t.Run("nil result skips write", func(t *testing.T) {
		b, mr := setupTestBackend(t)
		ctx := context.Background()

		err := b.UpdateHash(ctx, "thread:missing", func(current map[string]string) (map[string]string, error) {
			assert.Empty(t, current)
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists("thread:missing"))
	})

	t.Run("callback error propagates", func(t *testing.T) {
		b, _ := setupTestBackend(t)
		boom := errors.New("boom")

		err := b.UpdateHash(context.Background(), "thread:t1", func(map[string]string) (map[string]string, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("concurrent write is a conflict", func(t *testing.T) {
		b, mr := setupTestBackend(t)
		ctx := context.Background()
		require.NoError(t, b.HSet(ctx, "thread:t1", map[string]string{"title": "old"}))

		other, err := NewRedisBackend(RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
		require.NoError(t, err)
		defer other.Close()

		err = b.UpdateHash(ctx, "thread:t1", func(map[string]string) (map[string]string, error) {
			require.NoError(t, other.HSet(ctx, "thread:t1", map[string]string{"title": "sneaky"}))
			return map[string]string{"title": "mine"}, nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "sneaky", mr.HGet("thread:t1", "title"))
	})
}

func TestFlushAllAndPing(t *testing.T) {
	b, mr := setupTestBackend(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "v"))
	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.FlushAll(ctx))
	assert.False(t, mr.Exists("k"))

	mr.Close()
	err := b.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping Redis")
}
