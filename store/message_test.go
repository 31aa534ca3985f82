package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessage(t *testing.T) {
	t.Run("last message is the one just added", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)

		msg, err := env.messages.AddMessage(ctx, thread.ID, RoleAssistant, "Try factoring first.", map[string]any{"model": "tutor"})
		require.NoError(t, err)
		assert.Equal(t, thread.ID, msg.ThreadID)

		last, err := env.messages.GetLastMessages(ctx, thread.ID, 1)
		require.NoError(t, err)
		require.Len(t, last, 1)
		assertMessageEqual(t, msg, &last[0])
	})

	t.Run("integer metadata reads back unchanged", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)

		msg, err := env.messages.AddMessage(ctx, thread.ID, RoleUser, "3 + 4?", map[string]any{"tokens": 12})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"tokens": 12.0}, msg.Metadata)

		last, err := env.messages.GetLastMessages(ctx, thread.ID, 1)
		require.NoError(t, err)
		require.Len(t, last, 1)
		assertMessageEqual(t, msg, &last[0])
	})

	t.Run("refreshes thread updatedAt", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "keep me", nil)
		require.NoError(t, err)

		_, err = env.messages.AddMessage(ctx, thread.ID, RoleUser, "hi", nil)
		require.NoError(t, err)

		got, err := env.threads.GetThreadByID(ctx, thread.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(thread.UpdatedAt))
		assert.Equal(t, "keep me", got.Title)
		assert.True(t, got.CreatedAt.Equal(thread.CreatedAt))

		env.clock.Advance(time.Hour)
		_, err = env.messages.AddMessage(ctx, thread.ID, RoleUser, "again", nil)
		require.NoError(t, err)

		got, err = env.threads.GetThreadByID(ctx, thread.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(env.clock.Now()))
	})

	t.Run("missing thread", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		msg, err := env.messages.AddMessage(ctx, "ghost", RoleUser, "hello", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrThreadNotFound)
		assert.Nil(t, msg)
		assert.Empty(t, env.mr.Keys())
	})

	t.Run("unknown role", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)

		_, err = env.messages.AddMessage(ctx, thread.ID, Role("tool"), "x", nil)
		assert.ErrorIs(t, err, ErrInvalidRole)

		n, err := env.messages.CountMessages(ctx, thread.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGetMessages(t *testing.T) {
	t.Run("newest first", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)
		for _, c := range []string{"a", "b", "c"} {
			_, err := env.messages.AddMessage(ctx, thread.ID, RoleUser, c, nil)
			require.NoError(t, err)
		}

		messages, err := env.messages.GetMessages(ctx, thread.ID, Page{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, contents(messages))
	})

	t.Run("limit and offset window", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			_, err := env.messages.AddMessage(ctx, thread.ID, RoleUser, fmt.Sprintf("m%d", i), nil)
			require.NoError(t, err)
		}

		messages, err := env.messages.GetMessages(ctx, thread.ID, Page{Limit: 3, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m7", "m6", "m5"}, contents(messages))

		messages, err = env.messages.GetMessages(ctx, thread.ID, Page{Limit: 5, Offset: 8})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m0"}, contents(messages))

		messages, err = env.messages.GetMessages(ctx, thread.ID, Page{Limit: 5, Offset: 20})
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("default limit", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)
		for i := 0; i < DefaultPageLimit+5; i++ {
			_, err := env.messages.AddMessage(ctx, thread.ID, RoleUser, fmt.Sprintf("m%d", i), nil)
			require.NoError(t, err)
		}

		messages, err := env.messages.GetMessages(ctx, thread.ID, Page{})
		require.NoError(t, err)
		assert.Len(t, messages, DefaultPageLimit)
		assert.Equal(t, fmt.Sprintf("m%d", DefaultPageLimit+4), messages[0].Content)
	})

	t.Run("unresolved ids are skipped", func(t *testing.T) {
		env := setupStores(t)
		ctx := context.Background()

		thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
		require.NoError(t, err)
		_, err = env.messages.AddMessage(ctx, thread.ID, RoleUser, "real", nil)
		require.NoError(t, err)
		_, err = env.mr.Lpush("thread:"+thread.ID+":messages", "ghost")
		require.NoError(t, err)

		messages, err := env.messages.GetMessages(ctx, thread.ID, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"real"}, contents(messages))
	})

	t.Run("unknown thread is empty", func(t *testing.T) {
		env := setupStores(t)

		messages, err := env.messages.GetMessages(context.Background(), "ghost", Page{})
		require.NoError(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})
}

func TestGetFirstMessages(t *testing.T) {
	env := setupStores(t)
	ctx := context.Background()

	thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
	require.NoError(t, err)
	for _, c := range []string{"a", "b", "c", "d"} {
		_, err := env.messages.AddMessage(ctx, thread.ID, RoleUser, c, nil)
		require.NoError(t, err)
	}

	messages, err := env.messages.GetFirstMessages(ctx, thread.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, contents(messages))

	messages, err = env.messages.GetFirstMessages(ctx, thread.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, contents(messages))
}

func TestCountMessages(t *testing.T) {
	env := setupStores(t)
	ctx := context.Background()

	thread, err := env.threads.CreateThread(ctx, "student-1", "", nil)
	require.NoError(t, err)

	n, err := env.messages.CountMessages(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 4; i++ {
		_, err := env.messages.AddMessage(ctx, thread.ID, RoleSystem, "x", nil)
		require.NoError(t, err)
	}

	n, err = env.messages.CountMessages(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
