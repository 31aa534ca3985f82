package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/coachmem/backend"
)

// fakeClock is a settable time source shared by both stores.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	mr       *miniredis.Miniredis
	backend  *backend.RedisBackend
	clock    *fakeClock
	threads  *ThreadStore
	messages *MessageStore
}

// setupStores creates a miniredis instance and stores bound to it.
func setupStores(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	b, err := backend.NewRedisBackend(backend.RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
	})

	clock := newFakeClock()
	threads := NewThreadStore(b, WithClock(clock.Now))
	messages := NewMessageStore(b, threads, WithClock(clock.Now))

	return &testEnv{
		mr:       mr,
		backend:  b,
		clock:    clock,
		threads:  threads,
		messages: messages,
	}
}

func assertThreadEqual(t *testing.T, want, got *Thread) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ResourceID, got.ResourceID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updatedAt: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
}

func assertMessageEqual(t *testing.T, want, got *Message) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ThreadID, got.ThreadID)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
}

func contents(messages []Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.True(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestCodecRejectsMalformedRecords(t *testing.T) {
	_, err := decodeThread(map[string]string{"id": "t1", "createdAt": "yesterday"})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = decodeMessage(map[string]string{
		"id":        "m1",
		"createdAt": "2026-03-14T09:26:53Z",
		"metadata":  "{not json",
	})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	thread, err := decodeThread(map[string]string{"updatedAt": "2026-03-14T09:26:53Z"})
	require.NoError(t, err)
	assert.Nil(t, thread, "a hash without an id is treated as absent")
}

func TestBackendErrorsPropagate(t *testing.T) {
	env := setupStores(t)
	ctx := context.Background()

	env.mr.Close()

	_, err := env.threads.CreateThread(ctx, "r1", "", nil)
	require.Error(t, err)

	_, err = env.threads.GetThreadByID(ctx, "t1")
	require.Error(t, err)

	_, err = env.messages.GetMessages(ctx, "t1", Page{})
	require.Error(t, err)
}
