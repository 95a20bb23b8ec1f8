package storage

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStoreTest(t *testing.T) *MemoryStore {
	t.Helper()
	table := NewSessionTable()
	t.Cleanup(table.Reset)
	return NewMemoryStore(table, logr.Discard())
}

func TestMemoryStoreCreateAndResolve(t *testing.T) {
	store := newMemoryStoreTest(t)
	ctx := context.Background()

	for _, userID := range []string{"u-1", "2b2b0c4e-5b0c-4d34-9f1f-7c9e7d0e1a11", " spaced "} {
		sessionID, ok := store.CreateSession(ctx, userID)
		require.True(t, ok)

		_, err := uuid.Parse(sessionID)
		assert.NoError(t, err, "session id should be a uuid")

		got, ok := store.UserIDForSession(ctx, sessionID)
		require.True(t, ok)
		assert.Equal(t, userID, got)
	}
	assert.Equal(t, 3, store.Table().Len())
}

func TestMemoryStoreCreateRejectsEmptyUser(t *testing.T) {
	store := newMemoryStoreTest(t)

	sessionID, ok := store.CreateSession(context.Background(), "")
	assert.False(t, ok)
	assert.Empty(t, sessionID)
	assert.Zero(t, store.Table().Len())
}

func TestMemoryStoreSessionIDsAreUnique(t *testing.T) {
	store := newMemoryStoreTest(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		sessionID, ok := store.CreateSession(ctx, "u-1")
		require.True(t, ok)
		_, dup := seen[sessionID]
		require.False(t, dup, "duplicate session id %s", sessionID)
		seen[sessionID] = struct{}{}
	}
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := newMemoryStoreTest(t)
	ctx := context.Background()

	for _, sessionID := range []string{"", "missing", uuid.NewString()} {
		_, ok := store.UserIDForSession(ctx, sessionID)
		assert.False(t, ok, "resolve %q", sessionID)
		assert.False(t, store.DestroySession(ctx, sessionID), "destroy %q", sessionID)
	}
}

func TestMemoryStoreDestroyTwice(t *testing.T) {
	store := newMemoryStoreTest(t)
	ctx := context.Background()

	sessionID, ok := store.CreateSession(ctx, "u-1")
	require.True(t, ok)

	assert.True(t, store.DestroySession(ctx, sessionID))
	assert.False(t, store.DestroySession(ctx, sessionID))

	_, ok = store.UserIDForSession(ctx, sessionID)
	assert.False(t, ok, "destroyed session must not resolve")
	assert.False(t, store.Exists(sessionID))
}

func TestSessionTableSharedAndReset(t *testing.T) {
	table := NewSessionTable()
	first := NewMemoryStore(table, logr.Discard())
	second := NewMemoryStore(table, logr.Discard())
	ctx := context.Background()

	sessionID, ok := first.CreateSession(ctx, "u-1")
	require.True(t, ok)

	got, ok := second.UserIDForSession(ctx, sessionID)
	require.True(t, ok)
	assert.Equal(t, "u-1", got)

	table.Reset()
	_, ok = second.UserIDForSession(ctx, sessionID)
	assert.False(t, ok)
	assert.Zero(t, table.Len())
}
