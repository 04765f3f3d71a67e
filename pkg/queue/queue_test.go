package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSanitizesAndDedups(t *testing.T) {
	dir := t.TempDir()
	raw := "https://www.instagram.com/alice/\n" +
		"  https://www.instagram.com/bob/  \n" +
		"\n" +
		"not-a-url\n" +
		"https://example.com/mallory/\n" +
		"https://www.instagram.com/alice/\n" +
		"https://instagram.com/carol/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, QueueFileName), []byte(raw), 0644))

	q := New(dir)
	links, err := q.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.instagram.com/alice/",
		"https://www.instagram.com/bob/",
		"https://instagram.com/carol/",
	}, links)
}

func TestAppendSkipsDuplicatesAndInvalid(t *testing.T) {
	q := New(t.TempDir())
	ctx := context.Background()

	added, err := q.Append(ctx, []string{
		ProfileURL("alice"),
		ProfileURL("bob"),
		"garbage",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = q.Append(ctx, []string{ProfileURL("alice"), ProfileURL("carol")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPopAndRequeueOrder(t *testing.T) {
	q := New(t.TempDir())
	ctx := context.Background()

	_, err := q.Append(ctx, []string{ProfileURL("a"), ProfileURL("b"), ProfileURL("c")})
	require.NoError(t, err)

	head, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ProfileURL("a"), head)

	// Transient failure sends the entry to the tail
	require.NoError(t, q.PushTail(ctx, head))

	links, err := q.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{ProfileURL("b"), ProfileURL("c"), ProfileURL("a")}, links)
}

func TestPopEmptyQueue(t *testing.T) {
	q := New(t.TempDir())
	_, ok, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcileDropsCompleted(t *testing.T) {
	q := New(t.TempDir())
	ctx := context.Background()

	_, err := q.Append(ctx, []string{ProfileURL("done"), ProfileURL("pending"), ProfileURL("limited")})
	require.NoError(t, err)

	removed, err := q.Reconcile(ctx, map[string]struct{}{"done": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	links, err := q.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{ProfileURL("pending"), ProfileURL("limited")}, links)
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "alice", Username("https://www.instagram.com/alice/"))
	assert.Equal(t, "bob", Username("https://instagram.com/bob"))
	assert.Equal(t, "", Username("https://www.instagram.com/"))
	assert.Equal(t, "", Username("://bad"))
}
