package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeMergeIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewEdgeStore(dir)

	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
		{Source: "a", Target: "b"}, // duplicate within one batch
	}

	added, err := s.Merge(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Merging the same edges again adds nothing
	added, err = s.Merge(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEdgeMergeCommutative(t *testing.T) {
	first := []Edge{{Source: "a", Target: "b"}, {Source: "c", Target: "d"}}
	second := []Edge{{Source: "c", Target: "d"}, {Source: "e", Target: "f"}}

	dirAB := t.TempDir()
	sAB := NewEdgeStore(dirAB)
	_, err := sAB.Merge(context.Background(), first)
	require.NoError(t, err)
	_, err = sAB.Merge(context.Background(), second)
	require.NoError(t, err)

	dirBA := t.TempDir()
	sBA := NewEdgeStore(dirBA)
	_, err = sBA.Merge(context.Background(), second)
	require.NoError(t, err)
	_, err = sBA.Merge(context.Background(), first)
	require.NoError(t, err)

	edgesAB, err := sAB.Load()
	require.NoError(t, err)
	edgesBA, err := sBA.Load()
	require.NoError(t, err)

	assert.ElementsMatch(t, edgesAB, edgesBA)
	assert.Len(t, edgesAB, 3)
}

func TestEdgeMergeDropsEmptyEndpoints(t *testing.T) {
	s := NewEdgeStore(t.TempDir())

	added, err := s.Merge(context.Background(), []Edge{
		{Source: "", Target: "b"},
		{Source: "a", Target: ""},
		{Source: "a", Target: "a"}, // self-loop is kept
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestEdgeStorePreservesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, EdgeFileName)
	require.NoError(t, os.WriteFile(path, []byte("x y\nq r\n"), 0644))

	s := NewEdgeStore(dir)
	added, err := s.Merge(context.Background(), []Edge{{Source: "x", Target: "y"}, {Source: "n", Target: "m"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	edges, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []Edge{{"x", "y"}, {"q", "r"}, {"n", "m"}}, edges)
}
