package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	cache, err := NewEmbeddingCache(db, nil)
	require.NoError(t, err)
	return cache
}

func TestEmbeddingCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	vec := []float64{0.1, 0.2, 0.3}
	require.NoError(t, cache.Set(ctx, "hash-a", vec))

	got, found, err := cache.Get(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, vec, got)
}

func TestEmbeddingCache_GetUnknownHash(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	got, found, err := cache.Get(ctx, "never-stored")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestEmbeddingCache_SetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	vec := []float64{1, 2}
	require.NoError(t, cache.Set(ctx, "hash-a", vec))
	require.NoError(t, cache.Set(ctx, "hash-a", vec))

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEmbeddingCache_SetOverwritesExistingKey(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	require.NoError(t, cache.Set(ctx, "hash-a", []float64{1}))
	require.NoError(t, cache.Set(ctx, "hash-a", []float64{2}))

	got, found, err := cache.Get(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{2}, got)
}

func TestEmbeddingCache_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := Open(path)
	require.NoError(t, err)
	cache, err := NewEmbeddingCache(db, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "hash-a", []float64{0.5, 0.6}))

	reopened, err := Open(path)
	require.NoError(t, err)
	cache2, err := NewEmbeddingCache(reopened, nil)
	require.NoError(t, err)

	got, found, err := cache2.Get(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{0.5, 0.6}, got)
}

func TestEmbeddingCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	require.NoError(t, cache.Set(ctx, "hash-a", []float64{1}))
	require.NoError(t, cache.Set(ctx, "hash-b", []float64{2}))
	require.NoError(t, cache.Clear(ctx))

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, found, err := cache.Get(ctx, "hash-a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmbeddingCache_ListSample(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	require.NoError(t, cache.Set(ctx, "hash-a", []float64{1}))
	require.NoError(t, cache.Set(ctx, "hash-b", []float64{2}))
	require.NoError(t, cache.Set(ctx, "hash-c", []float64{3}))

	sample, err := cache.ListSample(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)
	assert.Equal(t, []string{"hash-a", "hash-b"}, sample)
}
