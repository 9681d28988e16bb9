package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T, collection string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", collection)
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_SQLite_EmptyCollection(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "conhecimento_empresa")
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.Get(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_SQLite_UpsertAndSearch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c")
	ctx := context.Background()

	docs := []Document{
		{ID: "a.txt", Content: "alpha", Source: "a.txt", Metadata: map[string]string{"origin": "a.txt"}},
		{ID: "b.txt", Content: "beta", Source: "b.txt"},
		{ID: "c.txt", Content: "gamma", Source: "c.txt"},
	}
	vecs := [][]float32{{1, 0, 0}, {0.8, 0.6, 0}, {0, 0, 1}}
	require.NoError(t, s.Upsert(ctx, docs, vecs))

	got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].ID)
	assert.Equal(t, "b.txt", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)
	assert.Equal(t, "a.txt", got[0].Metadata["origin"])

	all, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "topK larger than the collection returns everything")
}

func Test_SQLite_UpsertLastWriteWins(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx,
		[]Document{{ID: "politica.txt", Content: "old", Source: "politica.txt"}},
		[][]float32{{1, 0}}))
	require.NoError(t, s.Upsert(ctx,
		[]Document{{ID: "politica.txt", Content: "new", Source: "politica.txt"}},
		[][]float32{{0, 1}}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := s.Get(ctx, "politica.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", doc.Content)
}

func Test_SQLite_DimensionMismatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Document{{ID: "a"}}, [][]float32{{1, 2, 3}}))

	err := s.Upsert(ctx, []Document{{ID: "b"}}, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = s.Upsert(ctx, []Document{{ID: "a"}, {ID: "b"}}, [][]float32{{1, 2, 3}})
	assert.Error(t, err, "documents and embeddings must be parallel")
}

func Test_SQLite_CollectionsAreIsolated(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	a, err := OpenSQLite(ctx, path, "a")
	require.NoError(t, err)
	require.NoError(t, a.Upsert(ctx, []Document{{ID: "x"}}, [][]float32{{1, 0}}))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(ctx, path, "b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A different collection may use a different vector size.
	require.NoError(t, b.Upsert(ctx, []Document{{ID: "y"}}, [][]float32{{1, 0, 0, 0}}))
}

func Test_SQLite_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "vectors.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, "conhecimento_empresa")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx,
		[]Document{{ID: "historia.txt", Content: "A empresa foi fundada em 2020.", Source: "historia.txt"}},
		[][]float32{{0.5, 0.5}}))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path, "conhecimento_empresa")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	doc, err := reopened.Get(ctx, "historia.txt")
	require.NoError(t, err)
	assert.Equal(t, "A empresa foi fundada em 2020.", doc.Content)
}

func Test_SQLite_Delete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx,
		[]Document{{ID: "a"}, {ID: "b"}},
		[][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Delete(ctx, []string{"a", "unknown"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_SQLite_OpenRequiresCollection(t *testing.T) {
	t.Parallel()
	_, err := OpenSQLite(context.Background(), ":memory:", "")
	assert.Error(t, err)
}

func TestVectorCodecAndCosine(t *testing.T) {
	t.Parallel()

	vec := []float32{0.25, -1.5, 3}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	assert.InDelta(t, 0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1, cosine([]float32{1, 1}, []float32{-1, -1}), 1e-6)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}
