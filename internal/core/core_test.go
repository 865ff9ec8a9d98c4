package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/store"
)

func newTestCore(t *testing.T, emb embedder.Embedder) (*Core, string) {
	t.Helper()
	root := t.TempDir()
	cacheDir := filepath.Join(root, ".roux")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	c, err := cache.Open(cacheDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s := store.New(root, c, logger.NewWarnings())
	return New(s, emb), root
}

func TestHasEmbedderReflectsRegistration(t *testing.T) {
	withEmb, _ := newTestCore(t, embedder.NewLocal(16))
	require.True(t, withEmb.HasEmbedder())

	without, _ := newTestCore(t, nil)
	require.False(t, without.HasEmbedder())
}

func TestSearchWithoutEmbedderErrors(t *testing.T) {
	c, _ := newTestCore(t, nil)
	_, err := c.Search(context.Background(), "query", 10)
	require.Error(t, err)
}

// TestSemanticRoundTrip reproduces spec §8 scenario 6.
func TestSemanticRoundTrip(t *testing.T) {
	c, _ := newTestCore(t, embedder.NewLocal(64))

	_, err := c.CreateNode(context.Background(), store.CreateOptions{ID: "t1.md", Content: "cat sat mat"})
	require.NoError(t, err)
	_, err = c.CreateNode(context.Background(), store.CreateOptions{ID: "t2.md", Content: "dog ran far"})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "cat", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	scoreByID := map[string]float64{}
	for _, r := range results {
		scoreByID[r.Node.ID] = r.Score
	}
	require.GreaterOrEqual(t, scoreByID["t1.md"], scoreByID["t2.md"])
}

func TestCreateNodeEmbedsContentWhenEmbedderPresent(t *testing.T) {
	c, _ := newTestCore(t, embedder.NewLocal(16))
	_, err := c.CreateNode(context.Background(), store.CreateOptions{ID: "a.md", Content: "hello world"})
	require.NoError(t, err)

	has, err := c.Store().Cache().HasEmbedding("a.md")
	require.NoError(t, err)
	require.True(t, has)
}

func TestUpdateNodeTitleOnlyKeepsEmbedding(t *testing.T) {
	c, _ := newTestCore(t, embedder.NewLocal(16))
	_, err := c.CreateNode(context.Background(), store.CreateOptions{ID: "a.md", Content: "v1"})
	require.NoError(t, err)

	newTitle := "New Title"
	_, err = c.UpdateNode(context.Background(), "a.md", store.UpdateOptions{Title: &newTitle})
	require.NoError(t, err)

	model, ok, err := c.Store().Cache().GetEmbeddingModel("a.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, embedder.NewLocal(16).Model(), model)
}
