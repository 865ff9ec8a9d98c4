package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexgetty/roux/internal/apperr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/graphmirror"
	"github.com/alexgetty/roux/internal/logger"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	cacheDir := filepath.Join(root, ".roux")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	c, err := cache.Open(cacheDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s := New(root, c, logger.NewWarnings())
	return s, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func reconcile(t *testing.T, s *Store, ids map[string]struct{}) ReconcileSummary {
	t.Helper()
	summary, err := s.Reconcile(ids)
	require.NoError(t, err)
	return summary
}

// TestCreateThenQuery reproduces spec §8 scenario 1.
func TestCreateThenQuery(t *testing.T) {
	s, _ := newTestStore(t)

	n, err := s.CreateNode(CreateOptions{ID: "Notes/Research.md", Content: "See [[ML]]"})
	require.NoError(t, err)
	require.Equal(t, "notes/research.md", n.ID)
	require.Equal(t, "Research", n.Title)
	require.Equal(t, []string{"ml.md"}, n.OutgoingLinks)

	got, ok, err := s.GetNode("notes/research.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Research", got.Title)

	neighbors, err := s.Neighbors("ml.md", graphmirror.DirectionIn, 0)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	require.Equal(t, "notes/research.md", neighbors[0].ID)
}

// TestLinkIntegrityOnRename reproduces spec §8 scenario 2.
func TestLinkIntegrityOnRename(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "---\ntitle: A\n---\n[[b]]")
	writeFile(t, root, "b.md", "---\ntitle: B\n---\nbody")
	reconcile(t, s, map[string]struct{}{"a.md": {}, "b.md": {}})

	renamed := "B Renamed"
	_, err := s.UpdateNode("b.md", UpdateOptions{Title: &renamed})
	require.Error(t, err)
	mcpErr, ok := err.(*apperr.MCPError)
	require.True(t, ok)
	require.Equal(t, apperr.LinkIntegrity, mcpErr.Code)

	raw, readErr := os.ReadFile(filepath.Join(root, "b.md"))
	require.NoError(t, readErr)
	require.Contains(t, string(raw), "title: B")
}

// TestGhostNeighbor reproduces spec §8 scenario 4.
func TestGhostNeighbor(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "[[ghost]]")
	reconcile(t, s, map[string]struct{}{"a.md": {}})

	res, err := s.ListNodes(cache.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	require.Equal(t, "a.md", res.Nodes[0].ID)

	outNeighbors, err := s.Neighbors("a.md", graphmirror.DirectionOut, 0)
	require.NoError(t, err)
	require.Empty(t, outNeighbors)

	path, err := s.ShortestPath("a.md", "ghost.md")
	require.NoError(t, err)
	require.Nil(t, path)
}

// TestCentralityScenario reproduces spec §8 scenario 5.
func TestCentralityScenario(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "[[b]] [[d]]")
	writeFile(t, root, "b.md", "[[c]] [[e]]")
	writeFile(t, root, "d.md", "[[e]]")
	writeFile(t, root, "c.md", "no links")
	writeFile(t, root, "e.md", "no links")
	reconcile(t, s, map[string]struct{}{
		"a.md": {}, "b.md": {}, "c.md": {}, "d.md": {}, "e.md": {},
	})

	inHubs, err := s.Hubs(graphmirror.MetricInDegree, 1)
	require.NoError(t, err)
	require.Equal(t, "e.md", inHubs[0].ID)
	require.Equal(t, 2, inHubs[0].Score)

	outHubs, err := s.Hubs(graphmirror.MetricOutDegree, 2)
	require.NoError(t, err)
	require.Equal(t, "a.md", outHubs[0].ID)
	require.Equal(t, "b.md", outHubs[1].ID)
}

func TestDeleteNodeReportsWhetherFileExisted(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "body")
	reconcile(t, s, map[string]struct{}{"a.md": {}})

	deleted, err := s.DeleteNode("a.md")
	require.NoError(t, err)
	require.True(t, deleted)

	deletedAgain, err := s.DeleteNode("a.md")
	require.NoError(t, err)
	require.False(t, deletedAgain)
}

func TestCreateNodeFailsIfExists(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateNode(CreateOptions{ID: "a.md", Content: "x"})
	require.NoError(t, err)

	_, err = s.CreateNode(CreateOptions{ID: "a.md", Content: "y"})
	require.Error(t, err)
	mcpErr, ok := err.(*apperr.MCPError)
	require.True(t, ok)
	require.Equal(t, apperr.NodeExists, mcpErr.Code)
}

func TestUpdateNodeNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.UpdateNode("missing.md", UpdateOptions{})
	require.Error(t, err)
	mcpErr, ok := err.(*apperr.MCPError)
	require.True(t, ok)
	require.Equal(t, apperr.NodeNotFound, mcpErr.Code)
}

// TestReconcileIdempotence reproduces spec P7.
func TestReconcileIdempotence(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "[[b]]")
	writeFile(t, root, "b.md", "body")

	reconcile(t, s, map[string]struct{}{"a.md": {}, "b.md": {}})
	first, err := s.cache.AllNodes()
	require.NoError(t, err)

	reconcile(t, s, map[string]struct{}{"a.md": {}, "b.md": {}})
	second, err := s.cache.AllNodes()
	require.NoError(t, err)

	require.Equal(t, first, second)
}

// TestRoundTripCreateGet reproduces spec P6.
func TestRoundTripCreateGet(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateNode(CreateOptions{
		ID: "x.md", Title: "X", Content: "hello",
		Tags: []string{"A", "b"}, Properties: map[string]interface{}{"priority": "high"},
	})
	require.NoError(t, err)

	got, ok, err := s.GetNode("x.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "X", got.Title)
	require.Equal(t, "hello", got.Content)
	require.ElementsMatch(t, []string{"a", "b"}, got.Tags)
	require.Equal(t, "high", got.Properties["priority"])
}

func TestResolveNodesExactFuzzySemantic(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "cat.md", "---\ntitle: Cat Sat Mat\n---\nbody")
	writeFile(t, root, "dog.md", "---\ntitle: Dog Ran Far\n---\nbody")
	reconcile(t, s, map[string]struct{}{"cat.md": {}, "dog.md": {}})

	exact, err := s.ResolveNodes(context.Background(), []string{"Cat Sat Mat"}, StrategyExact, 0, CandidateFilter{}, nil)
	require.NoError(t, err)
	require.True(t, exact[0].Matched)
	require.Equal(t, "cat.md", exact[0].MatchID)

	fuzzy, err := s.ResolveNodes(context.Background(), []string{"Cat Sat"}, StrategyFuzzy, 0.3, CandidateFilter{}, nil)
	require.NoError(t, err)
	require.True(t, fuzzy[0].Matched)
	require.Equal(t, "cat.md", fuzzy[0].MatchID)

	emb := embedder.NewLocal(32)
	semantic, err := s.ResolveNodes(context.Background(), []string{"Cat Sat Mat"}, StrategySemantic, 0.5, CandidateFilter{}, emb)
	require.NoError(t, err)
	require.True(t, semantic[0].Matched)
	require.Equal(t, "cat.md", semantic[0].MatchID)
}

func TestResolveTitlesFallsBackToStemForUnknownID(t *testing.T) {
	s, _ := newTestStore(t)
	titles, err := s.ResolveTitles([]string{"missing/note.md"})
	require.NoError(t, err)
	require.Equal(t, "note", titles["missing/note.md"])
}

func TestReconcileSummaryCountsUpsertsDeletesAndGhosts(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "[[b]] [[ghost]]")
	writeFile(t, root, "b.md", "body")

	summary := reconcile(t, s, map[string]struct{}{"a.md": {}, "b.md": {}})
	require.Equal(t, 2, summary.NodesUpserted)
	require.Equal(t, 0, summary.NodesDeleted)
	require.Equal(t, 1, summary.GhostsCreated)

	require.NoError(t, os.Remove(filepath.Join(root, "b.md")))
	summary, err := s.Reconcile(map[string]struct{}{"b.md": {}})
	require.NoError(t, err)
	require.Equal(t, 1, summary.NodesDeleted)
}

func TestCheckReportsNoFindingsOnCleanStore(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "body")
	reconcile(t, s, map[string]struct{}{"a.md": {}})

	report, err := s.Check()
	require.NoError(t, err)
	require.Empty(t, report.CaseCollisions)
	require.Empty(t, report.DimensionDrift)
	require.Equal(t, 0, report.OrphanTagRows)
	require.Equal(t, uint64(1), report.MirrorVersion)
}

// TestReconcileWatcherPathPreservesRealCaseTitle guards against deriving
// the filename-stem fallback title from the normalized (lowercased) id
// instead of the file's real on-disk case.
func TestReconcileWatcherPathPreservesRealCaseTitle(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "Guide.md", "no heading, no frontmatter")
	reconcile(t, s, map[string]struct{}{"guide.md": {}})

	got, ok, err := s.GetNode("guide.md")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Guide", got.Title)
}

// TestReconcileSkipsTruncatedFrontmatter reproduces spec §4.1/§4.6: a file
// that opens frontmatter with `---` but never closes it is a parse error,
// not a recoverable warning, and must not be committed to the cache.
func TestReconcileSkipsTruncatedFrontmatter(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "bad.md", "---\ntitle: Oops\nno closing delimiter\n")

	summary := reconcile(t, s, map[string]struct{}{"bad.md": {}})
	require.Equal(t, 0, summary.NodesUpserted)

	_, ok, err := s.GetNode("bad.md")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReconcileAllWalksSourceRoot(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, root, "a.md", "[[b]]")
	writeFile(t, root, "sub/b.md", "body")

	summary, err := s.ReconcileAll()
	require.NoError(t, err)
	require.Equal(t, 2, summary.NodesUpserted)

	res, err := s.ListNodes(cache.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
}
