package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/alexgetty/roux/internal/apperr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/core"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/store"
)

func newTestHandlers(t *testing.T, emb embedder.Embedder) (*handlers, string) {
	t.Helper()
	root := t.TempDir()
	cacheDir := filepath.Join(root, ".roux")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	c, err := cache.Open(cacheDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s := store.New(root, c, logger.NewWarnings())
	co := core.New(s, emb)
	return &handlers{core: co, warnings: logger.NewWarnings()}, root
}

func TestCreateThenGetNodeHandler(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()

	createRes, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "See [[b]]", Title: "A"},
	})
	require.NoError(t, err)
	require.Equal(t, "a.md", createRes.StructuredContent.ID)

	getRes, err := h.getNode(ctx, nil, &mcp.CallToolParamsFor[GetNodeParams]{
		Arguments: GetNodeParams{ID: "a.md", Depth: 1},
	})
	require.NoError(t, err)
	require.Equal(t, "A", getRes.StructuredContent.Title)
	require.Len(t, getRes.StructuredContent.Links, 1)
	require.Equal(t, "b.md", getRes.StructuredContent.Links[0].ID)
}

func TestGetNodeMissingReturnsEmptyResultNotError(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	res, err := h.getNode(context.Background(), nil, &mcp.CallToolParamsFor[GetNodeParams]{
		Arguments: GetNodeParams{ID: "missing.md"},
	})
	require.NoError(t, err)
	require.Empty(t, res.StructuredContent.ID)
}

func TestGetNodeRejectsEmptyID(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, err := h.getNode(context.Background(), nil, &mcp.CallToolParamsFor[GetNodeParams]{})
	require.Error(t, err)
	mcpErr, ok := err.(*apperr.MCPError)
	require.True(t, ok)
	require.Equal(t, apperr.InvalidParams, mcpErr.Code)
}

func TestCreateNodeRejectsNonMarkdownID(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, err := h.createNode(context.Background(), nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.txt", Content: "body"},
	})
	require.Error(t, err)
}

func TestSearchByTagsAnyAndAll(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "x", Tags: []string{"x", "y"}},
	})
	require.NoError(t, err)
	_, err = h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "b.md", Content: "x", Tags: []string{"x"}},
	})
	require.NoError(t, err)

	any, err := h.searchByTags(ctx, nil, &mcp.CallToolParamsFor[SearchByTagsParams]{
		Arguments: SearchByTagsParams{Tags: []string{"x", "y"}, Mode: "any"},
	})
	require.NoError(t, err)
	require.Len(t, any.StructuredContent.Nodes, 2)

	all, err := h.searchByTags(ctx, nil, &mcp.CallToolParamsFor[SearchByTagsParams]{
		Arguments: SearchByTagsParams{Tags: []string{"x", "y"}, Mode: "all"},
	})
	require.NoError(t, err)
	require.Len(t, all.StructuredContent.Nodes, 1)
}

func TestSearchByTagsRejectsEmptyTags(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, err := h.searchByTags(context.Background(), nil, &mcp.CallToolParamsFor[SearchByTagsParams]{})
	require.Error(t, err)
}

func TestFindPathHandler(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "[[b]]"},
	})
	require.NoError(t, err)
	_, err = h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "b.md", Content: "body"},
	})
	require.NoError(t, err)

	res, err := h.findPath(ctx, nil, &mcp.CallToolParamsFor[FindPathParams]{
		Arguments: FindPathParams{Source: "a.md", Target: "b.md"},
	})
	require.NoError(t, err)
	require.True(t, res.StructuredContent.Found)
	require.Equal(t, []string{"a.md", "b.md"}, res.StructuredContent.Path)
}

func TestResolveNodesSemanticRequiresEmbedder(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, err := h.resolveNodes(context.Background(), nil, &mcp.CallToolParamsFor[ResolveNodesParams]{
		Arguments: ResolveNodesParams{Names: []string{"x"}, Strategy: "semantic"},
	})
	require.Error(t, err)
}

func TestResolveNodesExact(t *testing.T) {
	h, _ := newTestHandlers(t, embedder.NewLocal(16))
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "cat.md", Title: "Cat Sat Mat", Content: "body"},
	})
	require.NoError(t, err)

	res, err := h.resolveNodes(ctx, nil, &mcp.CallToolParamsFor[ResolveNodesParams]{
		Arguments: ResolveNodesParams{Names: []string{"Cat Sat Mat"}, Strategy: "exact"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.StructuredContent.Results[0].MatchID)
	require.Equal(t, "cat.md", *res.StructuredContent.Results[0].MatchID)
}

func TestNodesExistHandler(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "body"},
	})
	require.NoError(t, err)

	res, err := h.nodesExist(ctx, nil, &mcp.CallToolParamsFor[NodesExistParams]{
		Arguments: NodesExistParams{IDs: []string{"a.md", "missing.md"}},
	})
	require.NoError(t, err)
	require.True(t, res.StructuredContent.Exist["a.md"])
	require.False(t, res.StructuredContent.Exist["missing.md"])
}

func TestDeleteNodeHandlerReportsWhetherFileExisted(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "body"},
	})
	require.NoError(t, err)

	res, err := h.deleteNode(ctx, nil, &mcp.CallToolParamsFor[DeleteNodeParams]{
		Arguments: DeleteNodeParams{ID: "a.md"},
	})
	require.NoError(t, err)
	require.True(t, res.StructuredContent.Deleted)

	res, err = h.deleteNode(ctx, nil, &mcp.CallToolParamsFor[DeleteNodeParams]{
		Arguments: DeleteNodeParams{ID: "a.md"},
	})
	require.NoError(t, err)
	require.False(t, res.StructuredContent.Deleted)
}

func TestListNodesPagination(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a.md", "b.md", "c.md"} {
		_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
			Arguments: CreateNodeParams{ID: id, Content: "body"},
		})
		require.NoError(t, err)
	}

	res, err := h.listNodes(ctx, nil, &mcp.CallToolParamsFor[ListNodesParams]{
		Arguments: ListNodesParams{Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.StructuredContent.Nodes, 2)
	require.Equal(t, 3, res.StructuredContent.Total)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	h, _ := newTestHandlers(t, embedder.NewLocal(16))
	_, err := h.search(context.Background(), nil, &mcp.CallToolParamsFor[SearchParams]{
		Arguments: SearchParams{Query: "  "},
	})
	require.Error(t, err)
}

func TestGetHubsHandler(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	ctx := context.Background()
	_, err := h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "a.md", Content: "[[c]]"},
	})
	require.NoError(t, err)
	_, err = h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "b.md", Content: "[[c]]"},
	})
	require.NoError(t, err)
	_, err = h.createNode(ctx, nil, &mcp.CallToolParamsFor[CreateNodeParams]{
		Arguments: CreateNodeParams{ID: "c.md", Content: "body"},
	})
	require.NoError(t, err)

	res, err := h.getHubs(ctx, nil, &mcp.CallToolParamsFor[GetHubsParams]{
		Arguments: GetHubsParams{Metric: "in_degree", Limit: 1},
	})
	require.NoError(t, err)
	require.Equal(t, "c.md", res.StructuredContent.Hubs[0].ID)
}
