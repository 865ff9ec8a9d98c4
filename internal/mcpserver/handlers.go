package mcpserver

import (
	"context"
	"math/rand"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexgetty/roux/internal/apperr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/core"
	"github.com/alexgetty/roux/internal/graphmirror"
	"github.com/alexgetty/roux/internal/graphmodel"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/store"
)

type handlers struct {
	core     *core.Core
	warnings *logger.Warnings
}

func textContent(s string) []mcp.Content {
	return []mcp.Content{&mcp.TextContent{Text: s}}
}

func (h *handlers) search(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchParams]) (*mcp.CallToolResultFor[SearchToolResult], error) {
	args := params.Arguments
	if strings.TrimSpace(args.Query) == "" {
		return nil, apperr.Invalid("query", "must not be empty")
	}
	limit := clamp(args.Limit, 1, 50, 10)

	results, err := h.core.Search(ctx, args.Query, limit)
	if err != nil {
		return nil, err
	}

	contentLimit := listRowContentLimit
	if args.IncludeContent {
		contentLimit = primaryContentLimit
	}

	out := make([]SearchResultResponse, 0, len(results))
	for _, r := range results {
		nr, err := toNodeResponse(h.core, r.Node, contentLimit)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		out = append(out, SearchResultResponse{NodeResponse: nr, Score: r.Score})
	}

	result := SearchToolResult{Results: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[SearchToolResult]{Content: textContent("search complete"), StructuredContent: result}, nil
}

func (h *handlers) getNode(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GetNodeParams]) (*mcp.CallToolResultFor[GetNodeResult], error) {
	args := params.Arguments
	id := graphmodel.NormalizeID(args.ID)
	if id == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	if args.Depth != 0 && args.Depth != 1 {
		return nil, apperr.Invalid("depth", "must be 0 or 1")
	}

	n, ok, err := h.core.Store().GetNode(id)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	if !ok {
		return &mcp.CallToolResultFor[GetNodeResult]{Content: textContent("node not found"), StructuredContent: GetNodeResult{Warnings: h.warnings.Drain()}}, nil
	}

	nr, err := toNodeResponse(h.core, n, primaryContentLimit)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	result := GetNodeResult{NodeResponse: nr}

	if args.Depth == 1 {
		incoming, err := h.core.Store().Neighbors(id, graphmirror.DirectionIn, maxNeighborArrayLen)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		outgoing, err := h.core.Store().Neighbors(id, graphmirror.DirectionOut, maxNeighborArrayLen)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		inResp, err := toNodeResponses(h.core, incoming, nestedRowContentLimit)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		outResp, err := toNodeResponses(h.core, outgoing, nestedRowContentLimit)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		inCount, err := h.core.Store().NeighborCount(id, graphmirror.DirectionIn)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		outCount, err := h.core.Store().NeighborCount(id, graphmirror.DirectionOut)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		result.IncomingNeighbors = inResp
		result.OutgoingNeighbors = outResp
		result.IncomingCount = inCount
		result.OutgoingCount = outCount
	}

	result.Warnings = h.warnings.Drain()
	return &mcp.CallToolResultFor[GetNodeResult]{Content: textContent("node " + id), StructuredContent: result}, nil
}

func (h *handlers) getNeighbors(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GetNeighborsParams]) (*mcp.CallToolResultFor[NeighborsToolResult], error) {
	args := params.Arguments
	id := graphmodel.NormalizeID(args.ID)
	if id == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	direction, err := parseDirection(args.Direction)
	if err != nil {
		return nil, err
	}
	limit := clamp(args.Limit, 1, 50, 20)

	neighbors, nErr := h.core.Store().Neighbors(id, direction, limit)
	if nErr != nil {
		return nil, apperr.Provider(nErr)
	}

	contentLimit := listRowContentLimit
	if args.IncludeContent {
		contentLimit = primaryContentLimit
	}
	out, hErr := toNodeResponses(h.core, neighbors, contentLimit)
	if hErr != nil {
		return nil, apperr.Provider(hErr)
	}

	result := NeighborsToolResult{Neighbors: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[NeighborsToolResult]{Content: textContent("neighbors of " + id), StructuredContent: result}, nil
}

func (h *handlers) findPath(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[FindPathParams]) (*mcp.CallToolResultFor[PathResult], error) {
	args := params.Arguments
	source := graphmodel.NormalizeID(args.Source)
	target := graphmodel.NormalizeID(args.Target)
	if source == "" {
		return nil, apperr.Invalid("source", "must not be empty")
	}
	if target == "" {
		return nil, apperr.Invalid("target", "must not be empty")
	}

	path, err := h.core.Store().ShortestPath(source, target)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	if path == nil {
		return &mcp.CallToolResultFor[PathResult]{Content: textContent("no path found"), StructuredContent: PathResult{Found: false, Warnings: h.warnings.Drain()}}, nil
	}

	result := PathResult{Path: path, Length: len(path) - 1, Found: true, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[PathResult]{Content: textContent("path found"), StructuredContent: result}, nil
}

func (h *handlers) getHubs(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GetHubsParams]) (*mcp.CallToolResultFor[HubsToolResult], error) {
	args := params.Arguments
	metric := graphmirror.MetricInDegree
	switch args.Metric {
	case "", "in_degree":
		metric = graphmirror.MetricInDegree
	case "out_degree":
		metric = graphmirror.MetricOutDegree
	case "pagerank":
		// Documented fallback: pagerank is not live; map to in_degree
		// rather than fail (spec §9, open question).
		metric = graphmirror.MetricInDegree
	default:
		return nil, apperr.Invalid("metric", "must be in_degree or out_degree")
	}
	limit := clamp(args.Limit, 1, 50, 10)

	hubs, err := h.core.Store().Hubs(metric, limit)
	if err != nil {
		return nil, apperr.Provider(err)
	}

	ids := make([]string, len(hubs))
	for i, hub := range hubs {
		ids[i] = hub.ID
	}
	titles, err := h.core.Store().ResolveTitles(ids)
	if err != nil {
		return nil, apperr.Provider(err)
	}

	out := make([]HubResponse, 0, len(hubs))
	for _, hub := range hubs {
		out = append(out, HubResponse{ID: hub.ID, Title: titles[hub.ID], Score: hub.Score})
	}

	result := HubsToolResult{Hubs: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[HubsToolResult]{Content: textContent("hubs"), StructuredContent: result}, nil
}

func (h *handlers) searchByTags(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchByTagsParams]) (*mcp.CallToolResultFor[TagSearchToolResult], error) {
	args := params.Arguments
	if len(args.Tags) == 0 {
		return nil, apperr.Invalid("tags", "must contain at least one tag")
	}
	mode := cache.TagModeAny
	switch args.Mode {
	case "", "any":
		mode = cache.TagModeAny
	case "all":
		mode = cache.TagModeAll
	default:
		return nil, apperr.Invalid("mode", "must be any or all")
	}
	limit := clamp(args.Limit, 1, 100, 20)

	nodes, err := h.core.Store().SearchByTags(args.Tags, mode, limit)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	out, err := toNodeResponses(h.core, nodes, listRowContentLimit)
	if err != nil {
		return nil, apperr.Provider(err)
	}

	result := TagSearchToolResult{Nodes: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[TagSearchToolResult]{Content: textContent("search_by_tags"), StructuredContent: result}, nil
}

func (h *handlers) randomNode(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[RandomNodeParams]) (*mcp.CallToolResultFor[RandomNodeToolResult], error) {
	args := params.Arguments

	var candidates []graphmodel.Node
	var err error
	if len(args.Tags) > 0 {
		candidates, err = h.core.Store().SearchByTags(args.Tags, cache.TagModeAny, 0)
	} else {
		var res cache.ListResult
		res, err = h.core.Store().ListNodes(cache.ListFilter{})
		candidates = res.Nodes
	}
	if err != nil {
		return nil, apperr.Provider(err)
	}
	if len(candidates) == 0 {
		return &mcp.CallToolResultFor[RandomNodeToolResult]{Content: textContent("no candidates"), StructuredContent: RandomNodeToolResult{Warnings: h.warnings.Drain()}}, nil
	}

	pick := candidates[rand.Intn(len(candidates))]
	nr, err := toNodeResponse(h.core, pick, primaryContentLimit)
	if err != nil {
		return nil, apperr.Provider(err)
	}

	result := RandomNodeToolResult{Node: &nr, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[RandomNodeToolResult]{Content: textContent("random node " + pick.ID), StructuredContent: result}, nil
}

func (h *handlers) listNodes(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ListNodesParams]) (*mcp.CallToolResultFor[ListNodesToolResult], error) {
	args := params.Arguments
	limit := clamp(args.Limit, 1, 1000, 100)
	offset := args.Offset
	if offset < 0 {
		return nil, apperr.Invalid("offset", "must be >= 0")
	}

	res, err := h.core.Store().ListNodes(cache.ListFilter{Tag: args.Tag, PathPrefix: args.Path, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.Provider(err)
	}

	summaries := make([]NodeSummary, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		summaries = append(summaries, toNodeSummary(n, false))
	}

	result := ListNodesToolResult{Nodes: summaries, Total: res.Total, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[ListNodesToolResult]{Content: textContent("list_nodes"), StructuredContent: result}, nil
}

func (h *handlers) resolveNodes(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ResolveNodesParams]) (*mcp.CallToolResultFor[ResolveNodesToolResult], error) {
	args := params.Arguments
	if len(args.Names) == 0 {
		return nil, apperr.Invalid("names", "must contain at least one name")
	}

	strategy := store.StrategyFuzzy
	switch args.Strategy {
	case "", "fuzzy":
		strategy = store.StrategyFuzzy
	case "exact":
		strategy = store.StrategyExact
	case "semantic":
		strategy = store.StrategySemantic
		if !h.core.HasEmbedder() {
			return nil, apperr.Invalid("strategy", "semantic resolution requires a registered embedder")
		}
	default:
		return nil, apperr.Invalid("strategy", "must be exact, fuzzy, or semantic")
	}

	threshold := args.Threshold
	if threshold == 0 {
		threshold = 0.7
	}

	results, err := h.core.Store().ResolveNodes(ctx, args.Names, strategy, threshold, store.CandidateFilter{Tag: args.Tag, Path: args.Path}, h.core.Embedder())
	if err != nil {
		return nil, apperr.Provider(err)
	}

	out := make([]ResolveResultResponse, 0, len(results))
	for _, r := range results {
		rr := ResolveResultResponse{Query: r.Query, Score: r.Score}
		if r.Matched {
			id := r.MatchID
			rr.MatchID = &id
		}
		out = append(out, rr)
	}

	result := ResolveNodesToolResult{Results: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[ResolveNodesToolResult]{Content: textContent("resolve_nodes"), StructuredContent: result}, nil
}

func (h *handlers) nodesExist(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[NodesExistParams]) (*mcp.CallToolResultFor[NodesExistToolResult], error) {
	args := params.Arguments
	if len(args.IDs) == 0 {
		return nil, apperr.Invalid("ids", "must contain at least one id")
	}

	out := make(map[string]bool, len(args.IDs))
	for _, id := range args.IDs {
		norm := graphmodel.NormalizeID(id)
		_, ok, err := h.core.Store().GetNode(norm)
		if err != nil {
			return nil, apperr.Provider(err)
		}
		out[id] = ok
	}

	result := NodesExistToolResult{Exist: out, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[NodesExistToolResult]{Content: textContent("nodes_exist"), StructuredContent: result}, nil
}

func (h *handlers) createNode(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[CreateNodeParams]) (*mcp.CallToolResultFor[NodeToolResult], error) {
	args := params.Arguments
	if strings.TrimSpace(args.ID) == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	if !strings.HasSuffix(strings.ToLower(args.ID), ".md") {
		return nil, apperr.Invalid("id", "must end in .md")
	}

	n, err := h.core.CreateNode(ctx, store.CreateOptions{
		ID: args.ID, Content: args.Content, Title: args.Title, Tags: args.Tags, Properties: args.Props,
	})
	if err != nil {
		return nil, err
	}

	nr, hErr := toNodeResponse(h.core, n, primaryContentLimit)
	if hErr != nil {
		return nil, apperr.Provider(hErr)
	}
	result := NodeToolResult{NodeResponse: nr, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[NodeToolResult]{Content: textContent("created " + n.ID), StructuredContent: result}, nil
}

func (h *handlers) updateNode(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[UpdateNodeParams]) (*mcp.CallToolResultFor[NodeToolResult], error) {
	args := params.Arguments
	if strings.TrimSpace(args.ID) == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	if args.Title == nil && args.Content == nil && args.Tags == nil && args.Props == nil {
		return nil, apperr.Invalid("fields", "update_node requires at least one field besides id")
	}

	n, err := h.core.UpdateNode(ctx, args.ID, store.UpdateOptions{
		Title: args.Title, Content: args.Content, Tags: args.Tags, Properties: args.Props,
	})
	if err != nil {
		return nil, err
	}

	nr, hErr := toNodeResponse(h.core, n, primaryContentLimit)
	if hErr != nil {
		return nil, apperr.Provider(hErr)
	}
	result := NodeToolResult{NodeResponse: nr, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[NodeToolResult]{Content: textContent("updated " + n.ID), StructuredContent: result}, nil
}

func (h *handlers) deleteNode(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteNodeParams]) (*mcp.CallToolResultFor[DeleteToolResult], error) {
	args := params.Arguments
	if strings.TrimSpace(args.ID) == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}

	deleted, err := h.core.DeleteNode(args.ID)
	if err != nil {
		return nil, err
	}

	result := DeleteToolResult{Deleted: deleted, Warnings: h.warnings.Drain()}
	return &mcp.CallToolResultFor[DeleteToolResult]{Content: textContent("delete_node"), StructuredContent: result}, nil
}

func clamp(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func parseDirection(s string) (graphmirror.Direction, error) {
	switch s {
	case "", "both":
		return graphmirror.DirectionBoth, nil
	case "in":
		return graphmirror.DirectionIn, nil
	case "out":
		return graphmirror.DirectionOut, nil
	default:
		return "", apperr.Invalid("direction", "must be in, out, or both")
	}
}
