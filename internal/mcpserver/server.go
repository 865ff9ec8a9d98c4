package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexgetty/roux/internal/core"
	"github.com/alexgetty/roux/internal/logger"
)

// New builds an *mcp.Server with every tool the current capability set
// supports wired in (spec §4.9, tool catalog + capability gating). search
// is omitted entirely — not merely erroring — when c has no embedder
// registered.
func New(name, version string, c *core.Core, warnings *logger.Warnings) *mcp.Server {
	impl := &mcp.Implementation{Name: name, Version: version}
	server := mcp.NewServer(impl, &mcp.ServerOptions{})

	h := &handlers{core: c, warnings: warnings}

	if c.HasEmbedder() {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "search",
			Description: "Semantic search over the knowledge graph; ranks nodes by embedding similarity to the query.",
		}, h.search)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_node",
		Description: "Fetch a single node by id, optionally with its immediate neighbors (depth=1).",
	}, h.getNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_neighbors",
		Description: "List a node's neighbors in the link graph, in, out, or both directions.",
	}, h.getNeighbors)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_path",
		Description: "Find the shortest out-edge path between two nodes.",
	}, h.findPath)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_hubs",
		Description: "Rank nodes by in-degree or out-degree centrality.",
	}, h.getHubs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_by_tags",
		Description: "Find nodes matching one or more tags, combined with any/all set semantics.",
	}, h.searchByTags)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "random_node",
		Description: "Return a random node, optionally restricted to a set of tags.",
	}, h.randomNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_nodes",
		Description: "Paginate all nodes, optionally filtered by tag or path prefix.",
	}, h.listNodes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_nodes",
		Description: "Resolve free-text names to node ids via exact, fuzzy, or semantic title matching.",
	}, h.resolveNodes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nodes_exist",
		Description: "Check which of a set of node ids currently back a real node.",
	}, h.nodesExist)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_node",
		Description: "Create a new markdown node with optional title, tags, and frontmatter properties.",
	}, h.createNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_node",
		Description: "Update an existing node's title, content, or tags.",
	}, h.updateNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_node",
		Description: "Delete a node's backing file, if present.",
	}, h.deleteNode)

	return server
}
