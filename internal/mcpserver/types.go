// Package mcpserver is the MCP-facing contract layer: the tool catalog,
// capability gating, input validation, and response shaping described in
// spec §4.9 / §6.2-§6.4. Transport framing is handled entirely by
// github.com/modelcontextprotocol/go-sdk/mcp; this package only wires
// tools onto a *mcp.Server and shapes Core results into response structs.
package mcpserver

import "unicode/utf8"

const (
	primaryContentLimit   = 10000
	listRowContentLimit   = 500
	nestedRowContentLimit = 200
	maxNeighborArrayLen   = 20
)

// LinkInfo hydrates a resolved outgoing link with its display title
// (spec §6.3).
type LinkInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NodeResponse is the canonical node shape returned by most tools (spec
// §6.3).
type NodeResponse struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Content string     `json:"content"`
	Tags    []string   `json:"tags"`
	Links   []LinkInfo `json:"links"`
}

// GetNodeResult is get_node's output. With depth=0 only the embedded
// NodeResponse fields are meaningful; with depth=1 the neighbor fields are
// populated too (spec §6.2-§6.3 collapse NodeResponse and
// NodeWithContextResponse into one wire shape keyed off the request's
// depth rather than a tagged union, since Go has no sum types on the MCP
// JSON boundary).
type GetNodeResult struct {
	NodeResponse
	IncomingNeighbors []NodeResponse `json:"incoming_neighbors,omitempty"`
	OutgoingNeighbors []NodeResponse `json:"outgoing_neighbors,omitempty"`
	IncomingCount     int            `json:"incoming_count,omitempty"`
	OutgoingCount     int            `json:"outgoing_count,omitempty"`
	Warnings          []string       `json:"_warnings,omitempty"`
}

// SearchResultResponse adds a relevance score to NodeResponse (spec §6.3).
type SearchResultResponse struct {
	NodeResponse
	Score float64 `json:"score"`
}

// SearchToolResult is search's output envelope.
type SearchToolResult struct {
	Results  []SearchResultResponse `json:"results"`
	Warnings []string               `json:"_warnings,omitempty"`
}

// NeighborsToolResult is get_neighbors' output envelope.
type NeighborsToolResult struct {
	Neighbors []NodeResponse `json:"neighbors"`
	Warnings  []string       `json:"_warnings,omitempty"`
}

// PathResult is find_path's output.
type PathResult struct {
	Path     []string `json:"path,omitempty"`
	Length   int      `json:"length,omitempty"`
	Found    bool     `json:"found"`
	Warnings []string `json:"_warnings,omitempty"`
}

// HubResponse is one ranked hub entry (spec §6.3).
type HubResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

// HubsToolResult is get_hubs' output envelope.
type HubsToolResult struct {
	Hubs     []HubResponse `json:"hubs"`
	Warnings []string      `json:"_warnings,omitempty"`
}

// TagSearchToolResult is search_by_tags' output envelope.
type TagSearchToolResult struct {
	Nodes    []NodeResponse `json:"nodes"`
	Warnings []string       `json:"_warnings,omitempty"`
}

// RandomNodeToolResult is random_node's output envelope.
type RandomNodeToolResult struct {
	Node     *NodeResponse `json:"node"`
	Warnings []string      `json:"_warnings,omitempty"`
}

// NodeSummary is the truncated row shape used by list_nodes (spec §6.2).
type NodeSummary struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Content string   `json:"content,omitempty"`
}

// ListNodesToolResult is list_nodes' output envelope.
type ListNodesToolResult struct {
	Nodes    []NodeSummary `json:"nodes"`
	Total    int           `json:"total"`
	Warnings []string      `json:"_warnings,omitempty"`
}

// ResolveResultResponse is one resolve_nodes query result (spec §4.6).
type ResolveResultResponse struct {
	Query   string  `json:"query"`
	MatchID *string `json:"match_id,omitempty"`
	Score   float64 `json:"score"`
}

// ResolveNodesToolResult is resolve_nodes' output envelope.
type ResolveNodesToolResult struct {
	Results  []ResolveResultResponse `json:"results"`
	Warnings []string                `json:"_warnings,omitempty"`
}

// NodesExistToolResult is nodes_exist's output.
type NodesExistToolResult struct {
	Exist    map[string]bool `json:"exist"`
	Warnings []string        `json:"_warnings,omitempty"`
}

// NodeToolResult wraps create_node/update_node's output.
type NodeToolResult struct {
	NodeResponse
	Warnings []string `json:"_warnings,omitempty"`
}

// DeleteToolResult is delete_node's output.
type DeleteToolResult struct {
	Deleted  bool     `json:"deleted"`
	Warnings []string `json:"_warnings,omitempty"`
}

// truncate caps s at max characters (runes), not bytes, per spec §4.9's
// char-based limits — a byte slice would split multibyte UTF-8 sequences.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "... [truncated]"
}
