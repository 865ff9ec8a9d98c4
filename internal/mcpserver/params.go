package mcpserver

// SearchParams is search's input (spec §6.2).
type SearchParams struct {
	Query          string `json:"query" mcp:"natural language search query"`
	Limit          int    `json:"limit,omitempty" mcp:"max results, 1-50, default 10"`
	IncludeContent bool   `json:"include_content,omitempty" mcp:"include full content in results, default false"`
}

// GetNodeParams is get_node's input (spec §6.2).
type GetNodeParams struct {
	ID    string `json:"id" mcp:"node id"`
	Depth int    `json:"depth,omitempty" mcp:"0 for the node alone, 1 to include neighbors"`
}

// GetNeighborsParams is get_neighbors' input (spec §6.2).
type GetNeighborsParams struct {
	ID             string `json:"id" mcp:"node id"`
	Direction      string `json:"direction,omitempty" mcp:"in, out, or both; default both"`
	Limit          int    `json:"limit,omitempty" mcp:"max neighbors, 1-50, default 20"`
	IncludeContent bool   `json:"include_content,omitempty" mcp:"include full content in results, default false"`
}

// FindPathParams is find_path's input (spec §6.2).
type FindPathParams struct {
	Source string `json:"source" mcp:"source node id"`
	Target string `json:"target" mcp:"target node id"`
}

// GetHubsParams is get_hubs' input (spec §6.2).
type GetHubsParams struct {
	Metric string `json:"metric,omitempty" mcp:"in_degree or out_degree; default in_degree"`
	Limit  int    `json:"limit,omitempty" mcp:"max results, 1-50, default 10"`
}

// SearchByTagsParams is search_by_tags' input (spec §6.2).
type SearchByTagsParams struct {
	Tags  []string `json:"tags" mcp:"tags to match, at least one"`
	Mode  string   `json:"mode,omitempty" mcp:"any or all; default any"`
	Limit int      `json:"limit,omitempty" mcp:"max results, 1-100, default 20"`
}

// RandomNodeParams is random_node's input (spec §6.2).
type RandomNodeParams struct {
	Tags []string `json:"tags,omitempty" mcp:"restrict to nodes carrying any of these tags"`
}

// ListNodesParams is list_nodes' input (spec §6.2).
type ListNodesParams struct {
	Tag    string `json:"tag,omitempty" mcp:"filter by tag"`
	Path   string `json:"path,omitempty" mcp:"filter by path prefix"`
	Limit  int    `json:"limit,omitempty" mcp:"page size, 1-1000, default 100"`
	Offset int    `json:"offset,omitempty" mcp:"page offset, default 0"`
}

// ResolveNodesParams is resolve_nodes' input (spec §6.2).
type ResolveNodesParams struct {
	Names     []string `json:"names" mcp:"display-name or title queries to resolve"`
	Strategy  string   `json:"strategy,omitempty" mcp:"exact, fuzzy, or semantic; default fuzzy"`
	Threshold float64  `json:"threshold,omitempty" mcp:"match acceptance threshold 0-1, default 0.7"`
	Tag       string   `json:"tag,omitempty" mcp:"restrict candidates to this tag"`
	Path      string   `json:"path,omitempty" mcp:"restrict candidates to this path prefix"`
}

// NodesExistParams is nodes_exist's input (spec §6.2).
type NodesExistParams struct {
	IDs []string `json:"ids" mcp:"node ids to check"`
}

// CreateNodeParams is create_node's input (spec §6.2).
type CreateNodeParams struct {
	ID      string                 `json:"id" mcp:"node id, must end in .md"`
	Content string                 `json:"content" mcp:"markdown body"`
	Title   string                 `json:"title,omitempty" mcp:"display title; defaults to the id stem"`
	Tags    []string               `json:"tags,omitempty" mcp:"tags to attach"`
	Props   map[string]interface{} `json:"properties,omitempty" mcp:"extra frontmatter properties"`
}

// UpdateNodeParams is update_node's input (spec §6.2).
type UpdateNodeParams struct {
	ID      string                  `json:"id" mcp:"node id to update"`
	Title   *string                 `json:"title,omitempty" mcp:"new display title"`
	Content *string                 `json:"content,omitempty" mcp:"new markdown body"`
	Tags    *[]string               `json:"tags,omitempty" mcp:"new tag set"`
	Props   *map[string]interface{} `json:"properties,omitempty" mcp:"new extra frontmatter properties"`
}

// DeleteNodeParams is delete_node's input (spec §6.2).
type DeleteNodeParams struct {
	ID string `json:"id" mcp:"node id to delete"`
}
