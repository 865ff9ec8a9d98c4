package mcpserver

import (
	"github.com/alexgetty/roux/internal/core"
	"github.com/alexgetty/roux/internal/graphmodel"
)

// toNodeResponse shapes a Node into the wire response, hydrating outgoing
// links with display titles and truncating content to contentLimit (spec
// §6.3, §4.9).
func toNodeResponse(c *core.Core, n graphmodel.Node, contentLimit int) (NodeResponse, error) {
	titles, err := c.Store().ResolveTitles(n.OutgoingLinks)
	if err != nil {
		return NodeResponse{}, err
	}
	links := make([]LinkInfo, 0, len(n.OutgoingLinks))
	for _, id := range n.OutgoingLinks {
		links = append(links, LinkInfo{ID: id, Title: titles[id]})
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NodeResponse{
		ID:      n.ID,
		Title:   n.Title,
		Content: truncate(n.Content, contentLimit),
		Tags:    tags,
		Links:   links,
	}, nil
}

func toNodeResponses(c *core.Core, nodes []graphmodel.Node, contentLimit int) ([]NodeResponse, error) {
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		r, err := toNodeResponse(c, n, contentLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func toNodeSummary(n graphmodel.Node, includeContent bool) NodeSummary {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	s := NodeSummary{ID: n.ID, Title: n.Title, Tags: tags}
	if includeContent {
		s.Content = truncate(n.Content, listRowContentLimit)
	}
	return s
}
