// Package core orchestrates the Store and Embedder, exposing the
// operations tool handlers consume: semantic search, create/update with
// embedding side-effects, and capability gating (spec §4.8).
package core

import (
	"context"
	"fmt"

	"github.com/alexgetty/roux/internal/apperr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/graphmodel"
	"github.com/alexgetty/roux/internal/store"
)

// Core composes a Store with an optional Embedder. A nil Embedder is a
// valid state: search-dependent capabilities are simply unavailable, not
// an error (spec §4.8, capability registry).
type Core struct {
	store *store.Store
	emb   embedder.Embedder
}

// New constructs a Core. emb may be nil.
func New(s *store.Store, emb embedder.Embedder) *Core {
	return &Core{store: s, emb: emb}
}

// Store exposes the underlying Store for passthrough operations that
// don't need Core's orchestration (CRUD, traversal, tag search).
func (c *Core) Store() *store.Store { return c.store }

// HasEmbedder reports whether semantic capabilities are available (spec
// §4.8, capability registry; spec §4.9, capability gating).
func (c *Core) HasEmbedder() bool { return c.emb != nil }

// Embedder exposes the registered Embedder, or nil, for callers that need
// to pass it through to Store operations (e.g. semantic resolve_nodes).
func (c *Core) Embedder() embedder.Embedder { return c.emb }

// SearchResult is one ranked semantic search hit.
type SearchResult struct {
	Node  graphmodel.Node
	Score float64
}

// Search embeds the query, asks the Cache's vector index for nearest
// neighbors, and hydrates full nodes (spec §4.8, search).
func (c *Core) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c.emb == nil {
		return nil, fmt.Errorf("search capability unavailable: no embedder registered")
	}

	vec, err := c.emb.Embed(ctx, query)
	if err != nil {
		return nil, apperr.Provider(fmt.Errorf("embed query: %w", err))
	}

	matches, err := c.store.Cache().SearchByVector(vec, limit)
	if err != nil {
		return nil, apperr.Provider(fmt.Errorf("vector search: %w", err))
	}

	ids := make([]string, len(matches))
	distanceByID := make(map[string]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		distanceByID[m.ID] = m.Distance
	}

	nodes, err := c.store.GetNodes(ids)
	if err != nil {
		return nil, apperr.Provider(err)
	}

	results := make([]SearchResult, 0, len(nodes))
	for _, n := range nodes {
		score := 1 - distanceByID[n.ID]
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, SearchResult{Node: n, Score: score})
	}
	return results, nil
}

// CreateNode passes through to the Store, then embeds the new content
// when an embedder is registered (spec §4.8).
func (c *Core) CreateNode(ctx context.Context, opts store.CreateOptions) (graphmodel.Node, error) {
	n, err := c.store.CreateNode(opts)
	if err != nil {
		return graphmodel.Node{}, err
	}
	if c.emb != nil {
		if err := c.embedAndStore(ctx, n); err != nil {
			return n, apperr.Provider(err)
		}
	}
	return n, nil
}

// UpdateNode passes through to the Store, re-embedding only when the
// update touched content (spec §4.8, "content-touching update").
func (c *Core) UpdateNode(ctx context.Context, id string, opts store.UpdateOptions) (graphmodel.Node, error) {
	n, err := c.store.UpdateNode(id, opts)
	if err != nil {
		return graphmodel.Node{}, err
	}
	if c.emb != nil && opts.Content != nil {
		if err := c.embedAndStore(ctx, n); err != nil {
			return n, apperr.Provider(err)
		}
	}
	return n, nil
}

func (c *Core) embedAndStore(ctx context.Context, n graphmodel.Node) error {
	vec, err := c.emb.Embed(ctx, n.Content)
	if err != nil {
		return fmt.Errorf("embed node %s: %w", n.ID, err)
	}
	if err := c.store.Cache().StoreEmbedding(n.ID, vec, c.emb.Model()); err != nil {
		return fmt.Errorf("store embedding for %s: %w", n.ID, err)
	}
	return nil
}

// DeleteNode passes through to the Store.
func (c *Core) DeleteNode(id string) (bool, error) {
	return c.store.DeleteNode(id)
}

// ListFilter re-exports cache.ListFilter so callers don't need to import
// the cache package directly.
type ListFilter = cache.ListFilter

// TagMode re-exports cache.TagMode.
type TagMode = cache.TagMode
