// Package graphmirror is the in-memory directed graph rebuilt from the
// Cache's node set after every reconcile batch (spec §4.5). Ghost vertices
// are first-class so backlink queries work for link targets that have no
// backing file yet.
package graphmirror

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/alexgetty/roux/internal/graphmodel"
)

// ErrNotReady is returned by every query operation until Build has run at
// least once (spec §4.5, "ready only after build").
var ErrNotReady = fmt.Errorf("graph mirror not ready: build has not run")

// Direction selects which edges Neighbors traverses.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// Metric selects the ranking column for Hubs.
type Metric string

const (
	MetricInDegree  Metric = "in_degree"
	MetricOutDegree Metric = "out_degree"
)

// Degree is a node's in/out edge count.
type Degree struct {
	In  int
	Out int
}

// vertex indexes are assigned densely so adjacency can be represented with
// roaring bitmaps instead of map[string]map[string]struct{}, the same way
// a production graph index avoids per-edge map allocation.
type Mirror struct {
	ready   bool
	version uint64

	ids    []string       // index -> id, sorted ascending for determinism
	index  map[string]int // id -> index
	ghost  map[string]bool
	out    []*roaring.Bitmap // out[i] = set of target indices
	in     []*roaring.Bitmap // in[i] = set of source indices
	degree map[string]Degree
}

// New constructs an unbuilt Mirror; every query returns ErrNotReady until
// Build runs.
func New() *Mirror {
	return &Mirror{}
}

// Ready reports whether Build has run at least once.
func (m *Mirror) Ready() bool { return m.ready }

// Build performs a total rebuild from a node list. Outgoing link targets
// that are not in the real node set become ghost vertices (spec §4.5,
// build).
func (m *Mirror) Build(nodes []graphmodel.Node) {
	real := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		real[n.ID] = struct{}{}
	}

	idSet := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		idSet[n.ID] = struct{}{}
		for _, target := range n.OutgoingLinks {
			idSet[target] = struct{}{}
		}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	ghost := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := real[id]; !ok {
			ghost[id] = true
		}
	}

	out := make([]*roaring.Bitmap, len(ids))
	in := make([]*roaring.Bitmap, len(ids))
	for i := range ids {
		out[i] = roaring.New()
		in[i] = roaring.New()
	}

	for _, n := range nodes {
		srcIdx := index[n.ID]
		for _, target := range n.OutgoingLinks {
			dstIdx := index[target]
			out[srcIdx].Add(uint32(dstIdx))
			in[dstIdx].Add(uint32(srcIdx))
		}
	}

	degree := make(map[string]Degree, len(ids))
	for i, id := range ids {
		degree[id] = Degree{In: int(in[i].GetCardinality()), Out: int(out[i].GetCardinality())}
	}

	m.ids = ids
	m.index = index
	m.ghost = ghost
	m.out = out
	m.in = in
	m.degree = degree
	m.ready = true
	m.version++
}

// Version returns the number of successful Build calls so far. Callers use
// it to detect whether a reconcile actually rebuilt the mirror, without
// comparing node bodies (spec supplement: build freshness counter).
func (m *Mirror) Version() uint64 { return m.version }

// IsGhost reports whether id is a ghost vertex. Returns false for unknown
// ids as well as real ones.
func (m *Mirror) IsGhost(id string) bool {
	return m.ghost[id]
}

// Has reports whether id is present in the mirror (real or ghost).
func (m *Mirror) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Neighbors returns ids adjacent to id in the given direction, capped at
// limit when positive (spec §4.5, neighbors).
func (m *Mirror) Neighbors(id string, direction Direction, limit int) ([]string, error) {
	if !m.ready {
		return nil, ErrNotReady
	}
	idx, ok := m.index[id]
	if !ok {
		return nil, nil
	}

	set := roaring.New()
	switch direction {
	case DirectionIn:
		set = m.in[idx]
	case DirectionOut:
		set = m.out[idx]
	default:
		set.Or(m.in[idx])
		set.Or(m.out[idx])
	}

	neighborIDs := make([]string, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		neighborIDs = append(neighborIDs, m.ids[it.Next()])
	}
	sort.Strings(neighborIDs)
	if limit > 0 && len(neighborIDs) > limit {
		neighborIDs = neighborIDs[:limit]
	}
	return neighborIDs, nil
}

// ShortestPath runs a breadth-first search over out-edges (spec §4.5,
// shortest_path).
func (m *Mirror) ShortestPath(source, target string) ([]string, error) {
	if !m.ready {
		return nil, ErrNotReady
	}
	srcIdx, ok := m.index[source]
	if !ok {
		return nil, nil
	}
	dstIdx, ok := m.index[target]
	if !ok {
		return nil, nil
	}
	if srcIdx == dstIdx {
		return []string{source}, nil
	}

	prev := make(map[int]int)
	visited := make(map[int]bool)
	queue := []int{srcIdx}
	visited[srcIdx] = true

	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]

		it := m.out[cur].Iterator()
		for it.HasNext() {
			next := int(it.Next())
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == dstIdx {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !visited[dstIdx] {
		return nil, nil
	}

	path := []int{dstIdx}
	for path[len(path)-1] != srcIdx {
		path = append(path, prev[path[len(path)-1]])
	}
	ids := make([]string, len(path))
	for i, idx := range path {
		ids[len(path)-1-i] = m.ids[idx]
	}
	return ids, nil
}

// HubEntry is one ranked result from Hubs.
type HubEntry struct {
	ID    string
	Score int
}

// Hubs ranks real (non-ghost) nodes by the given metric, score desc then
// id asc; non-positive limits return empty (spec §4.5, hubs).
func (m *Mirror) Hubs(metric Metric, limit int) ([]HubEntry, error) {
	if !m.ready {
		return nil, ErrNotReady
	}
	if limit <= 0 {
		return nil, nil
	}

	entries := make([]HubEntry, 0, len(m.ids))
	for _, id := range m.ids {
		if m.ghost[id] {
			continue
		}
		d := m.degree[id]
		score := d.In
		if metric == MetricOutDegree {
			score = d.Out
		}
		entries = append(entries, HubEntry{ID: id, Score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// ComputeCentrality returns in/out degree for every vertex currently in
// the mirror, including ghosts (callers filter to real ids as needed);
// self-loops count as +1 in and +1 out, which falls naturally out of the
// bitmap accounting in Build (spec §4.5, compute_centrality).
func (m *Mirror) ComputeCentrality() map[string]Degree {
	out := make(map[string]Degree, len(m.degree))
	for k, v := range m.degree {
		out[k] = v
	}
	return out
}

// RealIDs returns the sorted ids of non-ghost vertices.
func (m *Mirror) RealIDs() []string {
	out := make([]string, 0, len(m.ids))
	for _, id := range m.ids {
		if !m.ghost[id] {
			out = append(out, id)
		}
	}
	return out
}
