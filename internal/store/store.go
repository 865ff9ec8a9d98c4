// Package store composes the Parser, Link Resolver, Cache, and Graph
// Mirror into the public contract: CRUD, traversal, vector search, batch
// queries, and the single reconcile primitive shared by the watcher and
// write paths (spec §4.6).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexgetty/roux/internal/apperr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/graphmirror"
	"github.com/alexgetty/roux/internal/graphmodel"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/parser"
	"github.com/alexgetty/roux/internal/resolver"
)

// Store is the single owner of the Cache and Graph Mirror for one source
// root (spec §5, "Cache file: exclusive writer").
type Store struct {
	root     string
	cache    *cache.Cache
	mirror   *graphmirror.Mirror
	warnings *logger.Warnings

	mu sync.Mutex
}

// New constructs a Store rooted at sourceRoot, backed by the given Cache.
func New(sourceRoot string, c *cache.Cache, warnings *logger.Warnings) *Store {
	return &Store{
		root:     sourceRoot,
		cache:    c,
		mirror:   graphmirror.New(),
		warnings: warnings,
	}
}

// Root returns the absolute source root this Store watches.
func (s *Store) Root() string { return s.root }

// Cache exposes the underlying Cache for passthrough helpers that don't
// belong on Store's own surface (vector search and embedding storage).
func (s *Store) Cache() *cache.Cache { return s.cache }

// Mirror exposes the underlying Graph Mirror.
func (s *Store) Mirror() *graphmirror.Mirror { return s.mirror }

// ResolvedPath joins id onto the source root after verifying the result
// does not escape it (spec §4.6, create_node: "Path must not escape the
// source root").
func (s *Store) ResolvedPath(id string) (string, error) {
	clean := filepath.Join(s.root, filepath.FromSlash(id))
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("id %q escapes source root", id)
	}
	return clean, nil
}

// CreateOptions carries create_node's fields (spec §6.2).
type CreateOptions struct {
	ID         string
	Content    string
	Title      string
	Tags       []string
	Properties map[string]interface{}
}

// CreateNode writes a new file with YAML frontmatter then content, and
// reconciles it synchronously before returning (spec §4.6, create_node).
func (s *Store) CreateNode(opts CreateOptions) (graphmodel.Node, error) {
	id := graphmodel.NormalizeID(opts.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.cache.GetNode(id); err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	} else if ok {
		return graphmodel.Node{}, &apperr.MCPError{Code: apperr.NodeExists, Message: fmt.Sprintf("node already exists: %s", id)}
	}

	path, err := s.ResolvedPath(id)
	if err != nil {
		return graphmodel.Node{}, apperr.Invalid("id", err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return graphmodel.Node{}, apperr.Provider(fmt.Errorf("create parent directories: %w", err))
	}

	title := opts.Title
	if title == "" {
		title = graphmodel.TitleFromID(opts.ID)
	}

	body, err := renderFile(title, opts.Tags, opts.Properties, opts.Content)
	if err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return graphmodel.Node{}, apperr.Provider(fmt.Errorf("write %s: %w", path, err))
	}

	if _, err := s.reconcileLocked(map[string]struct{}{id: {}}); err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}

	n, ok, err := s.cache.GetNode(id)
	if err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}
	if !ok {
		return graphmodel.Node{}, apperr.Provider(fmt.Errorf("node %s missing immediately after create", id))
	}
	return n, nil
}

// UpdateOptions carries update_node's fields (spec §6.2).
type UpdateOptions struct {
	Title      *string
	Content    *string
	Tags       *[]string
	Properties *map[string]interface{}
}

// UpdateNode rewrites the file atomically (write-temp-then-rename) and
// reconciles. A title change implying a rename is rejected with
// LinkIntegrity when the node has incoming edges (spec §4.6, update_node).
func (s *Store) UpdateNode(id string, opts UpdateOptions) (graphmodel.Node, error) {
	id = graphmodel.NormalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.cache.GetNode(id)
	if err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}
	if !ok {
		return graphmodel.Node{}, &apperr.MCPError{Code: apperr.NodeNotFound, Message: fmt.Sprintf("node not found: %s", id)}
	}

	if opts.Title != nil && *opts.Title != existing.Title {
		if s.mirror.Ready() {
			incoming, _ := s.mirror.Neighbors(id, graphmirror.DirectionIn, 0)
			if len(incoming) > 0 {
				return graphmodel.Node{}, &apperr.MCPError{Code: apperr.LinkIntegrity, Message: "title change would rename a node with incoming links"}
			}
		}
	}

	title := existing.Title
	if opts.Title != nil {
		title = *opts.Title
	}
	content := existing.Content
	if opts.Content != nil {
		content = *opts.Content
	}
	tags := existing.Tags
	if opts.Tags != nil {
		tags = *opts.Tags
	}
	properties := existing.Properties
	if opts.Properties != nil {
		properties = *opts.Properties
	}

	path, err := s.ResolvedPath(id)
	if err != nil {
		return graphmodel.Node{}, apperr.Invalid("id", err.Error())
	}
	path = filepath.Join(s.root, filepath.FromSlash(realCaseRelPath(s.root, path)))

	body, err := renderFile(title, tags, properties, content)
	if err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}
	if err := writeAtomic(path, body); err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}

	if _, err := s.reconcileLocked(map[string]struct{}{id: {}}); err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}

	n, ok, err := s.cache.GetNode(id)
	if err != nil {
		return graphmodel.Node{}, apperr.Provider(err)
	}
	if !ok {
		return graphmodel.Node{}, apperr.Provider(fmt.Errorf("node %s missing immediately after update", id))
	}
	return n, nil
}

// DeleteNode removes the backing file if present and reconciles.
func (s *Store) DeleteNode(id string) (bool, error) {
	id = graphmodel.NormalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.ResolvedPath(id)
	if err != nil {
		return false, apperr.Invalid("id", err.Error())
	}
	path = filepath.Join(s.root, filepath.FromSlash(realCaseRelPath(s.root, path)))

	_, statErr := os.Stat(path)
	existed := statErr == nil
	if existed {
		if err := os.Remove(path); err != nil {
			return false, apperr.Provider(fmt.Errorf("delete %s: %w", path, err))
		}
	}

	if _, err := s.reconcileLocked(map[string]struct{}{id: {}}); err != nil {
		return existed, apperr.Provider(err)
	}
	return existed, nil
}

// ReconcileSummary reports what one reconcile pass did, grounded on
// mnemosyne's GraphStats: cheap enough to assert against in tests and to
// print from `roux reindex` without diffing node bodies.
type ReconcileSummary struct {
	NodesUpserted int
	NodesDeleted  int
	GhostsCreated int
	Warnings      []string
}

// ReconcileOne runs the reconcile primitive over a single id. The warning
// buffer is left untouched — it drains into whichever MCP response asks
// for it next (spec §7), not into this summary.
func (s *Store) ReconcileOne(id string) (ReconcileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(map[string]struct{}{graphmodel.NormalizeID(id): {}})
}

// Reconcile runs the reconcile primitive over a batch of ids (spec §4.6),
// the entry point the watcher calls on each debounced batch. The warning
// buffer is left untouched for the same reason as ReconcileOne.
func (s *Store) Reconcile(ids map[string]struct{}) (ReconcileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(ids)
}

// ReconcileAll walks the source root for every known node id (whether
// currently backed by a file or still only in the Cache) and reconciles
// the union, used by `roux reindex` to force a full rebuild from a cold
// cache.
func (s *Store) ReconcileAll() (ReconcileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.knownRealIDs()
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("list known ids: %w", err)
	}

	walkErr := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".md" {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		ids[graphmodel.NormalizeID(rel)] = struct{}{}
		return nil
	})
	if walkErr != nil {
		return ReconcileSummary{}, fmt.Errorf("walk source root: %w", walkErr)
	}

	summary, err := s.reconcileLocked(ids)
	summary.Warnings = s.warnings.Drain()
	return summary, err
}

// reconcileLocked is the reconcile primitive. Caller must hold s.mu.
func (s *Store) reconcileLocked(ids map[string]struct{}) (ReconcileSummary, error) {
	changed := make([]string, 0, len(ids))
	deleted := make([]string, 0)

	err := s.cache.Tx(func(tx *sql.Tx) error {
		existingIDs, err := s.knownRealIDs()
		if err != nil {
			return err
		}
		for id := range ids {
			existingIDs[id] = struct{}{}
		}

		for id := range ids {
			path, err := s.ResolvedPath(id)
			if err != nil {
				s.warnings.Add("skipping invalid id %s: %v", id, err)
				continue
			}

			realRel := realCaseRelPath(s.root, path)
			path = filepath.Join(s.root, filepath.FromSlash(realRel))
			raw, statErr := os.ReadFile(path)
			if statErr != nil {
				if err := s.cache.DeleteNode(tx, id); err != nil {
					return err
				}
				delete(existingIDs, id)
				changed = append(changed, id)
				deleted = append(deleted, id)
				continue
			}

			parsed, parseErr := parser.Parse(raw, realRel)
			if parseErr != nil {
				s.warnings.Add("parse error for %s: %v, skipping", id, parseErr)
				continue
			}
			if parsed.Warning != "" {
				s.warnings.Add("parse warning for %s: %s", id, parsed.Warning)
			}

			resolved := make([]string, 0, len(parsed.RawLinks))
			for _, link := range parsed.RawLinks {
				target := resolver.Resolve(link.Target, existingIDs)
				resolved = append(resolved, target)
			}

			info, err := os.Stat(path)
			if err != nil {
				s.warnings.Add("stat failed for %s: %v", id, err)
				continue
			}

			node := graphmodel.Node{
				ID:            id,
				Title:         parsed.Title,
				Content:       parsed.Content,
				Tags:          graphmodel.NormalizeTags(parsed.Tags),
				OutgoingLinks: graphmodel.DedupeLinks(resolved),
				Properties:    graphmodel.CleanProperties(parsed.Properties),
				SourceRef: graphmodel.SourceRef{
					Kind:           graphmodel.SourceKindFile,
					Path:           id,
					LastModifiedMS: info.ModTime().UnixMilli(),
				},
			}

			if err := s.cache.UpsertNode(tx, node); err != nil {
				return err
			}
			changed = append(changed, id)
		}
		return nil
	})
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("reconcile batch: %w", err)
	}

	allNodes, err := s.cache.AllNodes()
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("load nodes for mirror rebuild: %w", err)
	}
	s.mirror.Build(allNodes)

	ghostsCreated := 0
	for _, n := range allNodes {
		for _, target := range n.OutgoingLinks {
			if s.mirror.IsGhost(target) {
				ghostsCreated++
			}
		}
	}

	degrees := s.mirror.ComputeCentrality()
	now := time.Now().UnixMilli()
	keepIDs := make([]string, 0, len(allNodes))
	err = s.cache.Tx(func(tx *sql.Tx) error {
		for _, n := range allNodes {
			keepIDs = append(keepIDs, n.ID)
			d := degrees[n.ID]
			if err := s.cache.StoreCentrality(tx, cache.Centrality{
				NodeID: n.ID, InDegree: d.In, OutDegree: d.Out, ComputedAtMS: now,
			}); err != nil {
				return err
			}
		}
		return s.cache.ReplaceCentrality(tx, keepIDs)
	})
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("persist centrality: %w", err)
	}

	for _, id := range deleted {
		if err := s.cache.DeleteEmbedding(id); err != nil {
			return ReconcileSummary{}, fmt.Errorf("delete embedding for %s: %w", id, err)
		}
	}

	return ReconcileSummary{
		NodesUpserted: len(changed) - len(deleted),
		NodesDeleted:  len(deleted),
		GhostsCreated: ghostsCreated,
	}, nil
}

// realCaseRelPath recovers the on-disk case of path relative to root. ids
// are case-normalized before reaching reconcileLocked (spec I1/I7), but the
// parser's filename-stem title fallback must stay case-preserving, so each
// path segment is resolved against the real directory entries.
func realCaseRelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	dir := root
	for i, part := range parts {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return rel
		}
		for _, e := range entries {
			if strings.EqualFold(e.Name(), part) {
				parts[i] = e.Name()
				break
			}
		}
		dir = filepath.Join(dir, parts[i])
	}
	return strings.Join(parts, "/")
}

// knownRealIDs snapshots every real id currently in the Cache, used as the
// resolver's disambiguation universe.
func (s *Store) knownRealIDs() (map[string]struct{}, error) {
	nodes, err := s.cache.AllNodes()
	if err != nil {
		return nil, fmt.Errorf("load known ids: %w", err)
	}
	out := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		out[n.ID] = struct{}{}
	}
	return out, nil
}

// GetNode returns a node by id.
func (s *Store) GetNode(id string) (graphmodel.Node, bool, error) {
	return s.cache.GetNode(graphmodel.NormalizeID(id))
}

// GetNodes returns nodes for the given ids in request order.
func (s *Store) GetNodes(ids []string) ([]graphmodel.Node, error) {
	normalized := make([]string, len(ids))
	for i, id := range ids {
		normalized[i] = graphmodel.NormalizeID(id)
	}
	return s.cache.GetNodes(normalized)
}

// ListNodes passes through to the Cache.
func (s *Store) ListNodes(f cache.ListFilter) (cache.ListResult, error) {
	return s.cache.ListNodes(f)
}

// SearchByTags passes through to the Cache.
func (s *Store) SearchByTags(tags []string, mode cache.TagMode, limit int) ([]graphmodel.Node, error) {
	return s.cache.SearchByTags(tags, mode, limit)
}

// Neighbors passes through to the Graph Mirror, dropping ghost ids before
// hydrating the rest from the Cache (ghosts are never returned as Node
// responses, spec §9).
func (s *Store) Neighbors(id string, direction graphmirror.Direction, limit int) ([]graphmodel.Node, error) {
	ids, err := s.mirror.Neighbors(graphmodel.NormalizeID(id), direction, 0)
	if err != nil {
		return nil, err
	}
	real := make([]string, 0, len(ids))
	for _, nid := range ids {
		if !s.mirror.IsGhost(nid) {
			real = append(real, nid)
		}
	}
	if limit > 0 && len(real) > limit {
		real = real[:limit]
	}
	return s.cache.GetNodes(real)
}

// NeighborCount returns the true total neighbor count in a direction,
// before the response-shaping cap (spec §6.3, incoming_count/outgoing_count).
func (s *Store) NeighborCount(id string, direction graphmirror.Direction) (int, error) {
	ids, err := s.mirror.Neighbors(graphmodel.NormalizeID(id), direction, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, nid := range ids {
		if !s.mirror.IsGhost(nid) {
			count++
		}
	}
	return count, nil
}

// ShortestPath passes through to the Graph Mirror, but rejects ghost
// endpoints (spec §8 scenario 4: find_path to a non-real target is null).
func (s *Store) ShortestPath(source, target string) ([]string, error) {
	source, target = graphmodel.NormalizeID(source), graphmodel.NormalizeID(target)
	if s.mirror.IsGhost(source) || s.mirror.IsGhost(target) {
		return nil, nil
	}
	return s.mirror.ShortestPath(source, target)
}

// Hubs passes through to the Graph Mirror.
func (s *Store) Hubs(metric graphmirror.Metric, limit int) ([]graphmirror.HubEntry, error) {
	return s.mirror.Hubs(metric, limit)
}

// ResolveTitles returns a display title for each id, used to hydrate
// neighbor links (spec §4.6, resolve_titles).
func (s *Store) ResolveTitles(ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		id = graphmodel.NormalizeID(id)
		if n, ok, err := s.cache.GetNode(id); err == nil && ok {
			out[id] = n.Title
		} else if err != nil {
			return nil, err
		} else {
			out[id] = graphmodel.TitleFromID(id)
		}
	}
	return out, nil
}

// renderFile marshals title/tags/properties as YAML frontmatter followed
// by content.
func renderFile(title string, tags []string, properties map[string]interface{}, content string) ([]byte, error) {
	front := map[string]interface{}{}
	for k, v := range properties {
		front[k] = v
	}
	front["title"] = title
	if len(tags) > 0 {
		front["tags"] = tags
	}

	yamlBytes, err := yaml.Marshal(front)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	buf.WriteString(content)
	return []byte(buf.String()), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file for %s: %w", path, err)
	}
	return nil
}
