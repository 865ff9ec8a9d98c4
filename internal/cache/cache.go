// Package cache is the relational side-car store: nodes, tag index,
// embeddings, and centrality, backed by a single-file pure-Go sqlite
// database under source_root/.roux (spec §4.3).
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/alexgetty/roux/internal/graphmodel"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	tags_json TEXT NOT NULL,
	outgoing_links_json TEXT NOT NULL,
	properties_json TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	source_path TEXT NOT NULL,
	source_modified_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags_index (
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	UNIQUE(node_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_tags_index_tag ON tags_index(tag);

CREATE TABLE IF NOT EXISTS embeddings (
	node_id TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
	model TEXT NOT NULL,
	vector BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS centrality (
	node_id TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
	in_degree INTEGER NOT NULL,
	out_degree INTEGER NOT NULL,
	pagerank REAL NOT NULL DEFAULT 0,
	computed_at_ms INTEGER NOT NULL
);
`

// Cache is the sqlite-backed store of record (spec §4.3). The embedded
// Vector Index (spec §4.4) shares the same underlying connection and
// writer.
type Cache struct {
	db *sql.DB

	// mixedModelWarned is set by StoreEmbedding when a new id is stored
	// under a model name that differs from an already stored vector's
	// model; MixedModelWarned reads and clears it.
	mixedModelWarned bool
}

// Open creates or attaches to the sqlite file at dir/cache.db, creating the
// schema if absent.
func Open(dir string) (*Cache, error) {
	path := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer assumption, spec §5

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Tx runs fn inside a single sqlite transaction, committing on success and
// rolling back on any error — used by the reconcile batch (spec §4.6).
func (c *Cache) Tx(fn func(*sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpsertNode replaces the node row and rebuilds its tags_index rows in a
// single transaction (spec §4.3, upsert_node).
func (c *Cache) UpsertNode(tx *sql.Tx, n graphmodel.Node) error {
	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	linksJSON, err := json.Marshal(n.OutgoingLinks)
	if err != nil {
		return fmt.Errorf("marshal outgoing links: %w", err)
	}
	props := n.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (id, title, content, tags_json, outgoing_links_json, properties_json, source_kind, source_path, source_modified_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, tags_json=excluded.tags_json,
			outgoing_links_json=excluded.outgoing_links_json, properties_json=excluded.properties_json,
			source_kind=excluded.source_kind, source_path=excluded.source_path, source_modified_ms=excluded.source_modified_ms
	`, n.ID, n.Title, n.Content, string(tagsJSON), string(linksJSON), string(propsJSON),
		string(n.SourceRef.Kind), n.SourceRef.Path, n.SourceRef.LastModifiedMS)
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM tags_index WHERE node_id = ?`, n.ID); err != nil {
		return fmt.Errorf("clear tags_index for %s: %w", n.ID, err)
	}
	for _, tag := range n.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags_index (node_id, tag) VALUES (?, ?)`, n.ID, tag); err != nil {
			return fmt.Errorf("insert tag %s for %s: %w", tag, n.ID, err)
		}
	}
	return nil
}

// DeleteNode removes a node row, cascading to tags_index, embeddings, and
// centrality. A no-op if absent (spec §4.3).
func (c *Cache) DeleteNode(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

// GetNode returns a node by id, or ok=false if absent.
func (c *Cache) GetNode(id string) (graphmodel.Node, bool, error) {
	row := c.db.QueryRow(`SELECT id, title, content, tags_json, outgoing_links_json, properties_json, source_kind, source_path, source_modified_ms FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return graphmodel.Node{}, false, nil
	}
	if err != nil {
		return graphmodel.Node{}, false, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, true, nil
}

// GetNodes returns nodes for the given ids, in request order; absent ids
// are collapsed (spec §4.3, get_nodes).
func (c *Cache) GetNodes(ids []string) ([]graphmodel.Node, error) {
	out := make([]graphmodel.Node, 0, len(ids))
	for _, id := range ids {
		n, ok, err := c.GetNode(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListFilter selects nodes for ListNodes (spec §4.3, list_nodes).
type ListFilter struct {
	Tag        string
	PathPrefix string
	Limit      int
	Offset     int
}

// ListResult is the paginated output of ListNodes.
type ListResult struct {
	Nodes []graphmodel.Node
	Total int
}

// ListNodes returns a page of nodes matching the given filters, plus the
// pre-pagination total count (spec §4.3, P3).
func (c *Cache) ListNodes(f ListFilter) (ListResult, error) {
	var where []string
	var args []interface{}

	base := "FROM nodes n"
	if f.Tag != "" {
		base += " JOIN tags_index ti ON ti.node_id = n.id"
		where = append(where, "ti.tag = ?")
		args = append(args, strings.ToLower(f.Tag))
	}
	if f.PathPrefix != "" {
		where = append(where, "LOWER(n.id) LIKE ?")
		args = append(args, strings.ToLower(f.PathPrefix)+"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(DISTINCT n.id) " + base + whereClause
	if err := c.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count nodes: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
		if limit == 0 {
			limit = 1
		}
	}
	query := "SELECT DISTINCT n.id, n.title, n.content, n.tags_json, n.outgoing_links_json, n.properties_json, n.source_kind, n.source_path, n.source_modified_ms " +
		base + whereClause + " ORDER BY n.id ASC LIMIT ? OFFSET ?"
	rows, err := c.db.Query(query, append(append([]interface{}{}, args...), limit, f.Offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []graphmodel.Node
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return ListResult{Nodes: nodes, Total: total}, rows.Err()
}

// TagMode selects how SearchByTags combines multiple tags.
type TagMode string

const (
	TagModeAny TagMode = "any"
	TagModeAll TagMode = "all"
)

// SearchByTags returns distinct nodes matching the given tags under the
// given mode, with an SQL-level limit (spec §4.3, search_by_tags).
func (c *Cache) SearchByTags(tags []string, mode TagMode, limit int) ([]graphmodel.Node, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}

	placeholders := make([]string, len(lowered))
	args := make([]interface{}, len(lowered))
	for i, t := range lowered {
		placeholders[i] = "?"
		args[i] = t
	}

	var query string
	switch mode {
	case TagModeAll:
		query = fmt.Sprintf(`
			SELECT n.id, n.title, n.content, n.tags_json, n.outgoing_links_json, n.properties_json, n.source_kind, n.source_path, n.source_modified_ms
			FROM nodes n JOIN tags_index ti ON ti.node_id = n.id
			WHERE ti.tag IN (%s)
			GROUP BY n.id HAVING COUNT(DISTINCT ti.tag) = ?
			ORDER BY n.id ASC`, strings.Join(placeholders, ","))
		args = append(args, len(lowered))
	default:
		query = fmt.Sprintf(`
			SELECT DISTINCT n.id, n.title, n.content, n.tags_json, n.outgoing_links_json, n.properties_json, n.source_kind, n.source_path, n.source_modified_ms
			FROM nodes n JOIN tags_index ti ON ti.node_id = n.id
			WHERE ti.tag IN (%s)
			ORDER BY n.id ASC`, strings.Join(placeholders, ","))
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search by tags: %w", err)
	}
	defer rows.Close()

	var nodes []graphmodel.Node
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// AllNodes returns every node, used to rebuild the Graph Mirror (spec
// §4.6, step 4).
func (c *Cache) AllNodes() ([]graphmodel.Node, error) {
	rows, err := c.db.Query(`SELECT id, title, content, tags_json, outgoing_links_json, properties_json, source_kind, source_path, source_modified_ms FROM nodes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all nodes: %w", err)
	}
	defer rows.Close()

	var nodes []graphmodel.Node
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, rows.Err()
}

// OrphanTagRows counts tags_index rows with no backing node, a defense in
// depth check against I3 even though the foreign key's ON DELETE CASCADE
// should make this impossible in normal operation.
func (c *Cache) OrphanTagRows() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM tags_index t LEFT JOIN nodes n ON n.id = t.node_id WHERE n.id IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orphan tag rows: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanNode(row *sql.Row) (graphmodel.Node, error) {
	return scanAny(row)
}

func scanNodeRows(rows *sql.Rows) (graphmodel.Node, error) {
	return scanAny(rows)
}

func scanAny(s scannable) (graphmodel.Node, error) {
	var n graphmodel.Node
	var tagsJSON, linksJSON, propsJSON, sourceKind, sourcePath string
	var sourceModifiedMS int64
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &tagsJSON, &linksJSON, &propsJSON, &sourceKind, &sourcePath, &sourceModifiedMS); err != nil {
		return graphmodel.Node{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return graphmodel.Node{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &n.OutgoingLinks); err != nil {
		return graphmodel.Node{}, fmt.Errorf("unmarshal outgoing links: %w", err)
	}
	if err := json.Unmarshal([]byte(propsJSON), &n.Properties); err != nil {
		return graphmodel.Node{}, fmt.Errorf("unmarshal properties: %w", err)
	}
	n.SourceRef = graphmodel.SourceRef{
		Kind:           graphmodel.SourceKind(sourceKind),
		Path:           sourcePath,
		LastModifiedMS: sourceModifiedMS,
	}
	return n, nil
}

// Centrality is one row of the centrality table (spec §4.3).
type Centrality struct {
	NodeID       string
	InDegree     int
	OutDegree    int
	Pagerank     float64
	ComputedAtMS int64
}

// StoreCentrality replaces the centrality row for one id.
func (c *Cache) StoreCentrality(tx *sql.Tx, row Centrality) error {
	_, err := tx.Exec(`
		INSERT INTO centrality (node_id, in_degree, out_degree, pagerank, computed_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			in_degree=excluded.in_degree, out_degree=excluded.out_degree,
			pagerank=excluded.pagerank, computed_at_ms=excluded.computed_at_ms
	`, row.NodeID, row.InDegree, row.OutDegree, row.Pagerank, row.ComputedAtMS)
	if err != nil {
		return fmt.Errorf("store centrality for %s: %w", row.NodeID, err)
	}
	return nil
}

// GetCentrality returns the centrality row for id, or ok=false if absent.
func (c *Cache) GetCentrality(id string) (Centrality, bool, error) {
	row := c.db.QueryRow(`SELECT node_id, in_degree, out_degree, pagerank, computed_at_ms FROM centrality WHERE node_id = ?`, id)
	var cen Centrality
	if err := row.Scan(&cen.NodeID, &cen.InDegree, &cen.OutDegree, &cen.Pagerank, &cen.ComputedAtMS); err != nil {
		if err == sql.ErrNoRows {
			return Centrality{}, false, nil
		}
		return Centrality{}, false, fmt.Errorf("get centrality %s: %w", id, err)
	}
	return cen, true, nil
}

// ReplaceCentrality deletes every centrality row not in keepIDs; used at
// the end of a reconcile batch so centrality is defined for exactly the
// current real node set (spec I5).
func (c *Cache) ReplaceCentrality(tx *sql.Tx, keepIDs []string) error {
	if len(keepIDs) == 0 {
		_, err := tx.Exec(`DELETE FROM centrality`)
		return err
	}
	placeholders := make([]string, len(keepIDs))
	args := make([]interface{}, len(keepIDs))
	for i, id := range keepIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM centrality WHERE node_id NOT IN (%s)`, strings.Join(placeholders, ","))
	_, err := tx.Exec(query, args...)
	return err
}

// Hub is one ranked entry from GetHubs.
type Hub struct {
	ID    string
	Score int
}

// GetHubs ranks real nodes by in_degree or out_degree, score desc then id
// asc (spec §4.5, hubs; mirrored here since centrality is persisted).
func (c *Cache) GetHubs(metric string, limit int) ([]Hub, error) {
	if limit <= 0 {
		return nil, nil
	}
	col := "in_degree"
	if metric == "out_degree" {
		col = "out_degree"
	}
	query := fmt.Sprintf(`SELECT node_id, %s FROM centrality ORDER BY %s DESC, node_id ASC LIMIT ?`, col, col)
	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("get hubs: %w", err)
	}
	defer rows.Close()

	var hubs []Hub
	for rows.Next() {
		var h Hub
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hub: %w", err)
		}
		hubs = append(hubs, h)
	}
	return hubs, rows.Err()
}
