// Package graphmodel defines the canonical Node record shared by the Cache,
// Graph Mirror, and Store (spec §3).
package graphmodel

import "strings"

// SourceKind distinguishes watched files from direct API/manual writes
// (spec §3, source_ref).
type SourceKind string

const (
	SourceKindFile   SourceKind = "file"
	SourceKindAPI    SourceKind = "api"
	SourceKindManual SourceKind = "manual"
)

// SourceRef records the origin of a Node.
type SourceRef struct {
	Kind           SourceKind
	Path           string
	LastModifiedMS int64
}

// ContentAbsent is the sentinel content value for ghost nodes (spec §3).
const ContentAbsent = "absent"

// Node is the canonical record projected from one source file, or a ghost
// vertex with no backing file.
type Node struct {
	ID            string
	Title         string
	Content       string
	Tags          []string
	OutgoingLinks []string
	Properties    map[string]interface{}
	SourceRef     SourceRef
	Ghost         bool
}

// ReservedKeys are the frontmatter keys extracted into dedicated Node fields
// and never appearing in Properties (spec §3, I6).
var ReservedKeys = map[string]struct{}{
	"id":    {},
	"title": {},
	"tags":  {},
}

// IsReservedKey reports whether key is a reserved frontmatter key.
func IsReservedKey(key string) bool {
	_, ok := ReservedKeys[strings.ToLower(key)]
	return ok
}

// NormalizeID lowercases and forward-slashes a raw id, per spec I1/I7.
func NormalizeID(id string) string {
	id = strings.ReplaceAll(id, "\\", "/")
	return strings.ToLower(id)
}

// TitleFromID derives a display title from an id's filename stem, used for
// ghost nodes and as the last-resort title rule for real nodes (spec §3).
func TitleFromID(id string) string {
	base := id
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// GhostNode constructs the placeholder Node for an id referenced by some
// outgoing link but lacking a backing file (spec §3, Ghost node).
func GhostNode(id string) Node {
	return Node{
		ID:      id,
		Title:   TitleFromID(id),
		Content: ContentAbsent,
		Ghost:   true,
	}
}

// NormalizeTags trims, lowercases, and dedupes tags while preserving
// insertion order (spec §3, tags; spec §4.1).
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DedupeLinks removes duplicate targets while preserving first-seen order
// (spec §3, outgoing_links).
func DedupeLinks(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// CleanProperties removes reserved keys from a raw frontmatter map
// (spec I6).
func CleanProperties(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if IsReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
