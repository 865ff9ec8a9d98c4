// Package parser projects raw markdown file bytes into a parsed record:
// frontmatter, title, tags, raw link targets, and the stripped content body
// (spec §4.1).
package parser

import (
	"errors"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrTruncatedFrontmatter is returned by Parse when a file opens a
// frontmatter block with `---` but never closes it. This is a hard parse
// error, not a recoverable warning: spec §4.1 and §4.6 require a partial
// read to be treated as a parse error and skipped, never committed with
// the unterminated block folded into content.
var ErrTruncatedFrontmatter = errors.New("truncated frontmatter: missing closing delimiter")

// RawLink is one `[[target]]` occurrence found in a file's content.
type RawLink struct {
	Target  string // text before any `|` or `#`
	Display string // text after `|`, if present
	Heading string // text after `#`, if present (ignored by resolution)
}

// Parsed is the output of parsing a single file.
type Parsed struct {
	Title      string
	Tags       []string
	Properties map[string]interface{}
	RawLinks   []RawLink
	Content    string
	Warning    string // non-empty when frontmatter YAML was malformed and dropped
}

var frontmatterDelim = "---"

var linkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

var headingPattern = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+(.*)$`)

// Parse extracts frontmatter, title, tags, raw links, and content from raw
// file bytes. path is used only to derive a filename-stem fallback title
// and must be the real-case relative path, not a case-normalized id.
//
// Parse returns ErrTruncatedFrontmatter when an opening `---` is never
// closed; callers must treat that as a hard parse error and skip the file
// rather than commit it (spec §4.1, §4.6). Malformed YAML *content* inside
// a properly closed block is instead a recoverable condition: Parsed.Warning
// is set and the frontmatter block is dropped, but the file is still parsed.
func Parse(raw []byte, path string) (Parsed, error) {
	text := string(raw)
	fm, body, truncated := splitFrontmatter(text)
	if truncated {
		return Parsed{}, ErrTruncatedFrontmatter
	}

	var frontmatter map[string]interface{}
	var warning string
	if fm != "" {
		if err := yaml.Unmarshal([]byte(fm), &frontmatter); err != nil {
			warning = "malformed frontmatter: " + err.Error()
			frontmatter = nil
		}
	}
	if frontmatter == nil {
		frontmatter = map[string]interface{}{}
	}

	tags := extractTags(frontmatter)
	title := resolveTitle(frontmatter, body, path)
	properties := cleanProperties(frontmatter)
	links := extractLinks(body)

	return Parsed{
		Title:      title,
		Tags:       tags,
		Properties: properties,
		RawLinks:   links,
		Content:    body,
		Warning:    warning,
	}, nil
}

// splitFrontmatter separates a leading `---`-delimited YAML block from the
// remaining body. Absence of a frontmatter block is not an error. A
// terminator that is never found is reported via truncated=true so the
// caller can treat it as a hard parse error (spec §4.1, "must not partially
// accept keys"): no frontmatter or body is returned in that case.
func splitFrontmatter(text string) (frontmatter string, body string, truncated bool) {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != frontmatterDelim {
		return "", text, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == frontmatterDelim {
			fm := strings.Join(lines[1:i], "")
			rest := strings.Join(lines[i+1:], "")
			return fm, rest, false
		}
	}

	return "", "", true
}

func extractTags(frontmatter map[string]interface{}) []string {
	raw, ok := frontmatter["tags"]
	if !ok {
		return nil
	}

	var strs []string
	switch v := raw.(type) {
	case string:
		strs = append(strs, v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				strs = append(strs, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(strs))
	out := make([]string, 0, len(strs))
	for _, t := range strs {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func resolveTitle(frontmatter map[string]interface{}, body, path string) string {
	if raw, ok := frontmatter["title"]; ok {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	if m := headingPattern.FindStringSubmatch(body); m != nil {
		if h := strings.TrimSpace(m[1]); h != "" {
			return h
		}
	}

	return stemOf(path)
}

func stemOf(path string) string {
	base := path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

var reservedFrontmatterKeys = map[string]struct{}{
	"id":    {},
	"title": {},
	"tags":  {},
}

func cleanProperties(frontmatter map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(frontmatter))
	for k, v := range frontmatter {
		if _, reserved := reservedFrontmatterKeys[strings.ToLower(k)]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

// extractLinks scans content for `[[target|display#heading]]` occurrences.
// Code fences and inline code spans are intentionally not excluded (spec
// §4.1, documented limitation).
func extractLinks(body string) []RawLink {
	matches := linkPattern.FindAllStringSubmatch(body, -1)
	links := make([]RawLink, 0, len(matches))
	for _, m := range matches {
		inner := m[1]

		display := ""
		if idx := strings.Index(inner, "|"); idx >= 0 {
			display = strings.TrimSpace(inner[idx+1:])
			inner = inner[:idx]
		}

		heading := ""
		if idx := strings.Index(inner, "#"); idx >= 0 {
			heading = strings.TrimSpace(inner[idx+1:])
			inner = inner[:idx]
		}

		target := strings.TrimSpace(inner)
		if target == "" {
			continue
		}
		links = append(links, RawLink{Target: target, Display: display, Heading: heading})
	}
	return links
}
