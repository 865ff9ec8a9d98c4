package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNoFrontmatter(t *testing.T) {
	p, err := Parse([]byte("# Research\nSee [[ML]]\n"), "notes/research.md")
	require.NoError(t, err)
	require.Equal(t, "Research", p.Title)
	require.Empty(t, p.Tags)
	require.Len(t, p.RawLinks, 1)
	require.Equal(t, "ML", p.RawLinks[0].Target)
	require.Empty(t, p.Warning)
}

func TestParseFrontmatterTitleAndTags(t *testing.T) {
	raw := []byte("---\ntitle: My Note\ntags: [Project, idea, project]\n---\nbody [[a]] [[b|Display]]\n")
	p, err := Parse(raw, "x.md")
	require.NoError(t, err)
	require.Equal(t, "My Note", p.Title)
	require.Equal(t, []string{"project", "idea"}, p.Tags)
	require.Len(t, p.RawLinks, 2)
	require.Equal(t, "a", p.RawLinks[0].Target)
	require.Equal(t, "b", p.RawLinks[1].Target)
	require.Equal(t, "Display", p.RawLinks[1].Display)
}

func TestParseTagsAsSingleString(t *testing.T) {
	p, err := Parse([]byte("---\ntags: solo\n---\nbody\n"), "x.md")
	require.NoError(t, err)
	require.Equal(t, []string{"solo"}, p.Tags)
}

func TestParseMalformedFrontmatterDoesNotPolluteProperties(t *testing.T) {
	raw := []byte("---\ntitle: [unterminated\n---\nbody\n")
	p, err := Parse(raw, "x.md")
	require.NoError(t, err)
	require.NotEmpty(t, p.Warning)
	require.Empty(t, p.Properties)
	require.Equal(t, "x", p.Title) // falls back to filename stem
}

func TestParseMissingClosingDelimiterIsTruncationError(t *testing.T) {
	raw := []byte("---\ntitle: Oops\nbody without a terminator\n")
	p, err := Parse(raw, "notes/x.md")
	require.ErrorIs(t, err, ErrTruncatedFrontmatter)
	require.Equal(t, Parsed{}, p)
}

func TestParseTitleFallsBackToHeadingThenStem(t *testing.T) {
	p, err := Parse([]byte("some text\n## A Heading\nmore\n"), "path/to/stem.md")
	require.NoError(t, err)
	require.Equal(t, "A Heading", p.Title)

	p2, err := Parse([]byte("no heading here\n"), "path/to/stem.md")
	require.NoError(t, err)
	require.Equal(t, "stem", p2.Title)
}

func TestParseReservedKeysExcludedFromProperties(t *testing.T) {
	raw := []byte("---\nid: custom\ntitle: T\ntags: [a]\npriority: high\n---\nbody\n")
	p, err := Parse(raw, "x.md")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"priority": "high"}, p.Properties)
}

func TestParseLinkWithHeadingFragment(t *testing.T) {
	p, err := Parse([]byte("[[note#section]]\n"), "x.md")
	require.NoError(t, err)
	require.Len(t, p.RawLinks, 1)
	require.Equal(t, "note", p.RawLinks[0].Target)
	require.Equal(t, "section", p.RawLinks[0].Heading)
}

func TestParseNoLinks(t *testing.T) {
	p, err := Parse([]byte("plain body\n"), "x.md")
	require.NoError(t, err)
	require.Empty(t, p.RawLinks)
}
