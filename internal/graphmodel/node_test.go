package graphmodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGhostNodeDerivesTitleFromID(t *testing.T) {
	n := GhostNode("projects/alpha.md")
	require.True(t, n.Ghost)
	require.Equal(t, "alpha", n.Title)
	require.Equal(t, ContentAbsent, n.Content)
}

func TestTitleFromID(t *testing.T) {
	require.Equal(t, "notes", TitleFromID("a/b/notes.md"))
	require.Equal(t, "notes", TitleFromID("notes.md"))
	require.Equal(t, "notes", TitleFromID("notes"))
}

func TestNormalizeTagsDedupesCaseInsensitive(t *testing.T) {
	got := NormalizeTags([]string{"Project", "project", " idea ", ""})
	require.Equal(t, []string{"project", "idea"}, got)
}

func TestDedupeLinksPreservesOrder(t *testing.T) {
	got := DedupeLinks([]string{"b", "a", "b", "c", "a"})
	require.Equal(t, []string{"b", "a", "c"}, got)
}

func TestCleanPropertiesRemovesReservedKeys(t *testing.T) {
	raw := map[string]interface{}{
		"id":       "x",
		"Title":    "X",
		"tags":     []string{"a"},
		"priority": "high",
	}
	got := CleanProperties(raw)
	require.Equal(t, map[string]interface{}{"priority": "high"}, got)
}

func TestIsReservedKeyCaseInsensitive(t *testing.T) {
	require.True(t, IsReservedKey("ID"))
	require.True(t, IsReservedKey("Tags"))
	require.False(t, IsReservedKey("priority"))
}

func TestNormalizeIDLowercasesAndSlashes(t *testing.T) {
	require.Equal(t, "projects/alpha.md", NormalizeID(`Projects\Alpha.md`))
}
