package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ids(list ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, id := range list {
		m[id] = struct{}{}
	}
	return m
}

func TestResolveUnpathedSingleMatch(t *testing.T) {
	got := Resolve("ML", ids("notes/ml.md", "notes/other.md"))
	require.Equal(t, "notes/ml.md", got)
}

func TestResolveUnpathedNoMatchBecomesGhost(t *testing.T) {
	got := Resolve("ghost", ids("a.md"))
	require.Equal(t, "ghost.md", got)
}

func TestResolveUnpathedMultipleMatchesTieBreakLexicographic(t *testing.T) {
	got := Resolve("dup", ids("z/dup.md", "a/dup.md"))
	require.Equal(t, "a/dup.md", got)
}

func TestResolvePathedWithExtension(t *testing.T) {
	got := Resolve("Notes/Research.md", ids("notes/research.md"))
	require.Equal(t, "notes/research.md", got)
}

func TestResolvePathedWithoutExtensionAppendsMD(t *testing.T) {
	got := Resolve("notes/research", ids("notes/research.md"))
	require.Equal(t, "notes/research.md", got)
}

func TestResolveStripsLeadingDotSlash(t *testing.T) {
	got := Resolve("./a", ids("a.md"))
	require.Equal(t, "a.md", got)
}

func TestResolveBackslashesNormalized(t *testing.T) {
	got := Resolve(`Notes\Research`, ids("notes/research.md"))
	require.Equal(t, "notes/research.md", got)
}

func TestResolveUnpathedMatchesWithoutExtensionStem(t *testing.T) {
	got := Resolve("research", ids("notes/research.md"))
	require.Equal(t, "notes/research.md", got)
}
