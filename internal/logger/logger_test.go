package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarningsDrainClears(t *testing.T) {
	w := NewWarnings()
	w.Add("broken link: %s", "ghost.md")
	w.Add("mixed embedding models detected")

	got := w.Drain()
	require.Equal(t, []string{"broken link: ghost.md", "mixed embedding models detected"}, got)

	require.Nil(t, w.Drain())
}

func TestWarningsEmptyDrainsNil(t *testing.T) {
	w := NewWarnings()
	require.Nil(t, w.Drain())
}
