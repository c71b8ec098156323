package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSummary(t *testing.T) {
	p := NewPostProcessor()

	got, err := p.ProcessSummary("Here is a summary:\n  The   team shipped\tversion 2.<script>alert(1)</script>")
	require.NoError(t, err)
	assert.Equal(t, "The team shipped version 2.", got)

	_, err = p.ProcessSummary("   ")
	assert.ErrorIs(t, err, ErrEmptySummary)

	_, err = p.ProcessSummary("Too short.")
	assert.Error(t, err)

	long, err := p.ProcessSummary(strings.Repeat("word ", 400))
	require.NoError(t, err)
	assert.Len(t, []rune(long), 800)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestProcessKeyPoints(t *testing.T) {
	p := NewPostProcessor()
	got := p.ProcessKeyPoints([]string{"a", "", "A", "b", "c", "d", "e", "f"})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, []string{}, p.ProcessKeyPoints(nil))
}

func TestExtractiveSummary(t *testing.T) {
	p := NewPostProcessor()
	assert.Equal(t, "One. Two. Three.", p.ExtractiveSummary("One. Two. Three. Four.", 3))
	assert.Equal(t, "Just one line", p.ExtractiveSummary("Just one line", 3))
	assert.Equal(t, "", p.ExtractiveSummary("  \n ", 3))
}

func TestParseKeyPoints(t *testing.T) {
	got := parseKeyPoints("Intro\n1. One\n  * Two\n• Three\nnot a point\n3.")
	assert.Equal(t, []string{"One", "Two", "Three"}, got)
}
