package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDiff_IdenticalContent tests that identical inputs yield no changed segments
func TestDiff_IdenticalContent(t *testing.T) {
	engine := NewEngine()

	result := engine.Diff("# Overview\n\nSome text.", "# Overview\n\nSome text.")

	assert.False(t, result.HasChanges())
	for _, s := range result.Segments {
		assert.Equal(t, SegmentUnchanged, s.Type)
	}
}

// TestDiff_EmptyToNonEmpty tests diffing from empty content
func TestDiff_EmptyToNonEmpty(t *testing.T) {
	engine := NewEngine()

	result := engine.Diff("", "# New Section\n")

	assert.True(t, result.HasChanges())
	assert.Len(t, result.Segments, 1)
	assert.Equal(t, SegmentAdded, result.Segments[0].Type)
	assert.Equal(t, "# New Section\n", result.Segments[0].Text)
}

// TestDiff_NonEmptyToEmpty tests diffing to empty content
func TestDiff_NonEmptyToEmpty(t *testing.T) {
	engine := NewEngine()

	result := engine.Diff("old content", "")

	assert.Len(t, result.Segments, 1)
	assert.Equal(t, SegmentRemoved, result.Segments[0].Type)
}

// TestDiff_Modification tests that edits produce added and removed segments
func TestDiff_Modification(t *testing.T) {
	engine := NewEngine()

	result := engine.Diff("The quick brown fox.", "The quick red fox.")

	var added, removed int
	for _, s := range result.Segments {
		switch s.Type {
		case SegmentAdded:
			added++
		case SegmentRemoved:
			removed++
		}
	}
	assert.Greater(t, added, 0)
	assert.Greater(t, removed, 0)
}

// TestDiff_Deterministic tests that repeated calls return the same segments
func TestDiff_Deterministic(t *testing.T) {
	engine := NewEngine()

	first := engine.Diff("alpha beta gamma", "alpha delta gamma")
	second := engine.Diff("alpha beta gamma", "alpha delta gamma")

	assert.Equal(t, first, second)
}

// TestDiff_BothEmpty tests diffing two empty strings
func TestDiff_BothEmpty(t *testing.T) {
	engine := NewEngine()

	result := engine.Diff("", "")

	assert.False(t, result.HasChanges())
	assert.Empty(t, result.Segments)
}
