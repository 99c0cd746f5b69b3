package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videorag/core"
)

func TestMergeSpeechSegmentsAccumulatesToMinimum(t *testing.T) {
	fragments := []core.Segment{
		{Start: 0.0, End: 1.0, Text: "a"},
		{Start: 1.0, End: 1.5, Text: "b"},
		{Start: 1.5, End: 3.0, Text: "c"},
	}

	merged := MergeSpeechSegments(fragments, 2.0)
	require.Len(t, merged, 1)
	assert.Equal(t, 0.0, merged[0].Start)
	assert.Equal(t, 3.0, merged[0].End)
	assert.Equal(t, 3.0, merged[0].Duration)
	assert.Equal(t, "a b c", merged[0].Text)
}

func TestMergeSpeechSegmentsFlushesTrailingRemainder(t *testing.T) {
	fragments := []core.Segment{
		{Start: 0.0, End: 2.5, Text: "long enough"},
		{Start: 2.5, End: 3.0, Text: "tail"},
	}

	merged := MergeSpeechSegments(fragments, 2.0)
	require.Len(t, merged, 2)
	assert.Equal(t, "long enough", merged[0].Text)
	assert.Equal(t, "tail", merged[1].Text)
	assert.InDelta(t, 0.5, merged[1].Duration, 1e-9)
}

func TestMergeSpeechSegmentsLongFragmentPassesThrough(t *testing.T) {
	fragments := []core.Segment{
		{Start: 0.0, End: 10.0, Text: "one long take"},
	}

	merged := MergeSpeechSegments(fragments, 2.0)
	require.Len(t, merged, 1)
	assert.Equal(t, 10.0, merged[0].End)
	assert.Equal(t, "one long take", merged[0].Text)
}

func TestMergeSpeechSegmentsEmptyInput(t *testing.T) {
	assert.Empty(t, MergeSpeechSegments(nil, 2.0))
}

func TestMergeSpeechSegmentsNonIncreasingEndClamped(t *testing.T) {
	fragments := []core.Segment{
		{Start: 5.0, End: 4.0, Text: "bad timing"},
	}

	merged := MergeSpeechSegments(fragments, 2.0)
	require.Len(t, merged, 1)
	assert.Equal(t, 5.0, merged[0].Start)
	assert.Equal(t, 5.0, merged[0].End)
	assert.Equal(t, 0.0, merged[0].Duration)
}
