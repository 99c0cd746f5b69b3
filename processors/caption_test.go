package processors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCaptionWellFormed(t *testing.T) {
	cap := parseCaption("SHORT: A dog in a park\nLONG: A golden retriever runs across a sunny park chasing a ball.")
	assert.Equal(t, "A dog in a park", cap.Short)
	assert.Equal(t, "A golden retriever runs across a sunny park chasing a ball.", cap.Long)
}

func TestParseCaptionCaseInsensitivePrefixes(t *testing.T) {
	cap := parseCaption("short: lowercase works\nlong: so does this line.")
	assert.Equal(t, "lowercase works", cap.Short)
	assert.Equal(t, "so does this line.", cap.Long)
}

func TestParseCaptionDriftFallback(t *testing.T) {
	raw := "A long freeform description of the frame that does not follow the requested format at all."
	cap := parseCaption(raw)
	assert.Equal(t, raw, cap.Long)
	assert.Equal(t, raw[:50], cap.Short)
	assert.Len(t, cap.Short, 50)
}

func TestParseCaptionShortRawFallback(t *testing.T) {
	cap := parseCaption("tiny")
	assert.Equal(t, "tiny", cap.Short)
	assert.Equal(t, "tiny", cap.Long)
}

func TestParseCaptionOnlyLongLine(t *testing.T) {
	long := strings.Repeat("x", 80)
	cap := parseCaption("LONG: " + long)
	assert.Equal(t, long, cap.Long)
	assert.Equal(t, long[:50], cap.Short)
}

func TestParseCaptionOnlyShortLine(t *testing.T) {
	cap := parseCaption("SHORT: just a phrase")
	assert.Equal(t, "just a phrase", cap.Short)
	assert.Equal(t, "just a phrase", cap.Long)
}
