package processors

import (
	"strings"

	"videorag/core"
)

// MergeSpeechSegments folds raw timed transcript fragments into chunks of
// at least minDuration seconds. Fragments must arrive in time order. The
// trailing remainder is flushed even when shorter than minDuration; it is
// never dropped.
func MergeSpeechSegments(fragments []core.Segment, minDuration float64) []core.SpeechSegment {
	if minDuration <= 0 {
		minDuration = 2.0
	}

	var (
		merged      []core.SpeechSegment
		bufferOpen  bool
		bufferStart float64
		bufferEnd   float64
		bufferText  strings.Builder
	)

	flush := func() {
		start, end := bufferStart, bufferEnd
		if end < start {
			end = start
		}
		merged = append(merged, core.SpeechSegment{
			Start:    start,
			End:      end,
			Duration: end - start,
			Text:     strings.TrimSpace(bufferText.String()),
		})
		bufferOpen = false
		bufferText.Reset()
	}

	for _, frag := range fragments {
		text := strings.TrimSpace(frag.Text)
		if !bufferOpen {
			bufferOpen = true
			bufferStart = frag.Start
			bufferEnd = frag.End
			bufferText.WriteString(text)
		} else {
			if frag.End > bufferEnd {
				bufferEnd = frag.End
			}
			bufferText.WriteString(" ")
			bufferText.WriteString(text)
		}

		if bufferEnd-bufferStart >= minDuration {
			flush()
		}
	}

	if bufferOpen {
		flush()
	}
	return merged
}
