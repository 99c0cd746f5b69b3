package retrieval

import "strings"

const evidenceMarker = "\n\nEvidence:\n"

// SplitAnswer cuts a composed answer into its three sections: the answer
// text, the Evidence block and the [Citations: ...] trailer. Sections
// that are missing come back as their empty-case sentinels, so callers
// can always print all three.
func SplitAnswer(prediction string) (answer, evidence, citations string) {
	text := strings.TrimSpace(prediction)
	if text == "" {
		return "", "Evidence: (no evidence)", "[Citations: ]"
	}

	lines := strings.Split(text, "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); strings.HasPrefix(last, "[Citations:") {
		citations = last
		text = strings.TrimSpace(strings.Join(lines[:len(lines)-1], "\n"))
	}

	if before, after, found := strings.Cut(text, evidenceMarker); found {
		answer = strings.TrimSpace(before)
		evidence = "Evidence:\n" + strings.TrimSpace(after)
	} else if rest, found := strings.CutSuffix(text, "\n\nEvidence: (no evidence)"); found {
		answer = strings.TrimSpace(rest)
		evidence = "Evidence: (no evidence)"
	} else {
		answer = strings.TrimSpace(text)
		evidence = "Evidence: (no evidence)"
	}

	if citations == "" {
		citations = "[Citations: ]"
	}
	return answer, evidence, citations
}
