package filter

import (
	"regexp"
	"strings"
)

var (
	markedRegion = regexp.MustCompile(`(?s)<think>.*?</think>`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns    = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean removes every complete marked region from text and tidies the
// whitespace the removal leaves behind: runs of three or more newlines
// collapse to two, interior runs of spaces or tabs collapse to one, and
// leading and trailing whitespace is trimmed. Line-leading indentation is
// left alone so indented code in responses survives. Clean is idempotent.
//
// Only well-formed regions are removed; an open delimiter with no matching
// close stays in place. Streams that may truncate mid-region go through
// State instead.
func Clean(text string) string {
	cleaned := markedRegion.ReplaceAllString(text, "")
	cleaned = newlineRuns.ReplaceAllString(cleaned, "\n\n")
	cleaned = collapseSpaceRuns(cleaned)
	return strings.TrimSpace(cleaned)
}

// RegionCount reports how many complete marked regions Clean would remove
// from text.
func RegionCount(text string) int {
	return len(markedRegion.FindAllStringIndex(text, -1))
}

func collapseSpaceRuns(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		rest := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(rest)]
		lines[i] = indent + spaceRuns.ReplaceAllString(rest, " ")
	}
	return strings.Join(lines, "\n")
}
