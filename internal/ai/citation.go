package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// citationRegex matches the trailing [page: N] marker the system prompt asks
// the model to emit. Pages in the marker are 1-based as printed.
var citationRegex = regexp.MustCompile(`\[page:\s*(\d+)\s*\]\s*$`)

// ParseCitation strips the citation marker from an answer and returns the
// zero-based cited page. found is false when no well-formed marker is
// present; the returned page is then 0 and the text is unchanged.
func ParseCitation(text string) (answer string, page int, found bool) {
	trimmed := strings.TrimSpace(text)
	m := citationRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed, 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return trimmed, 0, false
	}
	answer = strings.TrimSpace(strings.TrimSuffix(trimmed, m[0]))
	return answer, n - 1, true
}
