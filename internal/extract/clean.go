package extract

import (
	"regexp"
	"strings"
)

var (
	horizontalWSRe = regexp.MustCompile(`[ \t]+`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
)

// CleanText applies the shared normalization every extraction path ends with:
// CRLF to LF, horizontal whitespace runs collapsed, 3+ blank lines collapsed
// to one, every line trimmed, and the whole text trimmed.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalWSRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(text)
}
