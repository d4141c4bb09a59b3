package normalize

import "strings"

func isHSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// cut removes text[start:end] without leaving a doubled space or trailing
// whitespace where the span was.
func cut(text string, start, end int) string {
	atLineStart := start == 0 || text[start-1] == '\n'
	if atLineStart || isHSpace(text[start-1]) {
		for end < len(text) && isHSpace(text[end]) {
			end++
		}
	}
	if end == len(text) || text[end] == '\n' {
		for start > 0 && isHSpace(text[start-1]) {
			start--
		}
	}
	return text[:start] + text[end:]
}

// cutSpans removes non-overlapping spans given in ascending order.
func cutSpans(text string, spans [][2]int) string {
	for i := len(spans) - 1; i >= 0; i-- {
		text = cut(text, spans[i][0], spans[i][1])
	}
	return text
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
