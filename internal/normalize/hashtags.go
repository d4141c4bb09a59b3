package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type hashtag struct {
	start, end int
	tag        string
}

func isTagRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// findHashtags returns "#word" tokens that start at a word boundary, so URL
// fragments and "C#" are not counted.
func findHashtags(text string) []hashtag {
	var out []hashtag
	for i := 0; i < len(text); i++ {
		if text[i] != '#' {
			continue
		}
		if i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:i])
			if isTagRune(prev) || strings.ContainsRune("#/&=?", prev) {
				continue
			}
		}
		j := i + 1
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !isTagRune(r) || emojiAt(text, j) > 0 {
				break
			}
			j += size
		}
		if j > i+1 {
			out = append(out, hashtag{start: i, end: j, tag: text[i:j]})
			i = j - 1
		}
	}
	return out
}

// isHashtagLine reports whether every token on the line is a hashtag.
func isHashtagLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		tags := findHashtags(f)
		if len(tags) != 1 || tags[0].start != 0 || tags[0].end != len(f) {
			return false
		}
	}
	return true
}

// hashtagBlockStart finds the first line of the last run of hashtag-only
// lines, or -1.
func hashtagBlockStart(lines []string) int {
	last := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if isHashtagLine(lines[i]) {
			last = i
			break
		}
	}
	if last < 0 {
		return -1
	}
	start := last
	for start > 0 && isHashtagLine(lines[start-1]) {
		start--
	}
	return start
}

// appendToHashtagLine adds tags to the last hashtag line, creating one at
// the end of the text when there is none.
func appendToHashtagLine(text string, tags []string) string {
	if len(tags) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if isHashtagLine(lines[i]) {
			lines[i] = strings.TrimRight(lines[i], " \t") + " " + strings.Join(tags, " ")
			return strings.Join(lines, "\n")
		}
	}
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return strings.Join(tags, " ")
	}
	return trimmed + "\n\n" + strings.Join(tags, " ")
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return tag
}

// ensureBrandHashtag leaves exactly one brand hashtag, compared case-insensitively.
func ensureBrandHashtag(text string, p Policy) string {
	brand := normalizeTag(p.BrandHashtag)
	if brand == "" {
		return text
	}
	// removing a repeat can expose a tag that was glued to it, so repeat
	// until the text is stable
	for {
		var repeats [][2]int
		found := false
		for _, h := range findHashtags(text) {
			if !strings.EqualFold(h.tag, brand) {
				continue
			}
			if !found {
				found = true
				continue
			}
			repeats = append(repeats, [2]int{h.start, h.end})
		}
		if !found {
			return appendToHashtagLine(text, []string{brand})
		}
		if len(repeats) == 0 {
			return text
		}
		text = cutSpans(text, repeats)
	}
}

// fillHashtags tops the distinct hashtag count up to MinHashtags from the
// fallback list. Posts above any maximum are left alone.
func fillHashtags(text string, p Policy) string {
	present := make(map[string]bool)
	for _, h := range findHashtags(text) {
		present[strings.ToLower(h.tag)] = true
	}
	var add []string
	for _, candidate := range p.FallbackHashtags {
		if len(present) >= p.MinHashtags {
			break
		}
		tag := normalizeTag(candidate)
		if tag == "" || present[strings.ToLower(tag)] {
			continue
		}
		present[strings.ToLower(tag)] = true
		add = append(add, tag)
	}
	return appendToHashtagLine(text, add)
}
