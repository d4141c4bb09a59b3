package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	zwj         = '\u200D'
	variation16 = '\uFE0F'
	variation15 = '\uFE0E'
	keycapMark  = '\u20E3'
	riFirst     = 0x1F1E6
	riLast      = 0x1F1FF
	toneFirst   = 0x1F3FB
	toneLast    = 0x1F3FF
	tagFirst    = 0xE0020
	tagLast     = 0xE007F
)

func isRegionalIndicator(r rune) bool {
	return r >= riFirst && r <= riLast
}

// isPictographic covers the blocks that render as emoji by default.
func isPictographic(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0x231A, r == 0x231B, r == 0x2328, r == 0x23CF:
		return true
	case r >= 0x23E9 && r <= 0x23F3, r >= 0x23F8 && r <= 0x23FA:
		return true
	case r == 0x2B05, r == 0x2B06, r == 0x2B07, r == 0x2B1B, r == 0x2B1C, r == 0x2B50, r == 0x2B55:
		return true
	case r == 0x3030, r == 0x303D, r == 0x3297, r == 0x3299:
		return true
	}
	return false
}

func isEmojiModifier(r rune) bool {
	return r == variation16 || r == variation15 || r == keycapMark ||
		(r >= toneFirst && r <= toneLast) || (r >= tagFirst && r <= tagLast)
}

func isKeycapBase(r rune) bool {
	return r == '#' || r == '*' || (r >= '0' && r <= '9')
}

// emojiAt returns the byte length of the emoji cluster starting at text[i],
// or 0 when none starts there. ZWJ sequences, skin tones, flags and
// keycaps each count as one cluster.
func emojiAt(text string, i int) int {
	r, size := utf8.DecodeRuneInString(text[i:])
	j := i + size

	switch {
	case isRegionalIndicator(r):
		if next, n := utf8.DecodeRuneInString(text[j:]); isRegionalIndicator(next) {
			return j + n - i
		}
		return size
	case isKeycapBase(r):
		k := j
		if next, n := utf8.DecodeRuneInString(text[k:]); next == variation16 {
			k += n
		}
		if next, n := utf8.DecodeRuneInString(text[k:]); next == keycapMark {
			return k + n - i
		}
		return 0
	case isPictographic(r):
	case r < utf8.RuneSelf:
		return 0
	default:
		// text-default symbols such as U+2139 or U+00A9 become emoji with VS16
		if next, n := utf8.DecodeRuneInString(text[j:]); next == variation16 {
			return j + n - i
		}
		return 0
	}

	for j < len(text) {
		next, n := utf8.DecodeRuneInString(text[j:])
		if isEmojiModifier(next) {
			j += n
			continue
		}
		if next == zwj {
			joined, m := utf8.DecodeRuneInString(text[j+n:])
			if isPictographic(joined) {
				j += n + m
				continue
			}
		}
		break
	}
	return j - i
}

// CountEmoji counts emoji clusters.
func CountEmoji(text string) int {
	count := 0
	for i := 0; i < len(text); {
		if n := emojiAt(text, i); n > 0 {
			count++
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return count
}

// capEmoji keeps the first MaxEmoji clusters and deletes the rest.
func capEmoji(text string, p Policy) string {
	limit := p.MaxEmoji
	if limit < 0 {
		limit = 0
	}
	var spans [][2]int
	seen := 0
	for i := 0; i < len(text); {
		if n := emojiAt(text, i); n > 0 {
			seen++
			if seen > limit {
				spans = append(spans, [2]int{i, i + n})
			}
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	for i := len(spans) - 1; i >= 0; i-- {
		text = cutEmoji(text, spans[i][0], spans[i][1])
	}
	return text
}

// cutEmoji removes an emoji cluster. A cluster wedged between two words, or
// directly before a hashtag, is replaced by a space so the neighbours do not
// fuse into a different token.
func cutEmoji(text string, start, end int) string {
	if start > 0 && end < len(text) {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsSpace(prev) && (next == '#' || (isTagRune(prev) && isTagRune(next))) {
			return text[:start] + " " + text[end:]
		}
	}
	return cut(text, start, end)
}

// collapseBlankLines trims trailing whitespace from every line, keeps at
// most two consecutive blank lines and trims the text.
func collapseBlankLines(text string, _ Policy) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
