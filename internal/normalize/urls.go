package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>"\x60]+`)

const trailingURLPunct = `.,;:!?'")]}`

type urlMatch struct {
	start, end int // span including trailing punctuation
	raw        string
}

func findURLs(text string) []urlMatch {
	var out []urlMatch
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], trailingURLPunct)
		out = append(out, urlMatch{start: loc[0], end: loc[1], raw: raw})
	}
	return out
}

// urlKey reduces a URL to host and path so that scheme, "www.", a trailing
// slash, query and fragment differences compare equal.
func urlKey(raw string) string {
	if strings.HasPrefix(strings.ToLower(raw), "www.") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.EscapedPath(), "/")
}

func isNearCanonical(raw, canonical string) bool {
	key := urlKey(raw)
	return key != "" && key == urlKey(canonical)
}

// stripForeignURLs deletes every URL that does not point at the canonical
// post and rewrites near-matches to the exact canonical URL.
func stripForeignURLs(text string, p Policy) string {
	matches := findURLs(text)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if p.CanonicalURL != "" && isNearCanonical(m.raw, p.CanonicalURL) {
			text = text[:m.start] + p.CanonicalURL + text[m.start+len(m.raw):]
			continue
		}
		text = cut(text, m.start, m.end)
	}
	return text
}

// ensureCanonicalURL keeps the first exact canonical URL and drops repeats.
// When none is present it goes on its own line before the hashtag block.
func ensureCanonicalURL(text string, p Policy) string {
	if p.CanonicalURL == "" {
		return text
	}
	var repeats [][2]int
	found := false
	for _, m := range findURLs(text) {
		if m.raw != p.CanonicalURL {
			continue
		}
		if !found {
			found = true
			continue
		}
		repeats = append(repeats, [2]int{m.start, m.end})
	}
	if found {
		return cutSpans(text, repeats)
	}

	lines := strings.Split(text, "\n")
	idx := hashtagBlockStart(lines)
	if idx < 0 {
		trimmed := strings.TrimRight(text, " \t\n")
		if trimmed == "" {
			return p.CanonicalURL
		}
		return trimmed + "\n\n" + p.CanonicalURL
	}

	insert := []string{p.CanonicalURL, ""}
	if idx > 0 && !isBlank(lines[idx-1]) {
		insert = []string{"", p.CanonicalURL, ""}
	}
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:idx]...)
	out = append(out, insert...)
	out = append(out, lines[idx:]...)
	return strings.Join(out, "\n")
}
