// Package normalize turns raw generated copy into text that satisfies the
// posting policy: one canonical link, one brand hashtag, a bounded number of
// emoji, a minimum number of hashtags and no leftover template labels.
//
// Every rule is a pure text to text function. Rules can be run alone, but
// DefaultRules orders them so URL cleanup precedes URL insertion and label
// stripping precedes emoji and hashtag counting.
package normalize

// Policy is the per-post input to the rules.
type Policy struct {
	CanonicalURL     string
	BrandHashtag     string
	MaxEmoji         int
	MinHashtags      int
	FallbackHashtags []string
}

// Rule is one named rewrite. Apply must be total and deterministic.
type Rule struct {
	Name  string
	Apply func(text string, p Policy) string
}

var (
	StripMarkdown      = Rule{Name: "strip_markdown", Apply: stripMarkdown}
	StripLabels        = Rule{Name: "strip_labels", Apply: stripLabels}
	StripForeignURLs   = Rule{Name: "strip_foreign_urls", Apply: stripForeignURLs}
	EnsureCanonicalURL = Rule{Name: "ensure_canonical_url", Apply: ensureCanonicalURL}
	EnsureBrandHashtag = Rule{Name: "ensure_brand_hashtag", Apply: ensureBrandHashtag}
	CapEmoji           = Rule{Name: "cap_emoji", Apply: capEmoji}
	FillHashtags       = Rule{Name: "fill_hashtags", Apply: fillHashtags}
	CollapseBlankLines = Rule{Name: "collapse_blank_lines", Apply: collapseBlankLines}
)

// DefaultRules returns the rules in the order they must run: URL cleanup
// before URL insertion, label stripping before emoji and hashtag counting.
func DefaultRules() []Rule {
	return []Rule{
		StripMarkdown,
		StripLabels,
		StripForeignURLs,
		EnsureCanonicalURL,
		EnsureBrandHashtag,
		CapEmoji,
		FillHashtags,
		CollapseBlankLines,
	}
}

// Normalizer applies an ordered rule list to generated copy.
type Normalizer struct {
	rules []Rule
}

// New builds a Normalizer. With no rules it uses DefaultRules.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Normalize returns the cleaned text without the applied-rule report.
func (n *Normalizer) Normalize(raw string, p Policy) string {
	out, _ := n.NormalizeWithReport(raw, p)
	return out
}

// NormalizeWithReport also returns the names of the rules that changed the text.
func (n *Normalizer) NormalizeWithReport(raw string, p Policy) (string, []string) {
	text := raw
	var changed []string
	for _, rule := range n.rules {
		next := rule.Apply(text, p)
		if next != text {
			changed = append(changed, rule.Name)
		}
		text = next
	}
	return text, changed
}
