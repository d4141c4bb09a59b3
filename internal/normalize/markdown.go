package normalize

import (
	"regexp"
	"strings"
)

var (
	markdownLink    = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	markdownHeading = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	emphasisMarkers = strings.NewReplacer("**", "", "__", "")

	letterMarker = regexp.MustCompile(`(?m)^[ \t]*(?:\(?[A-Za-z]\)|\[[A-Za-z]\])(?:[ \t]+|$)`)
	sectionLabel = regexp.MustCompile(`(?im)^[ \t]*(?:` + sectionNames + `)[ \t]*:[ \t]*`)

	// "A." and "I:" also open ordinary sentences, so they only count as
	// markers when bare or followed by a section name.
	bareDotted  = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z][.:][ \t]*$`)
	dottedLabel = regexp.MustCompile(`(?im)^[ \t]*[A-Za-z][.:][ \t]+((?:` + sectionNames + `)[ \t]*:)`)
)

const sectionNames = `headline|title|hook|intro|introduction|body|context|bullets?|bullet points|key points|key takeaways|takeaways|question|closing question|closing|cta|call to action|link|url|hashtags|tags`

// stripMarkdown flattens links to "label url" and drops emphasis and heading markers.
func stripMarkdown(text string, _ Policy) string {
	text = markdownLink.ReplaceAllString(text, "$1 $2")
	text = markdownHeading.ReplaceAllString(text, "")
	return emphasisMarkers.Replace(text)
}

// stripLabels removes "A)", "[B]", "C." style markers and "hook:" style
// section names at the start of a line. A marker may precede a section name;
// "C." and "C:" are kept when plain prose follows them.
func stripLabels(text string, _ Policy) string {
	text = letterMarker.ReplaceAllString(text, "")
	text = bareDotted.ReplaceAllString(text, "")
	text = dottedLabel.ReplaceAllString(text, "$1")
	return sectionLabel.ReplaceAllString(text, "")
}
