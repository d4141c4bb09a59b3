package copygen

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"herald/internal/store"
	"herald/pkg/llm"
	"herald/pkg/logging"
)

const (
	maxBodyRunes      = 4000
	generationTimeout = 60 * time.Second
)

const systemPrompt = `You write LinkedIn posts for a company page, promoting one blog article.
Structure the post exactly like this:
1. A one or two sentence hook.
2. A short paragraph of context.
3. Three to five actionable bullet points, one per line, each starting with "- ".
4. A closing question that invites comments.
5. The canonical URL on its own line, bare, with no markdown.
6. A final line of hashtags that includes %s.
Write plain text. Do not add labels, headings, section names, markdown or any other links.
Use at most a few emoji. Respond with ONLY the post text.`

var (
	blockTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/blockquote|/tr)\s*/?>`)
	spaceRuns  = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// Config wires a Generator. Timeout defaults to one minute.
type Config struct {
	LLM          llm.Provider
	BrandHashtag string
	Logger       logging.Logger
	Timeout      time.Duration
}

// Generator drafts the raw post text for a content item.
type Generator struct {
	llm      llm.Provider
	brand    string
	logger   logging.Logger
	timeout  time.Duration
	stripper *bluemonday.Policy
}

func New(cfg Config) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = generationTimeout
	}
	return &Generator{
		llm:      cfg.LLM,
		brand:    cfg.BrandHashtag,
		logger:   cfg.Logger,
		timeout:  timeout,
		stripper: bluemonday.StrictPolicy(),
	}
}

// Generate returns the model's draft. Any provider failure or an empty draft
// is an error; the caller treats both as retryable.
func (g *Generator) Generate(ctx context.Context, item *store.ContentItem) (string, error) {
	if g.llm == nil {
		return "", errors.New("LLM provider not configured")
	}
	if item == nil {
		return "", errors.New("no content item")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	stream, err := g.llm.Complete(ctx, g.Messages(item))
	if err != nil {
		return "", fmt.Errorf("request completion: %w", err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}

	if g.logger != nil {
		g.logger.WithFields(logging.Fields{
			"content_item_id": item.ID,
			"chars":           len(text),
		}).Debug("Generated draft")
	}
	return text, nil
}

// Messages builds the system and user prompt pair for item.
func (g *Generator) Messages(item *store.ContentItem) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, g.brand)},
		{Role: "user", Content: g.userPrompt(item)},
	}
}

func (g *Generator) userPrompt(item *store.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(item.Title))
	if excerpt := strings.TrimSpace(g.PlainText(item.Excerpt)); excerpt != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", excerpt)
	}
	fmt.Fprintf(&b, "Canonical URL: %s\n\n", item.CanonicalURL)
	b.WriteString("Article:\n")
	b.WriteString(truncateRunes(g.PlainText(item.Body), maxBodyRunes))
	return b.String()
}

// PlainText strips markup, decodes entities and keeps paragraph breaks.
func (g *Generator) PlainText(markup string) string {
	text := blockTags.ReplaceAllString(markup, "\n")
	text = html.UnescapeString(g.stripper.Sanitize(text))
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
