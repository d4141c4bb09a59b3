package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ContentItem is a published blog post. Rows are owned by the authoring
// surface; this package only reads them.
type ContentItem struct {
	ID           string
	Title        string
	Excerpt      string
	Body         string
	Slug         string
	CanonicalURL string
}

// ContentStore reads published blog posts.
type ContentStore struct {
	db          *sql.DB
	siteBaseURL string
}

// NewContentStore derives missing canonical URLs as siteBaseURL + "/blog/" + slug.
func NewContentStore(db *sql.DB, siteBaseURL string) *ContentStore {
	return &ContentStore{db: db, siteBaseURL: strings.TrimRight(siteBaseURL, "/")}
}

// GetContentItem returns ErrNotFound for unknown ids and for items that have
// neither a canonical URL nor a slug. An empty stored canonical URL is derived
// from the site base URL and slug.
func (s *ContentStore) GetContentItem(ctx context.Context, id string) (*ContentItem, error) {
	var item ContentItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(excerpt, ''), COALESCE(body, ''), COALESCE(slug, ''), COALESCE(canonical_url, '')
		FROM herald.blog_posts
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Title, &item.Excerpt, &item.Body, &item.Slug, &item.CanonicalURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	if item.CanonicalURL == "" {
		if item.Slug == "" {
			return nil, fmt.Errorf("no canonical url or slug: %w", ErrNotFound)
		}
		item.CanonicalURL = s.siteBaseURL + "/blog/" + item.Slug
	}
	return &item, nil
}
