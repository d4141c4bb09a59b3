package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublicationStatus is the ledger state of one content item on one channel.
type PublicationStatus string

const (
	PublicationNotStarted  PublicationStatus = "not_started"
	PublicationInProgress  PublicationStatus = "in_progress"
	PublicationPosted      PublicationStatus = "posted"
	PublicationFailed      PublicationStatus = "failed"
	PublicationNeedsReauth PublicationStatus = "needs_reauth"
)

// PublicationRecord is the ledger row for one content item on one channel.
type PublicationRecord struct {
	ID             string            `json:"id"`
	Channel        string            `json:"channel"`
	ContentItemID  string            `json:"content_item_id"`
	Status         PublicationStatus `json:"status"`
	LastOutcome    string            `json:"last_outcome,omitempty"`
	Attempts       int               `json:"attempts"`
	GeneratedText  string            `json:"generated_text,omitempty"`
	ExternalPostID string            `json:"external_post_id,omitempty"`
	CanonicalURL   string            `json:"canonical_url,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ClaimedAt      *time.Time        `json:"claimed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ClaimResult carries the row as the claim left it. When Claimed is false,
// Record is the current row so the caller can tell posted from in_progress.
type ClaimResult struct {
	Claimed bool
	Record  *PublicationRecord
}

// FinishParams describes the terminal state of one attempt. Empty strings keep
// the stored value, except ErrorMessage which is always replaced.
type FinishParams struct {
	Status         PublicationStatus
	Outcome        string
	GeneratedText  string
	ExternalPostID string
	CanonicalURL   string
	ErrorMessage   string
	At             time.Time
}

const publicationColumns = `id, channel, content_item_id, status, COALESCE(last_outcome, ''), attempts,
	COALESCE(generated_text, ''), COALESCE(external_post_id, ''), COALESCE(canonical_url, ''),
	COALESCE(error_message, ''), claimed_at, created_at, updated_at`

// PublicationStore is the publication ledger. One row per channel and item.
type PublicationStore struct {
	db    *sql.DB
	newID func() string
}

func NewPublicationStore(db *sql.DB) *PublicationStore {
	return &PublicationStore{db: db, newID: func() string { return uuid.New().String() }}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPublication(row rowScanner) (*PublicationRecord, error) {
	var (
		rec       PublicationRecord
		status    string
		claimedAt sql.NullTime
	)
	if err := row.Scan(
		&rec.ID, &rec.Channel, &rec.ContentItemID, &status, &rec.LastOutcome, &rec.Attempts,
		&rec.GeneratedText, &rec.ExternalPostID, &rec.CanonicalURL,
		&rec.ErrorMessage, &claimedAt, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = PublicationStatus(status)
	rec.ClaimedAt = nullableTime(claimedAt)
	return &rec, nil
}

// Get returns ErrNotFound when the item was never claimed.
func (s *PublicationStore) Get(ctx context.Context, channel, contentItemID string) (*PublicationRecord, error) {
	rec, err := scanPublication(s.db.QueryRowContext(ctx, `
		SELECT `+publicationColumns+`
		FROM herald.social_publications
		WHERE channel = $1 AND content_item_id = $2
	`, channel, contentItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get publication: %w", err)
	}
	return rec, nil
}

// Claim atomically moves the record to in_progress. The upsert only takes the
// row when it is not posted (unless force) and not held by a claim younger
// than lease, so at most one caller wins per content item.
func (s *PublicationStore) Claim(ctx context.Context, channel, contentItemID string, force bool, now time.Time, lease time.Duration) (ClaimResult, error) {
	rec, err := scanPublication(s.db.QueryRowContext(ctx, `
		INSERT INTO herald.social_publications (id, channel, content_item_id, status, attempts, claimed_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'in_progress', 0, $4, $4, $4)
		ON CONFLICT (channel, content_item_id) DO UPDATE SET
			status = 'in_progress',
			claimed_at = EXCLUDED.claimed_at,
			updated_at = EXCLUDED.updated_at
		WHERE (social_publications.status <> 'posted' OR $5)
			AND NOT (social_publications.status = 'in_progress' AND social_publications.claimed_at > $6)
		RETURNING `+publicationColumns,
		s.newID(), channel, contentItemID, now, force, now.Add(-lease),
	))
	if err == nil {
		return ClaimResult{Claimed: true, Record: rec}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ClaimResult{}, fmt.Errorf("claim publication: %w", err)
	}

	current, err := s.Get(ctx, channel, contentItemID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("read contended publication: %w", err)
	}
	return ClaimResult{Claimed: false, Record: current}, nil
}

// Finish records the outcome of an attempt and increments attempts.
func (s *PublicationStore) Finish(ctx context.Context, channel, contentItemID string, p FinishParams) (*PublicationRecord, error) {
	rec, err := scanPublication(s.db.QueryRowContext(ctx, `
		INSERT INTO herald.social_publications (
			id, channel, content_item_id, status, last_outcome, attempts,
			generated_text, external_post_id, canonical_url, error_message, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 1, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $10)
		ON CONFLICT (channel, content_item_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_outcome = EXCLUDED.last_outcome,
			attempts = social_publications.attempts + 1,
			generated_text = COALESCE(EXCLUDED.generated_text, social_publications.generated_text),
			external_post_id = COALESCE(EXCLUDED.external_post_id, social_publications.external_post_id),
			canonical_url = COALESCE(EXCLUDED.canonical_url, social_publications.canonical_url),
			error_message = EXCLUDED.error_message,
			claimed_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING `+publicationColumns,
		s.newID(), channel, contentItemID, string(p.Status), p.Outcome,
		p.GeneratedText, p.ExternalPostID, p.CanonicalURL, p.ErrorMessage, p.At,
	))
	if err != nil {
		return nil, fmt.Errorf("finish publication: %w", err)
	}
	return rec, nil
}
