package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fieldcrypt "herald/pkg/crypto"
)

// IntegrationStatus gates publishing; only connected integrations post.
type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationNeedsReauth  IntegrationStatus = "needs_reauth"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

// Integration is the stored platform session for one organization and channel.
type Integration struct {
	OrganizationID string
	Channel        string
	AccessToken    string
	TokenExpiresAt *time.Time // nil = no expiry
	AuthorURN      string
	Status         IntegrationStatus
	LastSuccessAt  *time.Time
	UpdatedAt      time.Time
}

// ExpiredAt reports whether the token is past its expiry at now.
func (i *Integration) ExpiredAt(now time.Time) bool {
	return i.TokenExpiresAt != nil && !now.Before(*i.TokenExpiresAt)
}

// IntegrationStore reads and writes social_integrations, encrypting access
// tokens at rest when an encryptor is set.
type IntegrationStore struct {
	db  *sql.DB
	enc *fieldcrypt.FieldEncryptor // nil = tokens stored as plaintext
}

func NewIntegrationStore(db *sql.DB, enc *fieldcrypt.FieldEncryptor) *IntegrationStore {
	return &IntegrationStore{db: db, enc: enc}
}

func (s *IntegrationStore) encryptField(plaintext string) (string, error) {
	if s.enc == nil {
		return plaintext, nil
	}
	return s.enc.Encrypt(plaintext)
}

func (s *IntegrationStore) decryptField(stored string) (string, error) {
	if s.enc == nil {
		return stored, nil
	}
	return s.enc.Decrypt(stored)
}

// GetIntegration returns ErrNotFound when no row exists.
func (s *IntegrationStore) GetIntegration(ctx context.Context, orgID, channel string) (*Integration, error) {
	var (
		in          Integration
		status      string
		expiresAt   sql.NullTime
		lastSuccess sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT organization_id, channel, access_token, token_expires_at, author_urn, status, last_success_at, updated_at
		FROM herald.social_integrations
		WHERE organization_id = $1 AND channel = $2
	`, orgID, channel).Scan(
		&in.OrganizationID, &in.Channel, &in.AccessToken, &expiresAt, &in.AuthorURN,
		&status, &lastSuccess, &in.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	in.Status = IntegrationStatus(status)
	in.TokenExpiresAt = nullableTime(expiresAt)
	in.LastSuccessAt = nullableTime(lastSuccess)
	if in.AccessToken, err = s.decryptField(in.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	return &in, nil
}

// SaveIntegration stores a freshly issued session and marks it connected.
func (s *IntegrationStore) SaveIntegration(ctx context.Context, in *Integration) error {
	encrypted, err := s.encryptField(in.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO herald.social_integrations (organization_id, channel, access_token, token_expires_at, author_urn, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'connected', NOW())
		ON CONFLICT (organization_id, channel) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			author_urn = EXCLUDED.author_urn,
			status = 'connected',
			updated_at = NOW()
		RETURNING updated_at
	`, in.OrganizationID, in.Channel, encrypted, timeArg(in.TokenExpiresAt), in.AuthorURN).Scan(&in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save integration: %w", err)
	}
	in.Status = IntegrationConnected
	return nil
}

// CompareAndSetStatus moves the integration to next only while it is still in
// expected. It reports whether the row changed.
func (s *IntegrationStore) CompareAndSetStatus(ctx context.Context, orgID, channel string, expected, next IntegrationStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.social_integrations
		SET status = $4, updated_at = NOW()
		WHERE organization_id = $1 AND channel = $2 AND status = $3
	`, orgID, channel, string(expected), string(next))
	if err != nil {
		return false, fmt.Errorf("update integration status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update integration status: %w", err)
	}
	return n == 1, nil
}

// MarkPublished records the time of the last successful post.
func (s *IntegrationStore) MarkPublished(ctx context.Context, orgID, channel string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE herald.social_integrations
		SET last_success_at = $3, updated_at = NOW()
		WHERE organization_id = $1 AND channel = $2
	`, orgID, channel, at)
	if err != nil {
		return fmt.Errorf("mark integration published: %w", err)
	}
	return nil
}
