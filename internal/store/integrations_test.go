package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	fieldcrypt "herald/pkg/crypto"
)

var integrationCols = []string{
	"organization_id", "channel", "access_token", "token_expires_at", "author_urn",
	"status", "last_success_at", "updated_at",
}

func TestIntegrationStoreSaveAndGetEncryptsToken(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	enc, err := fieldcrypt.DeriveFieldEncryptor([]byte("test-field-secret-that-is-long-xx"), "social-access-token")
	if err != nil {
		t.Fatalf("DeriveFieldEncryptor: %v", err)
	}
	s := NewIntegrationStore(db, enc)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	var stored string
	mock.ExpectQuery(`INSERT INTO herald\.social_integrations`).
		WithArgs("org-1", "linkedin", sqlmock.AnyArg(), nil, "urn:li:organization:42").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	in := &Integration{OrganizationID: "org-1", Channel: "linkedin", AccessToken: "tok-plain", AuthorURN: "urn:li:organization:42"}
	if err := s.SaveIntegration(context.Background(), in); err != nil {
		t.Fatalf("SaveIntegration: %v", err)
	}
	if in.Status != IntegrationConnected {
		t.Fatalf("expected connected, got %s", in.Status)
	}

	stored, err = enc.Encrypt("tok-plain")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	mock.ExpectQuery(`FROM herald\.social_integrations\s+WHERE organization_id = \$1 AND channel = \$2`).
		WithArgs("org-1", "linkedin").
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow("org-1", "linkedin", stored, nil, "urn:li:organization:42", "connected", nil, now))

	got, err := s.GetIntegration(context.Background(), "org-1", "linkedin")
	if err != nil {
		t.Fatalf("GetIntegration: %v", err)
	}
	if got.AccessToken != "tok-plain" {
		t.Fatalf("expected decrypted token, got %q", got.AccessToken)
	}
	if got.TokenExpiresAt != nil || got.ExpiredAt(now.Add(1000*time.Hour)) {
		t.Fatal("expected null expiry to mean no expiry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIntegrationStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM herald\.social_integrations`).WillReturnError(sql.ErrNoRows)
	if _, err := NewIntegrationStore(db, nil).GetIntegration(context.Background(), "org-1", "linkedin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegrationStoreCompareAndSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	s := NewIntegrationStore(db, nil)

	mock.ExpectExec(`UPDATE herald\.social_integrations\s+SET status = \$4.*WHERE organization_id = \$1 AND channel = \$2 AND status = \$3`).
		WithArgs("org-1", "linkedin", "connected", "needs_reauth").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE herald\.social_integrations`).
		WithArgs("org-1", "linkedin", "connected", "needs_reauth").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.CompareAndSetStatus(context.Background(), "org-1", "linkedin", IntegrationConnected, IntegrationNeedsReauth)
	if err != nil || !changed {
		t.Fatalf("expected first swap to apply, got %v %v", changed, err)
	}
	changed, err = s.CompareAndSetStatus(context.Background(), "org-1", "linkedin", IntegrationConnected, IntegrationNeedsReauth)
	if err != nil || changed {
		t.Fatalf("expected second swap to be a no-op, got %v %v", changed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIntegrationStoreMarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET last_success_at = \$3`).
		WithArgs("org-1", "linkedin", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewIntegrationStore(db, nil).MarkPublished(context.Background(), "org-1", "linkedin", at); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIntegrationExpiredAt(t *testing.T) {
	exp := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	in := &Integration{TokenExpiresAt: &exp}
	if in.ExpiredAt(exp.Add(-time.Second)) {
		t.Fatal("expected token valid before expiry")
	}
	if !in.ExpiredAt(exp) {
		t.Fatal("expected token expired at expiry instant")
	}
}
