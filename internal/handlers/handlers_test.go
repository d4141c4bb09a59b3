package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"herald/internal/pipeline"
	"herald/internal/store"
)

type publisherStub struct {
	req pipeline.Request
	res pipeline.Result
	err error
}

func (s *publisherStub) Publish(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	s.req = req
	return s.res, s.err
}

type recordsStub struct {
	rec *store.PublicationRecord
	err error
}

func (s *recordsStub) Get(context.Context, string, string) (*store.PublicationRecord, error) {
	return s.rec, s.err
}

type integrationsStub struct {
	saved *store.Integration
	err   error
}

func (s *integrationsStub) SaveIntegration(_ context.Context, in *store.Integration) error {
	if s.err != nil {
		return s.err
	}
	in.Status = store.IntegrationConnected
	in.UpdatedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.saved = in
	return nil
}

type handlerHarness struct {
	router       *gin.Engine
	publisher    *publisherStub
	records      *recordsStub
	integrations *integrationsStub
}

func setupHandlers() *handlerHarness {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	h := &handlerHarness{
		router:       gin.New(),
		publisher:    &publisherStub{},
		records:      &recordsStub{},
		integrations: &integrationsStub{},
	}
	pubs := NewPublicationHandler(h.publisher, h.records, "linkedin", logger)
	h.router.POST("/api/publications", pubs.Publish)
	h.router.GET("/api/publications/:content_item_id", pubs.Get)
	h.router.PUT("/api/integration", NewIntegrationHandler(h.integrations, "org-1", "linkedin", logger).Put)
	return h
}

func (h *handlerHarness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func decodePublish(t *testing.T, resp *httptest.ResponseRecorder) PublishResponse {
	t.Helper()
	var out PublishResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPublishPosted(t *testing.T) {
	h := setupHandlers()
	h.publisher.res = pipeline.Result{
		Outcome:        pipeline.OutcomePosted,
		ExternalPostID: "urn:post:123",
		CanonicalURL:   "https://example.com/blog/p",
		Attempts:       1,
	}

	resp := h.do(http.MethodPost, "/api/publications", `{"content_item_id":" P1 "}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	out := decodePublish(t, resp)
	if !out.Success || out.Status != "posted" || out.ExternalPostID != "urn:post:123" || out.AlreadyPosted {
		t.Fatalf("unexpected response %+v", out)
	}
	if h.publisher.req.ContentItemID != "P1" || h.publisher.req.Force {
		t.Fatalf("unexpected pipeline request %+v", h.publisher.req)
	}
}

func TestPublishAlreadyPosted(t *testing.T) {
	h := setupHandlers()
	h.publisher.res = pipeline.Result{
		Outcome:        pipeline.OutcomeSkippedAlreadyPosted,
		AlreadyPosted:  true,
		ExternalPostID: "urn:post:123",
	}
	resp := h.do(http.MethodPost, "/api/publications", `{"content_item_id":"P1","force":false}`)
	out := decodePublish(t, resp)
	if resp.Code != http.StatusOK || !out.Success || !out.AlreadyPosted || out.ExternalPostID != "urn:post:123" {
		t.Fatalf("unexpected response %d %+v", resp.Code, out)
	}
}

func TestPublishFailureStatusCodes(t *testing.T) {
	tests := []struct {
		outcome pipeline.Outcome
		code    int
	}{
		{pipeline.OutcomeContentMissing, http.StatusNotFound},
		{pipeline.OutcomeNeedsReauth, http.StatusConflict},
		{pipeline.OutcomePublishInProgress, http.StatusConflict},
		{pipeline.OutcomeRateLimited, http.StatusTooManyRequests},
		{pipeline.OutcomeGenerationFailed, http.StatusServiceUnavailable},
		{pipeline.OutcomeNetworkError, http.StatusServiceUnavailable},
		{pipeline.OutcomePlatformRejected, http.StatusUnprocessableEntity},
		{pipeline.OutcomeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			h := setupHandlers()
			err := &pipeline.Failure{Outcome: tt.outcome, Err: errors.New("boom")}
			h.publisher.res = pipeline.Result{Outcome: tt.outcome, Error: err.Error()}
			h.publisher.err = err

			resp := h.do(http.MethodPost, "/api/publications", `{"content_item_id":"P1","force":true}`)
			if resp.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, resp.Code)
			}
			out := decodePublish(t, resp)
			if out.Success || out.Status != string(tt.outcome) || out.Error == "" {
				t.Fatalf("unexpected response %+v", out)
			}
			if out.Retryable != tt.outcome.Retryable() {
				t.Fatalf("retryable mismatch %+v", out)
			}
			if !h.publisher.req.Force {
				t.Fatal("force flag not passed through")
			}
		})
	}
}

func TestPublishRejectsBadRequests(t *testing.T) {
	h := setupHandlers()
	for _, body := range []string{"{bad json", `{"content_item_id":"  "}`, `{}`} {
		if resp := h.do(http.MethodPost, "/api/publications", body); resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, resp.Code)
		}
	}
	if h.publisher.req.ContentItemID != "" {
		t.Fatal("pipeline should not run for bad requests")
	}
}

func TestGetPublication(t *testing.T) {
	h := setupHandlers()
	h.records.rec = &store.PublicationRecord{ContentItemID: "P1", Status: store.PublicationPosted, ExternalPostID: "urn:post:123", Attempts: 1}

	resp := h.do(http.MethodGet, "/api/publications/P1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var rec store.PublicationRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Status != store.PublicationPosted || rec.ExternalPostID != "urn:post:123" {
		t.Fatalf("unexpected record %+v", rec)
	}

	h.records.rec, h.records.err = nil, store.ErrNotFound
	if resp := h.do(http.MethodGet, "/api/publications/P2", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	h.records.err = errors.New("db down")
	if resp := h.do(http.MethodGet, "/api/publications/P2", ""); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestPutIntegration(t *testing.T) {
	h := setupHandlers()
	resp := h.do(http.MethodPut, "/api/integration", `{"access_token":"tok","author_urn":"urn:li:organization:42","expires_at":"2026-05-01T00:00:00Z"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	saved := h.integrations.saved
	if saved == nil || saved.OrganizationID != "org-1" || saved.Channel != "linkedin" || saved.AccessToken != "tok" {
		t.Fatalf("unexpected saved integration %+v", saved)
	}
	if saved.TokenExpiresAt == nil || !saved.TokenExpiresAt.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", saved.TokenExpiresAt)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("tok\"")) {
		t.Fatal("access token must not be echoed")
	}
}

func TestPutIntegrationValidation(t *testing.T) {
	h := setupHandlers()
	for _, body := range []string{`{"author_urn":"urn:li:organization:1"}`, `{"access_token":"t","author_urn":"org-1"}`, "nope"} {
		if resp := h.do(http.MethodPut, "/api/integration", body); resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, resp.Code)
		}
	}

	h.integrations.err = errors.New("db down")
	resp := h.do(http.MethodPut, "/api/integration", `{"access_token":"t","author_urn":"urn:li:organization:1"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
