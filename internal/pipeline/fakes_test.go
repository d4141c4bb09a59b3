package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"herald/internal/linkedin"
	"herald/internal/store"
)

type memoryLedger struct {
	mu        sync.Mutex
	records   map[string]*store.PublicationRecord
	finishes  int
	claimErr  error
	finishErr error

	finishCtxErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: make(map[string]*store.PublicationRecord)}
}

func (l *memoryLedger) key(channel, id string) string { return channel + "/" + id }

func (l *memoryLedger) Claim(_ context.Context, channel, id string, force bool, now time.Time, lease time.Duration) (store.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimErr != nil {
		return store.ClaimResult{}, l.claimErr
	}
	rec, ok := l.records[l.key(channel, id)]
	if !ok {
		claimed := now
		rec = &store.PublicationRecord{
			ID: "rec-" + id, Channel: channel, ContentItemID: id,
			Status: store.PublicationInProgress, ClaimedAt: &claimed, CreatedAt: now, UpdatedAt: now,
		}
		l.records[l.key(channel, id)] = rec
		copied := *rec
		return store.ClaimResult{Claimed: true, Record: &copied}, nil
	}
	liveClaim := rec.Status == store.PublicationInProgress && rec.ClaimedAt != nil && rec.ClaimedAt.After(now.Add(-lease))
	if (rec.Status == store.PublicationPosted && !force) || liveClaim {
		copied := *rec
		return store.ClaimResult{Claimed: false, Record: &copied}, nil
	}
	claimed := now
	rec.Status = store.PublicationInProgress
	rec.ClaimedAt = &claimed
	rec.UpdatedAt = now
	copied := *rec
	return store.ClaimResult{Claimed: true, Record: &copied}, nil
}

func (l *memoryLedger) Finish(ctx context.Context, channel, id string, p store.FinishParams) (*store.PublicationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finishCtxErr = ctx.Err()
	if l.finishErr != nil {
		return nil, l.finishErr
	}
	l.finishes++
	rec, ok := l.records[l.key(channel, id)]
	if !ok {
		rec = &store.PublicationRecord{ID: "rec-" + id, Channel: channel, ContentItemID: id, CreatedAt: p.At}
		l.records[l.key(channel, id)] = rec
	}
	rec.Status = p.Status
	rec.LastOutcome = p.Outcome
	rec.Attempts++
	if p.GeneratedText != "" {
		rec.GeneratedText = p.GeneratedText
	}
	if p.ExternalPostID != "" {
		rec.ExternalPostID = p.ExternalPostID
	}
	if p.CanonicalURL != "" {
		rec.CanonicalURL = p.CanonicalURL
	}
	rec.ErrorMessage = p.ErrorMessage
	rec.ClaimedAt = nil
	rec.UpdatedAt = p.At
	copied := *rec
	return &copied, nil
}

func (l *memoryLedger) get(channel, id string) *store.PublicationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[l.key(channel, id)]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

type memoryContent struct {
	items map[string]*store.ContentItem
	err   error
}

func (c *memoryContent) GetContentItem(_ context.Context, id string) (*store.ContentItem, error) {
	if c.err != nil {
		return nil, c.err
	}
	item, ok := c.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

type memoryIntegrations struct {
	mu          sync.Mutex
	integration *store.Integration
	published   []time.Time
	casCalls    int
}

func (s *memoryIntegrations) GetIntegration(_ context.Context, orgID, channel string) (*store.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.integration == nil || s.integration.OrganizationID != orgID || s.integration.Channel != channel {
		return nil, store.ErrNotFound
	}
	copied := *s.integration
	return &copied, nil
}

func (s *memoryIntegrations) CompareAndSetStatus(_ context.Context, orgID, channel string, expected, next store.IntegrationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.integration == nil || s.integration.Status != expected {
		return false, nil
	}
	s.integration.Status = next
	return true, nil
}

func (s *memoryIntegrations) MarkPublished(_ context.Context, _, _ string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, at)
	return nil
}

func (s *memoryIntegrations) status() store.IntegrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.integration.Status
}

type stubGenerator struct {
	text  string
	err   error
	calls int32
}

func (g *stubGenerator) Generate(context.Context, *store.ContentItem) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	return g.text, g.err
}

type stubPublisher struct {
	mu       sync.Mutex
	requests []linkedin.PostRequest
	postID   string
	err      error
	delay    time.Duration
}

func (p *stubPublisher) CreatePost(_ context.Context, req linkedin.PostRequest) (*linkedin.PostResult, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &linkedin.PostResult{PostID: p.postID}, nil
}

func (p *stubPublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []Result
}

func (n *recordingNotifier) Notify(_ context.Context, res Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
}

var errStorage = errors.New("connection reset")
