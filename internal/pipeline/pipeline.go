// Package pipeline publishes one content item to one social channel at most
// once: claim the ledger row, load the post and the platform session, draft
// and normalize the copy, publish, and record the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"herald/internal/linkedin"
	"herald/internal/normalize"
	"herald/internal/store"
	"herald/pkg/clients"
	"herald/pkg/logging"
)

const (
	DefaultClaimLease = 10 * time.Minute
	persistTimeout    = 10 * time.Second
)

// Ledger is the publication table. Claim must be atomic so two concurrent
// invocations never both win.
type Ledger interface {
	Claim(ctx context.Context, channel, contentItemID string, force bool, now time.Time, lease time.Duration) (store.ClaimResult, error)
	Finish(ctx context.Context, channel, contentItemID string, p store.FinishParams) (*store.PublicationRecord, error)
}

// ContentRepository returns store.ErrNotFound when the item cannot be published.
type ContentRepository interface {
	GetContentItem(ctx context.Context, id string) (*store.ContentItem, error)
}

// IntegrationStore holds the platform session. CompareAndSetStatus reports
// false when the stored status no longer matches expected.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, orgID, channel string) (*store.Integration, error)
	CompareAndSetStatus(ctx context.Context, orgID, channel string, expected, next store.IntegrationStatus) (bool, error)
	MarkPublished(ctx context.Context, orgID, channel string, at time.Time) error
}

type CopyGenerator interface {
	Generate(ctx context.Context, item *store.ContentItem) (string, error)
}

// PostNormalizer also reports which rules changed the text.
type PostNormalizer interface {
	NormalizeWithReport(raw string, p normalize.Policy) (string, []string)
}

// Publisher makes exactly one platform call per invocation.
type Publisher interface {
	CreatePost(ctx context.Context, req linkedin.PostRequest) (*linkedin.PostResult, error)
}

// Notifier receives every persisted outcome. Implementations must not block
// the caller for long and must swallow their own errors.
type Notifier interface {
	Notify(ctx context.Context, res Result)
}

// Request is one external invocation.
type Request struct {
	ContentItemID string
	Force         bool
}

// Result is what the caller sees for every invocation, successful or not.
type Result struct {
	Channel        string
	ContentItemID  string
	Outcome        Outcome
	AlreadyPosted  bool
	ExternalPostID string
	CanonicalURL   string
	Status         store.PublicationStatus
	Attempts       int
	Error          string
}

func (r Result) Success() bool {
	return r.Outcome.Success()
}

// Config wires a Pipeline. Normalizer, Notifier, Metrics, ClaimLease and Now
// may be left zero.
type Config struct {
	Channel        string
	OrganizationID string

	Ledger       Ledger
	Content      ContentRepository
	Integrations IntegrationStore
	Generator    CopyGenerator
	Normalizer   PostNormalizer
	Publisher    Publisher
	Notifier     Notifier // optional
	Metrics      *Metrics // optional

	// Policy carries everything but CanonicalURL, which comes from each item.
	Policy     normalize.Policy
	ClaimLease time.Duration

	Logger logging.Logger
	Now    func() time.Time
}

// Pipeline is safe for concurrent use; the ledger claim serializes work per item.
type Pipeline struct {
	channel      string
	orgID        string
	ledger       Ledger
	content      ContentRepository
	integrations IntegrationStore
	generator    CopyGenerator
	normalizer   PostNormalizer
	publisher    Publisher
	notifier     Notifier
	metrics      *Metrics
	policy       normalize.Policy
	lease        time.Duration
	logger       logging.Logger
	now          func() time.Time
}

// New reports every missing required field at once.
func New(cfg Config) (*Pipeline, error) {
	var missing []string
	if cfg.Channel == "" {
		missing = append(missing, "channel")
	}
	if cfg.OrganizationID == "" {
		missing = append(missing, "organization id")
	}
	if cfg.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if cfg.Content == nil {
		missing = append(missing, "content repository")
	}
	if cfg.Integrations == nil {
		missing = append(missing, "integration store")
	}
	if cfg.Generator == nil {
		missing = append(missing, "copy generator")
	}
	if cfg.Publisher == nil {
		missing = append(missing, "publisher")
	}
	if cfg.Logger == nil {
		missing = append(missing, "logger")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing %s", strings.Join(missing, ", "))
	}

	p := &Pipeline{
		channel:      cfg.Channel,
		orgID:        cfg.OrganizationID,
		ledger:       cfg.Ledger,
		content:      cfg.Content,
		integrations: cfg.Integrations,
		generator:    cfg.Generator,
		normalizer:   cfg.Normalizer,
		publisher:    cfg.Publisher,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		policy:       cfg.Policy,
		lease:        cfg.ClaimLease,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if p.normalizer == nil {
		p.normalizer = normalize.New()
	}
	if p.lease <= 0 {
		p.lease = DefaultClaimLease
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// attempt is the state one invocation accumulates before it is finished.
type attempt struct {
	req    Request
	item   *store.ContentItem
	text   string
	postID string
}

// Publish runs the pipeline for one content item. The returned error is a
// *Failure for every outcome except posted and skipped_already_posted; the
// Result is always filled in.
func (p *Pipeline) Publish(ctx context.Context, req Request) (Result, error) {
	started := p.now()
	res, err := p.run(ctx, req)
	res.Channel = p.channel
	res.ContentItemID = req.ContentItemID
	if err != nil {
		res.Outcome = OutcomeOf(err)
		res.Error = err.Error()
	}
	p.metrics.observe(p.channel, res.Outcome, p.now().Sub(started))

	entry := p.logger.WithFields(logging.Fields{
		"channel":         p.channel,
		"content_item_id": req.ContentItemID,
		"outcome":         res.Outcome,
		"attempts":        res.Attempts,
		"force":           req.Force,
	})
	switch {
	case err == nil:
		entry.Info("Publish finished")
	case res.Outcome.Retryable():
		entry.WithError(err).Warn("Publish did not complete")
	default:
		entry.WithError(err).Error("Publish failed")
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ContentItemID) == "" {
		return Result{Outcome: OutcomeContentMissing}, fail(OutcomeContentMissing, errors.New("content item id is required"))
	}

	claim, err := p.ledger.Claim(ctx, p.channel, req.ContentItemID, req.Force, p.now(), p.lease)
	if err != nil {
		return Result{}, fail(OutcomeInternalError, err)
	}
	if !claim.Claimed {
		return p.unclaimed(claim.Record)
	}

	a := &attempt{req: req}
	postErr := p.attempt(ctx, a)
	return p.finish(ctx, a, postErr)
}

// unclaimed explains why the claim was refused without writing anything.
func (p *Pipeline) unclaimed(rec *store.PublicationRecord) (Result, error) {
	if rec != nil && rec.Status == store.PublicationPosted {
		return Result{
			Outcome:        OutcomeSkippedAlreadyPosted,
			AlreadyPosted:  true,
			ExternalPostID: rec.ExternalPostID,
			CanonicalURL:   rec.CanonicalURL,
			Status:         rec.Status,
			Attempts:       rec.Attempts,
		}, nil
	}
	res := Result{Outcome: OutcomePublishInProgress, Status: store.PublicationInProgress}
	if rec != nil {
		res.Status = rec.Status
		res.Attempts = rec.Attempts
		res.CanonicalURL = rec.CanonicalURL
	}
	return res, fail(OutcomePublishInProgress, errors.New("another invocation holds the claim"))
}

func (p *Pipeline) attempt(ctx context.Context, a *attempt) error {
	item, err := p.content.GetContentItem(ctx, a.req.ContentItemID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(OutcomeContentMissing, fmt.Errorf("content item %s: %w", a.req.ContentItemID, err))
	}
	if err != nil {
		return fail(OutcomeInternalError, fmt.Errorf("load content item: %w", err))
	}
	a.item = item

	integration, err := p.resolveIntegration(ctx)
	if err != nil {
		return err
	}

	raw, err := p.generator.Generate(ctx, item)
	if err != nil {
		return fail(OutcomeGenerationFailed, err)
	}

	policy := p.policy
	policy.CanonicalURL = item.CanonicalURL
	text, changed := p.normalizer.NormalizeWithReport(raw, policy)
	a.text = text
	p.metrics.rules(changed)
	if len(changed) > 0 {
		p.logger.WithFields(logging.Fields{
			"content_item_id": item.ID,
			"rules":           changed,
		}).Debug("Normalized draft")
	}

	posted, err := p.publisher.CreatePost(ctx, linkedin.PostRequest{
		AccessToken: integration.AccessToken,
		AuthorURN:   integration.AuthorURN,
		Text:        text,
	})
	if err != nil {
		return p.classifyPublishError(ctx, err)
	}
	a.postID = posted.PostID
	return nil
}

// resolveIntegration fails before any network call when the session cannot
// be used.
func (p *Pipeline) resolveIntegration(ctx context.Context) (*store.Integration, error) {
	integration, err := p.integrations.GetIntegration(ctx, p.orgID, p.channel)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(OutcomeNeedsReauth, fmt.Errorf("no %s integration for organization %s", p.channel, p.orgID))
	}
	if err != nil {
		return nil, fail(OutcomeInternalError, fmt.Errorf("load integration: %w", err))
	}

	switch {
	case integration.Status != store.IntegrationConnected:
		return nil, fail(OutcomeNeedsReauth, fmt.Errorf("integration status is %s", integration.Status))
	case integration.AccessToken == "":
		return nil, fail(OutcomeNeedsReauth, errors.New("integration has no access token"))
	case integration.ExpiredAt(p.now()):
		p.flipToNeedsReauth(ctx, "token expired")
		return nil, fail(OutcomeNeedsReauth, fmt.Errorf("access token expired at %s", integration.TokenExpiresAt.UTC().Format(time.RFC3339)))
	}
	return integration, nil
}

func (p *Pipeline) classifyPublishError(ctx context.Context, err error) error {
	switch linkedin.Classify(err) {
	case linkedin.KindAuth:
		p.flipToNeedsReauth(ctx, "platform rejected credentials")
		return fail(OutcomeNeedsReauth, err)
	case linkedin.KindRateLimited:
		return fail(OutcomeRateLimited, err)
	case linkedin.KindRejected:
		return fail(OutcomePlatformRejected, err)
	default:
		if clients.IsCircuitOpen(err) {
			return fail(OutcomeNetworkError, fmt.Errorf("%s unavailable, circuit open: %w", p.channel, err))
		}
		return fail(OutcomeNetworkError, err)
	}
}

// flipToNeedsReauth moves the integration off connected. Losing the race to
// another writer is fine; the outcome is needs_reauth either way.
func (p *Pipeline) flipToNeedsReauth(ctx context.Context, reason string) {
	log := p.logger.WithFields(logging.Fields{
		"channel":         p.channel,
		"organization_id": p.orgID,
		"reason":          reason,
	})
	changed, err := p.integrations.CompareAndSetStatus(ctx, p.orgID, p.channel, store.IntegrationConnected, store.IntegrationNeedsReauth)
	if err != nil {
		log.WithError(err).Warn("Failed to mark integration as needing re-auth")
		return
	}
	if changed {
		p.metrics.statusChanged(p.channel, string(store.IntegrationNeedsReauth))
		log.Warn("Integration marked as needing re-auth")
	}
}

func statusFor(outcome Outcome) store.PublicationStatus {
	switch outcome {
	case OutcomePosted:
		return store.PublicationPosted
	case OutcomeNeedsReauth:
		return store.PublicationNeedsReauth
	default:
		return store.PublicationFailed
	}
}

// finish persists the attempt. A storage failure here turns any outcome into
// internal_error; a live post id is still reported. Persistence runs even if
// the caller has gone away, otherwise the claim would sit until its lease ends.
func (p *Pipeline) finish(ctx context.Context, a *attempt, postErr error) (Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	outcome := OutcomeOf(postErr)
	at := p.now()

	params := store.FinishParams{
		Status:         statusFor(outcome),
		Outcome:        string(outcome),
		GeneratedText:  a.text,
		ExternalPostID: a.postID,
		At:             at,
	}
	if a.item != nil {
		params.CanonicalURL = a.item.CanonicalURL
	}
	if postErr != nil {
		params.ErrorMessage = postErr.Error()
	}

	res := Result{
		Outcome:        outcome,
		ExternalPostID: a.postID,
		CanonicalURL:   params.CanonicalURL,
		Status:         params.Status,
	}

	rec, err := p.ledger.Finish(ctx, p.channel, a.req.ContentItemID, params)
	if err != nil {
		cause := fmt.Errorf("record %s outcome: %w", outcome, err)
		if postErr != nil {
			cause = fmt.Errorf("record %s outcome: %w (after: %v)", outcome, err, postErr)
		}
		return res, fail(OutcomeInternalError, cause)
	}
	res.Status = rec.Status
	res.Attempts = rec.Attempts
	if res.CanonicalURL == "" {
		res.CanonicalURL = rec.CanonicalURL
	}

	if outcome == OutcomePosted {
		if err := p.integrations.MarkPublished(ctx, p.orgID, p.channel, at); err != nil {
			p.logger.WithError(err).WithField("content_item_id", a.req.ContentItemID).Warn("Failed to record last successful publish")
		}
	}

	if p.notifier != nil {
		notified := res
		notified.Channel = p.channel
		notified.ContentItemID = a.req.ContentItemID
		if postErr != nil {
			notified.Error = postErr.Error()
		}
		p.notifier.Notify(ctx, notified)
	}
	return res, postErr
}
