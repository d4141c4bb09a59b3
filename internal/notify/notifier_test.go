package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"herald/internal/pipeline"
	"herald/internal/store"
	"herald/pkg/kafka"
)

type capturePublisher struct {
	topic  string
	key    string
	event  kafka.Event
	ctxErr error
	err    error
}

func (p *capturePublisher) PublishEvent(ctx context.Context, topic, key string, event kafka.Event) error {
	p.topic, p.key, p.event = topic, key, event
	p.ctxErr = ctx.Err()
	return p.err
}

func TestNotifyBuildsEvent(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pub := &capturePublisher{}
	n := NewKafkaNotifier(pub, "", "org-1", logger)
	n.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	n.newID = func() string { return "evt-1" }

	n.Notify(context.Background(), pipeline.Result{
		Channel:       "linkedin",
		ContentItemID: "post-1",
		Outcome:       pipeline.OutcomeRateLimited,
		Status:        store.PublicationFailed,
		Attempts:      2,
		CanonicalURL:  "https://example.com/blog/p",
		Error:         "rate_limited: linkedin api returned status 429",
	})

	if pub.topic != "social_publication_events" || pub.key != "linkedin:post-1" {
		t.Fatalf("unexpected topic/key %q %q", pub.topic, pub.key)
	}
	e := pub.event
	if e.ID != "evt-1" || e.Type != "social_publication.rate_limited" || e.Source != "herald" || e.TenantID != "org-1" {
		t.Fatalf("unexpected envelope %+v", e)
	}
	if e.Data["retryable"] != true || e.Data["success"] != false || e.Data["attempts"] != 2 {
		t.Fatalf("unexpected data %+v", e.Data)
	}
	if _, ok := e.Data["external_post_id"]; ok {
		t.Fatal("empty post id should be omitted")
	}
}

func TestNotifySurvivesCancelledContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pub := &capturePublisher{}
	n := NewKafkaNotifier(pub, "events", "", logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, pipeline.Result{Channel: "linkedin", ContentItemID: "p", Outcome: pipeline.OutcomeRateLimited})

	if pub.ctxErr != nil {
		t.Fatalf("produce context should not inherit cancellation, got %v", pub.ctxErr)
	}
}

func TestNotifyLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewKafkaNotifier(&capturePublisher{err: errors.New("broker down")}, "events", "", logger)

	n.Notify(context.Background(), pipeline.Result{Channel: "linkedin", ContentItemID: "p", Outcome: pipeline.OutcomeNetworkError})

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning, got %+v", entry)
	}
}

func TestNotifyDropsInvalidEvents(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pub := &capturePublisher{}
	n := NewKafkaNotifier(pub, "events", "", logger)

	n.Notify(context.Background(), pipeline.Result{Channel: "linkedin", Outcome: pipeline.OutcomePosted})

	if pub.topic != "" {
		t.Fatal("invalid event should not be produced")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected error log, got %+v", entry)
	}
}

func TestNotifyTruncatesLongErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pub := &capturePublisher{}
	n := NewKafkaNotifier(pub, "events", "", logger)

	n.Notify(context.Background(), pipeline.Result{
		Channel:       "linkedin",
		ContentItemID: "p",
		Outcome:       pipeline.OutcomePlatformRejected,
		Error:         strings.Repeat("e", 5000),
	})

	if got, _ := pub.event.Data["error"].(string); len(got) != maxErrorRunes {
		t.Fatalf("expected error truncated to %d, got %d", maxErrorRunes, len(got))
	}
}

func TestNotifyEmitsPostedWithoutPostID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pub := &capturePublisher{}
	n := NewKafkaNotifier(pub, "events", "", logger)

	n.Notify(context.Background(), pipeline.Result{
		Channel:       "linkedin",
		ContentItemID: "p",
		Outcome:       pipeline.OutcomePosted,
		Status:        store.PublicationPosted,
		Attempts:      1,
	})

	if pub.event.Type != "social_publication.posted" {
		t.Fatalf("posted event should be produced, got %+v", pub.event)
	}
	if entry := hook.LastEntry(); entry != nil && entry.Level == logrus.ErrorLevel {
		t.Fatalf("unexpected error log %q", entry.Message)
	}
}
