// Package notify emits pipeline outcomes as Kafka events so an external
// trigger can schedule retries.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"herald/internal/pipeline"
	"herald/pkg/kafka"
	"herald/pkg/logging"
	"herald/pkg/validation"
)

const (
	EventSource      = "herald"
	EventTypePrefix  = "social_publication."
	defaultTopic     = "social_publication_events"
	defaultNotifyTTL = 5 * time.Second
	maxErrorRunes    = 2000
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event kafka.Event) error
}

// KafkaNotifier turns pipeline results into social_publication events.
type KafkaNotifier struct {
	producer  EventPublisher
	validator *validation.EventValidator
	topic     string
	tenantID  string
	logger    logging.Logger
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
}

// NewKafkaNotifier publishes to topic, or to the default topic when empty.
func NewKafkaNotifier(producer EventPublisher, topic, tenantID string, logger logging.Logger) *KafkaNotifier {
	if topic == "" {
		topic = defaultTopic
	}
	return &KafkaNotifier{
		producer:  producer,
		validator: validation.NewEventValidator(),
		topic:     topic,
		tenantID:  tenantID,
		logger:    logger,
		timeout:   defaultNotifyTTL,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Notify is best-effort: failures are logged and never reach the caller.
// The event outlives a cancelled request context so late outcomes still land.
func (n *KafkaNotifier) Notify(ctx context.Context, res pipeline.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	log := n.logger.WithFields(logging.Fields{
		"topic":           n.topic,
		"content_item_id": res.ContentItemID,
		"outcome":         res.Outcome,
	})

	payload := payloadFor(res)
	if err := n.validator.ValidatePublication(&payload); err != nil {
		log.WithError(err).Error("Dropping invalid publication event")
		return
	}

	event := n.event(payload)
	key := res.Channel + ":" + res.ContentItemID
	if err := n.producer.PublishEvent(ctx, n.topic, key, event); err != nil {
		log.WithError(err).Warn("Failed to emit publication event")
	}
}

func payloadFor(res pipeline.Result) validation.PublicationPayload {
	errText := res.Error
	if runes := []rune(errText); len(runes) > maxErrorRunes {
		errText = string(runes[:maxErrorRunes])
	}
	return validation.PublicationPayload{
		Channel:        res.Channel,
		ContentItemID:  res.ContentItemID,
		Outcome:        string(res.Outcome),
		Status:         string(res.Status),
		Success:        res.Success(),
		Retryable:      res.Outcome.Retryable(),
		Attempts:       res.Attempts,
		ExternalPostID: res.ExternalPostID,
		CanonicalURL:   res.CanonicalURL,
		Error:          errText,
	}
}

func (n *KafkaNotifier) event(payload validation.PublicationPayload) kafka.Event {
	return kafka.Event{
		ID:        n.newID(),
		Type:      EventTypePrefix + payload.Outcome,
		Source:    EventSource,
		TenantID:  n.tenantID,
		Data:      payload.ToMap(),
		Timestamp: n.now().UTC(),
	}
}
