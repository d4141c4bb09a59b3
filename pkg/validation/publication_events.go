// Package validation checks event payloads before they are produced to Kafka.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PublicationPayload is the data block of a social_publication.* event.
type PublicationPayload struct {
	Channel        string `json:"channel" validate:"required,oneof=linkedin"`
	ContentItemID  string `json:"content_item_id" validate:"required"`
	Outcome        string `json:"outcome" validate:"required,oneof=posted skipped_already_posted publish_in_progress content_missing needs_reauth generation_failed rate_limited platform_rejected network_error internal_error"`
	Status         string `json:"status" validate:"omitempty,oneof=not_started in_progress posted failed needs_reauth"`
	Success        bool   `json:"success"`
	Retryable      bool   `json:"retryable"`
	Attempts       int    `json:"attempts" validate:"gte=0"`
	ExternalPostID string `json:"external_post_id,omitempty"`
	CanonicalURL   string `json:"canonical_url,omitempty" validate:"omitempty,url"`
	Error          string `json:"error,omitempty" validate:"max=2000"`
}

// ToMap flattens the payload for the generic event envelope, omitting empty
// optional fields.
func (p PublicationPayload) ToMap() map[string]interface{} {
	data := map[string]interface{}{
		"channel":         p.Channel,
		"content_item_id": p.ContentItemID,
		"outcome":         p.Outcome,
		"status":          p.Status,
		"success":         p.Success,
		"retryable":       p.Retryable,
		"attempts":        p.Attempts,
	}
	if p.ExternalPostID != "" {
		data["external_post_id"] = p.ExternalPostID
	}
	if p.CanonicalURL != "" {
		data["canonical_url"] = p.CanonicalURL
	}
	if p.Error != "" {
		data["error"] = p.Error
	}
	return data
}

// EventValidator checks outbound publication events.
type EventValidator struct {
	validator *validator.Validate
}

func NewEventValidator() *EventValidator {
	return &EventValidator{
		validator: validator.New(),
	}
}

// ValidatePublication applies struct validation and checks that success
// agrees with the outcome. A posted event may lack external_post_id: the
// platform sometimes accepts a post without returning one.
func (v *EventValidator) ValidatePublication(p *PublicationPayload) error {
	if err := v.validator.Struct(p); err != nil {
		return fmt.Errorf("publication payload validation failed: %w", err)
	}
	wantSuccess := p.Outcome == "posted" || p.Outcome == "skipped_already_posted"
	if p.Success != wantSuccess {
		return fmt.Errorf("publication payload validation failed: success=%t does not match outcome %s", p.Success, p.Outcome)
	}
	return nil
}
