package pipeline

import (
	"errors"
	"fmt"
)

// Outcome is the result code of one pipeline invocation.
type Outcome string

const (
	OutcomeSkippedAlreadyPosted Outcome = "skipped_already_posted"
	OutcomePublishInProgress    Outcome = "publish_in_progress"
	OutcomeContentMissing       Outcome = "content_missing"
	OutcomeNeedsReauth          Outcome = "needs_reauth"
	OutcomeGenerationFailed     Outcome = "generation_failed"
	OutcomeRateLimited          Outcome = "rate_limited"
	OutcomePlatformRejected     Outcome = "platform_rejected"
	OutcomeNetworkError         Outcome = "network_error"
	OutcomePosted               Outcome = "posted"
	OutcomeInternalError        Outcome = "internal_error"
)

// Retryable reports whether calling again later can change the outcome
// without outside intervention.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomePublishInProgress, OutcomeGenerationFailed, OutcomeRateLimited,
		OutcomeNetworkError, OutcomeInternalError:
		return true
	default:
		return false
	}
}

// Success is true for outcomes that leave the item published.
func (o Outcome) Success() bool {
	return o == OutcomePosted || o == OutcomeSkippedAlreadyPosted
}

// Failure is a classified pipeline failure.
type Failure struct {
	Outcome Outcome
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Outcome)
	}
	return fmt.Sprintf("%s: %v", f.Outcome, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(outcome Outcome, err error) *Failure {
	return &Failure{Outcome: outcome, Err: err}
}

// OutcomeOf returns the outcome carried by err, internal_error for
// unclassified errors, and posted for nil.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomePosted
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Outcome
	}
	return OutcomeInternalError
}
