package handlers

import (
	"context"

	"herald/internal/pipeline"
	"herald/internal/store"
)

// Publisher runs one publish invocation.
type Publisher interface {
	Publish(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// RecordReader loads a ledger row for the status endpoint.
type RecordReader interface {
	Get(ctx context.Context, channel, contentItemID string) (*store.PublicationRecord, error)
}

type IntegrationWriter interface {
	SaveIntegration(ctx context.Context, in *store.Integration) error
}
