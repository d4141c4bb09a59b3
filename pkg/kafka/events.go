package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is the JSON envelope published to every topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// newRecord keys the record by Key when set, falling back to the event ID.
func newRecord(topic, key string, event Event) (*kgo.Record, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if key == "" {
		key = event.ID
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if event.TenantID != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: "tenant_id", Value: []byte(event.TenantID)})
	}
	return record, nil
}
