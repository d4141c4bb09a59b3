package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"herald/pkg/logging"
)

const produceTimeout = 5 * time.Second

// KafkaProducer wraps a franz-go client for synchronous produces.
type KafkaProducer struct {
	client *kgo.Client
	logger logging.Logger
}

func NewKafkaProducer(brokers []string, clientID string, logger logging.Logger) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaProducer{
		client: client,
		logger: logger,
	}, nil
}

func (p *KafkaProducer) Close() error {
	p.client.Close()
	return nil
}

// PublishEvent produces event synchronously, bounded by produceTimeout.
func (p *KafkaProducer) PublishEvent(ctx context.Context, topic, key string, event Event) error {
	record, err := newRecord(topic, key, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	p.logger.WithFields(logging.Fields{
		"topic":      topic,
		"event_type": event.Type,
		"event_id":   event.ID,
	}).Debug("Published event")
	return nil
}

// GetClient returns the underlying kgo.Client for health checks
func (p *KafkaProducer) GetClient() *kgo.Client {
	return p.client
}
