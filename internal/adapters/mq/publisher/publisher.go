// Package publisher delivers scored visits to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/footprint/internal/config"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendKafka = "kafka"
)

// ErrUnknownBackend is returned by Open for unsupported backends.
var ErrUnknownBackend = errors.New("unknown publisher backend")

// Publisher delivers one scored visit.
type Publisher interface {
	Publish(ctx context.Context, v model.ScoredVisit) error
	Close() error
}

// NoopPublisher logs visits at debug level and drops them.
type NoopPublisher struct {
	logger logger.Logger
}

// NewNoopPublisher returns a publisher that discards everything.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{logger: logger.Get().Named("publisher")}
}

func (p *NoopPublisher) Publish(ctx context.Context, v model.ScoredVisit) error { //nolint:gocritic // hugeParam: matches worker interface
	p.logger.Debug(ctx, "scored visit",
		logger.String("visitor_id", v.VisitorID),
		logger.Bool("anomaly", v.Anomaly.IsAnomaly))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }

// Producer is the subset of the franz-go client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher produces JSON records keyed by visitor ID so every visit
// of one visitor lands on the same partition.
type KafkaPublisher struct {
	client Producer
	topic  string
}

// NewKafkaPublisher connects to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return NewKafkaPublisherWithClient(client, topic), nil
}

// NewKafkaPublisherWithClient wraps an existing producer.
func NewKafkaPublisherWithClient(client Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, v model.ScoredVisit) error { //nolint:gocritic // hugeParam: matches worker interface
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal scored visit: %w", err)
	}

	ts := time.Now()
	if v.TimestampMs > 0 {
		ts = time.UnixMilli(v.TimestampMs)
	}
	record := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(v.VisitorID),
		Value:     data,
		Timestamp: ts,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// Open returns the publisher selected by cfg.
func Open(cfg *config.Config) (Publisher, error) {
	switch cfg.PublisherBackend {
	case BackendNone, "":
		return NewNoopPublisher(), nil
	case BackendKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.PublisherBackend)
	}
}
