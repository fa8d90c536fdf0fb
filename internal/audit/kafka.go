package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"attestor/pkg/platform/sentinel"
)

// ErrCircuitOpen is returned while the breaker drops events.
var ErrCircuitOpen = errors.New("audit sink circuit open")

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes JSON events keyed by action.
type KafkaPublisher struct {
	client  producer
	topic   string
	breaker *CircuitBreaker
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit sink requires at least one broker")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newKafkaPublisher(client, topic), nil
}

func newKafkaPublisher(client producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if !p.breaker.Allow() {
		return ErrCircuitOpen
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{Topic: p.topic, Key: []byte(e.Action), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.breaker.RecordFailure()
		return fmt.Errorf("produce audit event: %w: %w", sentinel.ErrUnavailable, err)
	}
	p.breaker.RecordSuccess()
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
