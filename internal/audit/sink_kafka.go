package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic carries every credential audit event, keyed by token id so per-token
// history stays ordered within a partition.
const Topic = "certledger.audit.v1"

// KafkaSink publishes events to Kafka. Production deployments use this sink
// so downstream compliance consumers can replay the full operation history.
type KafkaSink struct {
	client *kgo.Client
}

// NewKafkaSink connects a producer to the given seed brokers.
func NewKafkaSink(brokers []string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(Topic),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaSink{client: client}, nil
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: Topic,
		Key:   []byte(strconv.FormatUint(uint64(event.TokenID), 10)),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
