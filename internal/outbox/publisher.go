package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers one outbox payload to the message bus.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// KafkaPublisher writes events partitioned by key (trip id), so all facts for
// one trip land in order on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Balancer: &kafka.Hash{}})
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
