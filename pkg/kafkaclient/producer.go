package kafkaclient

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines the subset of kafka.Writer used by the producer so
// tests can swap it out.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes keyed messages to one topic.
type KafkaProducer struct {
	writer KafkaWriter
}

// NewKafkaProducer creates a producer for topic. Messages with the same key
// are hashed to the same partition.
func NewKafkaProducer(topic, broker string) *KafkaProducer {
	return NewKafkaProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
}

// NewKafkaProducerWithWriter wraps an existing writer.
func NewKafkaProducerWithWriter(w KafkaWriter) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// Publish writes one message.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

// Close flushes pending messages and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
