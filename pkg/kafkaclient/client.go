package kafkaclient

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaReader defines the interface for a Kafka message reader.
// This allows for easy mocking in unit tests.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReadBackoff is the pause after a failed read.
const ReadBackoff = time.Second

// KafkaConsumer manages the Kafka consumer and its message loop.
// It is designed to be thread-safe.
type KafkaConsumer struct {
	reader KafkaReader
	logger *zap.Logger
	// a channel to signal a graceful shutdown.
	doneChan chan struct{}
	stopOnce sync.Once
	// a wait group to ensure all goroutines have exited before the program terminates.
	wg sync.WaitGroup
	// a channel to hold the Kafka messages handed to the caller.
	messageChan chan kafka.Message
}

// NewKafkaConsumer creates a consumer group member for topic with manual
// offset commits.
func NewKafkaConsumer(topic, groupID, broker string, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
		// Disable auto-commit to manually control offset committing.
		CommitInterval: 0,
		MinBytes:       1,
		// Read messages in batches of at most 10MB.
		MaxBytes: 10e6,
	})
	return NewKafkaConsumerWithReader(reader, logger)
}

// NewKafkaConsumerWithReader wraps an existing reader.
func NewKafkaConsumerWithReader(reader KafkaReader, logger *zap.Logger) *KafkaConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaConsumer{
		reader:      reader,
		logger:      logger,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
	}
}

// Messages returns the channel of consumed messages. It is closed when the
// consumer stops.
func (kc *KafkaConsumer) Messages() <-chan kafka.Message {
	return kc.messageChan
}

// CommitOffset manually commits the offset of a message.
func (kc *KafkaConsumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	kc.logger.Debug("committing offset",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))
	return kc.reader.CommitMessages(ctx, msg)
}

// StartConsuming begins the Kafka message consumption loop in a separate goroutine.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messageChan)

		kc.logger.Info("starting kafka consumer loop")
		for {
			select {
			case <-ctx.Done():
				kc.logger.Info("context canceled, stopping consumer loop")
				return
			case <-kc.doneChan:
				kc.logger.Info("shutdown signal received, stopping consumer loop")
				return
			default:
			}

			msg, err := kc.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				kc.logger.Warn("error reading message", zap.Error(err))
				select {
				case <-time.After(ReadBackoff):
					continue
				case <-ctx.Done():
					return
				case <-kc.doneChan:
					return
				}
			}

			select {
			case kc.messageChan <- msg:
				kc.logger.Debug("message received",
					zap.String("topic", msg.Topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset))
			case <-ctx.Done():
				return
			case <-kc.doneChan:
				return
			}
		}
	}()
}

// Stop gracefully shuts down the Kafka consumer. It is safe to call more
// than once.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		kc.logger.Info("stopping kafka consumer")
		close(kc.doneChan)
		kc.wg.Wait()
		if err := kc.reader.Close(); err != nil {
			kc.logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	})
}
