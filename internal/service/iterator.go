// Package service contains helpers used by application services.
// In particular, it provides an Iterator that consumes submission messages
// from a message source (Kafka via pkg/kafkaclient) and decodes them either
// inline or by loading the object a storage notification points at.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Iterator consumes messages from a MessageIterator, decodes each with a
// DecodeFunc and yields the results on a channel. Undecodable messages are
// logged, committed and skipped so that one poison message cannot stall the
// partition.
type Iterator[T any] struct {
	msgIterator MessageIterator
	decode      DecodeFunc[T]
	logger      *zap.Logger
}

// NewIterator constructs an Iterator for the provided message source.
func NewIterator[T any](iterator MessageIterator, decode DecodeFunc[T], logger *zap.Logger) *Iterator[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Iterator[T]{
		msgIterator: iterator,
		decode:      decode,
		logger:      logger,
	}
}

// Objects starts a goroutine that decodes every message and emits it on the
// returned channel. The offset is committed once the value has been handed
// over. The channel is closed when the source closes or ctx is done.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *Fetched[T] {
	out := make(chan *Fetched[T])
	go func() {
		defer close(out)

		for msg := range it.msgIterator.Messages() {
			data, err := it.decode(ctx, msg)
			if err != nil {
				it.logger.Warn("skipping undecodable message",
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				it.commit(ctx, msg)
				continue
			}

			select {
			case out <- &Fetched[T]{Data: data, Message: msg}:
			case <-ctx.Done():
				return
			}
			it.commit(ctx, msg)
		}
	}()
	return out
}

func (it *Iterator[T]) commit(ctx context.Context, msg kafka.Message) {
	if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
		it.logger.Warn("failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

// JSONDecoder decodes the message value as JSON into T.
func JSONDecoder[T any]() DecodeFunc[T] {
	return func(_ context.Context, msg kafka.Message) (T, error) {
		var v T
		if err := json.Unmarshal(msg.Value, &v); err != nil {
			return v, fmt.Errorf("decode message: %w", err)
		}
		return v, nil
	}
}

// NotificationDecoder treats the message as a MinIO/S3 bucket notification
// and loads the first referenced object with loader.
func NotificationDecoder[T any](loader LoaderFunc[T]) DecodeFunc[T] {
	return func(ctx context.Context, msg kafka.Message) (T, error) {
		var zero T
		var event notification.Info
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return zero, fmt.Errorf("decode notification: %w", err)
		}
		if len(event.Records) == 0 {
			return zero, errors.New("notification has no records")
		}
		s3 := event.Records[0].S3
		key, err := url.QueryUnescape(s3.Object.Key)
		if err != nil {
			return zero, fmt.Errorf("decode object key %q: %w", s3.Object.Key, err)
		}
		return loader(ctx, s3.Bucket.Name, key)
	}
}

// AutoDecoder uses NotificationDecoder for bucket notifications and
// JSONDecoder for everything else.
func AutoDecoder[T any](loader LoaderFunc[T]) DecodeFunc[T] {
	fromStore := NotificationDecoder(loader)
	inline := JSONDecoder[T]()
	return func(ctx context.Context, msg kafka.Message) (T, error) {
		var envelope struct {
			Records []json.RawMessage `json:"Records"`
		}
		if json.Unmarshal(msg.Value, &envelope) == nil && len(envelope.Records) > 0 && loader != nil {
			return fromStore(ctx, msg)
		}
		return inline(ctx, msg)
	}
}
