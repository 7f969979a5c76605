package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// WriteSSE writes every event as one text/event-stream frame and flushes
// after each frame when w supports it. It returns when events is closed or a
// write fails.
func WriteSSE(w io.Writer, events <-chan Event) error {
	flusher, _ := w.(http.Flusher)
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// MessagePublisher sends one keyed message. *kafkaclient.KafkaProducer
// satisfies it.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaSink forwards a job's events to a message topic keyed by job id, so
// all events of one job land on the same partition in order.
type KafkaSink struct {
	producer MessagePublisher
	logger   *zap.Logger
}

func NewKafkaSink(producer MessagePublisher, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{producer: producer, logger: logger}
}

// Forward publishes events until the channel closes. A failed publish is
// logged and the stream continues; the error of the last failure is returned.
func (s *KafkaSink) Forward(ctx context.Context, jobID string, events <-chan Event) error {
	var last error
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			last = fmt.Errorf("encode %s event: %w", ev.Type, err)
			continue
		}
		if err := s.producer.Publish(ctx, jobID, data); err != nil {
			s.logger.Warn("publish progress event failed",
				zap.String("job_id", jobID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
			last = err
		}
	}
	return last
}
