package kafkaclient

import (
	"context"
	"errors"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (mw *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if mw.err != nil {
		return mw.err
	}
	mw.written = append(mw.written, msgs...)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.closed = true
	return nil
}

func TestKafkaProducer_Publish(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaProducerWithWriter(w)

	td.CmpNoError(t, p.Publish(context.Background(), "job-1", []byte(`{"type":"progress"}`)))
	td.CmpNoError(t, p.Close())

	td.Cmp(t, w.written, []kafka.Message{{Key: []byte("job-1"), Value: []byte(`{"type":"progress"}`)}})
	td.CmpTrue(t, w.closed)

	w.err = errors.New("leader not available")
	td.CmpString(t, p.Publish(context.Background(), "job-1", nil), "leader not available")
}
