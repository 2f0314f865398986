package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/stream"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{messages: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type scriptedDispatcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, raw []byte) (stream.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := string(raw)
	d.calls[key]++
	switch {
	case key == "poison":
		return stream.Frame{}, stream.ErrInvalidFrame
	case d.calls[key] <= d.fail[key]:
		return stream.Frame{}, errors.New("db down")
	}
	return stream.Frame{}, nil
}

func runConsumer(t *testing.T, reader *fakeReader, d Dispatcher) {
	t.Helper()
	c := NewKafkaConsumer(reader, d, zap.NewNop())
	c.minBackoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestKafkaConsumerCommitsAfterIngestion(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte("a")},
		kafka.Message{Offset: 2, Value: []byte("poison")},
		kafka.Message{Offset: 3, Value: []byte("b")},
	)
	d := &scriptedDispatcher{calls: map[string]int{}, fail: map[string]int{}}

	runConsumer(t, reader, d)

	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Equal(t, 1, d.calls["poison"])
	assert.True(t, reader.closed)
}

func TestKafkaConsumerRetriesStorageFailures(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Offset: 7, Value: []byte("flaky")},
		kafka.Message{Offset: 8, Value: []byte("after")},
	)
	d := &scriptedDispatcher{calls: map[string]int{}, fail: map[string]int{"flaky": 3}}

	runConsumer(t, reader, d)

	assert.Equal(t, 4, d.calls["flaky"])
	assert.Equal(t, []int64{7, 8}, reader.committed)
}

func TestKafkaConsumerStopsRetryingOnShutdown(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 9, Value: []byte("down")})
	d := &scriptedDispatcher{calls: map[string]int{}, fail: map[string]int{"down": 1 << 30}}

	c := NewKafkaConsumer(reader, d, zap.NewNop())
	c.minBackoff = time.Millisecond
	c.maxBackoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	assert.Empty(t, reader.committed)
	assert.True(t, reader.closed)
}
