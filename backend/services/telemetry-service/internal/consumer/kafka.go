package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/stream"
)

const (
	minBackoff = time.Second
	maxBackoff = 10 * time.Second
)

// KafkaConfig selects the topic and consumer group.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer-group reader.
func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

// KafkaConsumer feeds telemetry frames from a topic into ingestion. Offsets are
// committed only after the frame was stored or found to be unprocessable.
type KafkaConsumer struct {
	reader     MessageReader
	dispatcher Dispatcher
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewKafkaConsumer returns consumer.
func NewKafkaConsumer(reader MessageReader, dispatcher Dispatcher, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		dispatcher: dispatcher,
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("kafka reader close failed", zap.Error(err))
		}
	}()
	c.logger.Info("kafka consumer started")

	backoff := c.minBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer stopped")
				return nil
			}
			c.logger.Error("kafka fetch failed", zap.Error(err))
			if !c.sleep(ctx, backoff) {
				return nil
			}
			backoff = c.next(backoff)
			continue
		}
		backoff = c.minBackoff

		if !c.handle(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle retries storage failures until they succeed. It reports false when ctx ended first.
func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	backoff := c.minBackoff
	for {
		_, err := c.dispatcher.Dispatch(ctx, msg.Value)
		if err == nil {
			return true
		}
		if errors.Is(err, stream.ErrInvalidFrame) {
			c.logger.Warn("dropping invalid frame",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return true
		}

		c.logger.Error("kafka frame ingestion failed, retrying",
			zap.Int64("offset", msg.Offset),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if !c.sleep(ctx, backoff) {
			return false
		}
		backoff = c.next(backoff)
	}
}

func (c *KafkaConsumer) next(backoff time.Duration) time.Duration {
	backoff *= 2
	if backoff > c.maxBackoff {
		return c.maxBackoff
	}
	return backoff
}

func (c *KafkaConsumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
