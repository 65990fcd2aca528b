package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"papertrade/internal/logger"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors envelopes onto a Kafka topic, keyed by account so that
// one account's events stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	log    *zap.SugaredLogger
}

// NewKafkaSink creates an asynchronous producer for topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	log := logger.Named("kafka")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warnw("kafka batch failed", "count", len(messages), "error", err)
			}
		},
	}
	log.Infow("kafka sink created", "brokers", brokers, "topic", topic)
	return &KafkaSink{writer: w, topic: topic, log: log}
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic, log: logger.Named("kafka")}
}

// Deliver implements Sink.
func (k *KafkaSink) Deliver(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	key := env.AccountID
	if key == "" {
		key = env.Event
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  env.SentAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(env.Event)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
