package notifications

import (
	"context"
	"fmt"
	"time"

	"venuely/internal/shared/config"
	"venuely/pkg/logger"

	"github.com/IBM/sarama"
)

// Sink accepts messages for delivery.
type Sink interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

// DirectSink delivers in the calling goroutine. Used when Kafka is disabled.
type DirectSink struct {
	deliverer *Deliverer
}

func NewDirectSink(deliverer *Deliverer) *DirectSink {
	return &DirectSink{deliverer: deliverer}
}

func (s *DirectSink) Publish(ctx context.Context, msg *Message) error {
	return s.deliverer.Deliver(ctx, msg)
}

func (s *DirectSink) Close() error {
	return nil
}

// KafkaSink publishes messages to the notification topic, keyed by recipient.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func newProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewKafkaSink(cfg config.KafkaConfig, log *logger.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newKafkaSink(producer, cfg.Topic, log), nil
}

func newKafkaSink(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, log: log}
}

func (s *KafkaSink) Publish(ctx context.Context, msg *Message) error {
	msg.Status = NotificationStatusQueued

	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(msg.GetPartitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   createHeaders(msg),
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		msg.MarkFailed(err)
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	s.log.DebugContext(ctx, "notification published",
		"topic", s.topic,
		"partition", partition,
		"offset", offset,
		"type", msg.Type,
	)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

func createHeaders(msg *Message) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(msg.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(msg.Type)},
		{Key: []byte("priority"), Value: []byte(msg.Priority)},
	}
}
