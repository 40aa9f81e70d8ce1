package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"venuely/internal/shared/config"
	"venuely/pkg/logger"

	"github.com/IBM/sarama"
)

// Consumer runs Kafka consumer-group workers that hand messages to a Deliverer.
type Consumer struct {
	group     sarama.ConsumerGroup
	topics    []string
	deliverer *Deliverer
	log       *logger.Logger
	wg        sync.WaitGroup
}

func NewConsumer(cfg config.KafkaConfig, deliverer *Deliverer, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = 30 * time.Second
	saramaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	saramaConfig.Consumer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		group:     group,
		topics:    []string{cfg.Topic},
		deliverer: deliverer,
		log:       log.WithComponent("notification-consumer"),
	}, nil
}

// Start launches numWorkers consume loops that run until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, numWorkers int) {
	go c.handleErrors()

	for i := 0; i < numWorkers; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.runWorker(ctx, workerID)
		}(i)
	}
	c.log.Info("notification consumers started", "workers", numWorkers, "topics", c.topics)
}

func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	handler := &groupHandler{
		deliverer: c.deliverer,
		log:       &logger.Logger{Logger: c.log.With("worker", workerID)},
	}
	for {
		if err := c.group.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.log.Warn("consume failed", "worker", workerID, "error", err)
			time.Sleep(time.Second)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) handleErrors() {
	for err := range c.group.Errors() {
		c.log.Warn("consumer group error", "error", err)
	}
}

// Stop closes the group and waits for workers to exit. The caller cancels
// the context passed to Start first.
func (c *Consumer) Stop() error {
	err := c.group.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type groupHandler struct {
	deliverer *Deliverer
	log       *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.process(session.Context(), message)
			// Delivery failures are logged and the offset still advances;
			// the deliverer already retried the email.
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) process(ctx context.Context, message *sarama.ConsumerMessage) {
	var msg Message
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		h.log.Warn("dropping malformed notification", "offset", message.Offset, "error", err)
		return
	}
	if err := h.deliverer.Deliver(ctx, &msg); err != nil {
		h.log.Warn("notification delivery failed",
			"notification_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
	}
}
