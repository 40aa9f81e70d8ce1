package notifications

import (
	"context"
	"errors"
	"fmt"

	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/config"
	"venuely/internal/shared/utils/response"
	"venuely/pkg/logger"

	"github.com/google/uuid"
)

// Service serves the in-app inbox.
type Service interface {
	List(ctx context.Context, recipientID uuid.UUID, query ListQuery) (*PaginatedNotifications, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
}

type PaginatedNotifications struct {
	Notifications []Notification      `json:"notifications"`
	Pagination    response.Pagination `json:"pagination"`
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, recipientID uuid.UUID, query ListQuery) (*PaginatedNotifications, error) {
	query.normalize()
	items, total, err := s.repo.ListForRecipient(ctx, recipientID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return &PaginatedNotifications{
		Notifications: items,
		Pagination:    response.NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *service) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	err := s.repo.MarkRead(ctx, id, recipientID)
	if errors.Is(err, ErrNotificationNotFound) {
		return apperrors.NotFound("notification not found")
	}
	return err
}

// Pipeline owns the delivery side: the sink, the dispatcher in front of it
// and, when Kafka is enabled, the consumer workers behind it.
type Pipeline struct {
	Dispatcher *Dispatcher

	sink     Sink
	consumer *Consumer
	workers  int
	cancel   context.CancelFunc
	log      *logger.Logger
}

func NewPipeline(cfg *config.Config, repo Repository, contacts ContactResolver, log *logger.Logger) (*Pipeline, error) {
	deliverer := NewDeliverer(repo, NewEmailSender(cfg.Email, log), contacts, cfg.Kafka.MaxRetries, log)

	p := &Pipeline{log: log.WithComponent("notifications"), workers: cfg.Kafka.Workers}
	if cfg.Kafka.Enabled {
		sink, err := NewKafkaSink(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		consumer, err := NewConsumer(cfg.Kafka, deliverer, log)
		if err != nil {
			sink.Close()
			return nil, err
		}
		p.sink, p.consumer = sink, consumer
	} else {
		p.sink = NewDirectSink(deliverer)
	}

	p.Dispatcher = NewDispatcher(p.sink, cfg.Booking.NotifyTimeout, log)
	return p, nil
}

func (p *Pipeline) Start(ctx context.Context) {
	if p.consumer == nil {
		p.log.Info("notification pipeline started", "mode", "direct")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.consumer.Start(ctx, p.workers)
	p.log.Info("notification pipeline started", "mode", "kafka")
}

// Stop drains in-flight dispatches, then shuts down the consumer and sink.
func (p *Pipeline) Stop() error {
	p.Dispatcher.Wait()

	var errs []error
	if p.consumer != nil {
		if p.cancel != nil {
			p.cancel()
		}
		errs = append(errs, p.consumer.Stop())
	}
	errs = append(errs, p.sink.Close())
	return errors.Join(errs...)
}
