package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venuely/pkg/logger"

	"github.com/google/uuid"
)

// ContactResolver looks up where to email a user.
type ContactResolver interface {
	Contact(ctx context.Context, userID uuid.UUID) (email, name string, err error)
}

// Deliverer performs the final delivery of a message: the inbox entry and
// the email, with bounded retries on the email.
type Deliverer struct {
	repo     Repository
	email    EmailSender
	contacts ContactResolver
	log      *logger.Logger

	maxRetries int
	backoff    time.Duration
}

func NewDeliverer(repo Repository, email EmailSender, contacts ContactResolver, maxRetries int, log *logger.Logger) *Deliverer {
	return &Deliverer{
		repo:       repo,
		email:      email,
		contacts:   contacts,
		log:        log,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

func (d *Deliverer) Deliver(ctx context.Context, msg *Message) error {
	var errs []error

	if msg.HasChannel(NotificationChannelInApp) && d.repo != nil {
		if err := d.repo.Create(ctx, newInboxEntry(msg)); err != nil {
			errs = append(errs, fmt.Errorf("inbox: %w", err))
		}
	}

	if msg.HasChannel(NotificationChannelEmail) && d.email != nil {
		if err := d.sendEmail(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		msg.MarkFailed(err)
		return err
	}
	msg.MarkSent()
	return nil
}

func (d *Deliverer) sendEmail(ctx context.Context, msg *Message) error {
	if msg.RecipientEmail == "" && d.contacts != nil {
		email, name, err := d.contacts.Contact(ctx, msg.RecipientID)
		if err != nil {
			return err
		}
		msg.RecipientEmail, msg.RecipientName = email, name
	}
	return d.executeWithRetry(ctx, msg)
}

func (d *Deliverer) executeWithRetry(ctx context.Context, msg *Message) error {
	for attempt := 0; ; attempt++ {
		err := d.email.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= d.maxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := d.backoff * time.Duration(1<<attempt)
		d.log.WarnContext(ctx, "email delivery failed, retrying",
			"notification_id", msg.ID,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
