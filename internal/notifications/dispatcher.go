package notifications

import (
	"context"
	"sync"
	"time"

	"venuely/pkg/logger"
)

// Notifier is what the booking and payment services depend on. Notify never
// blocks on delivery and never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, msgs ...*Message)
}

// Dispatcher hands messages to a Sink on a detached goroutine.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, timeout: timeout, log: log.WithComponent("notifications")}
}

func (d *Dispatcher) Notify(ctx context.Context, msgs ...*Message) {
	if len(msgs) == 0 {
		return
	}
	// Keep trace values but drop the request's cancellation.
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.ErrorContext(base, "notification dispatch panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		for _, msg := range msgs {
			if err := d.sink.Publish(ctx, msg); err != nil {
				d.log.WarnContext(ctx, "notification not delivered",
					"notification_id", msg.ID,
					"type", msg.Type,
					"recipient_id", msg.RecipientID,
					"error", err,
				)
			}
		}
	}()
}

// Wait blocks until in-flight dispatches finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, ...*Message) {}

// Nop discards every message.
func Nop() Notifier {
	return nopNotifier{}
}
