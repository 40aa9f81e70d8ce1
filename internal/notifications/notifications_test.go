package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"venuely/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(db)
}

type recordingSink struct {
	mu    sync.Mutex
	got   []*Message
	err   error
	panic bool
}

func (s *recordingSink) Publish(_ context.Context, msg *Message) error {
	if s.panic {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msg)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

type flakyEmail struct {
	failures int
	calls    int
	to       string
}

func (f *flakyEmail) Send(_ context.Context, msg *Message) error {
	f.calls++
	f.to = msg.RecipientEmail
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

type staticContacts struct{}

func (staticContacts) Contact(_ context.Context, _ uuid.UUID) (string, string, error) {
	return "guest@example.com", "Guest User", nil
}

func TestBuilderDefaults(t *testing.T) {
	msg := NewMessageBuilder().
		WithType(NotificationTypePaymentCompleted).
		WithRecipient(uuid.New()).
		WithSubject("Payment received").
		Build()

	if msg.Priority != NotificationPriorityHigh {
		t.Fatalf("got priority %s, want HIGH", msg.Priority)
	}
	if !msg.HasChannel(NotificationChannelInApp) || !msg.HasChannel(NotificationChannelEmail) {
		t.Fatalf("got channels %v, want in-app and email", msg.Channels)
	}
	if msg.Status != NotificationStatusPending {
		t.Fatalf("got status %s, want PENDING", msg.Status)
	}
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, time.Second, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx,
		NewMessageBuilder().WithRecipient(uuid.New()).Build(),
		NewMessageBuilder().WithRecipient(uuid.New()).Build(),
	)
	// Cancelling the request context does not abort delivery.
	cancel()
	d.Wait()

	if len(sink.got) != 2 {
		t.Fatalf("got %d messages, want 2", len(sink.got))
	}
}

func TestDispatcherSurvivesSinkFailures(t *testing.T) {
	for _, sink := range []*recordingSink{{err: errors.New("broker down")}, {panic: true}} {
		d := NewDispatcher(sink, time.Second, logger.Nop())
		d.Notify(context.Background(), NewMessageBuilder().WithRecipient(uuid.New()).Build())
		d.Wait()
	}
}

func TestDelivererPersistsInboxAndRetriesEmail(t *testing.T) {
	repo := newTestRepo(t)
	email := &flakyEmail{failures: 2}
	d := NewDeliverer(repo, email, staticContacts{}, 3, logger.Nop())
	d.backoff = time.Millisecond

	recipient := uuid.New()
	msg := NewMessageBuilder().
		WithType(NotificationTypeBookingCreated).
		WithRecipient(recipient).
		WithSubject("Booking received").
		WithReference("VNU-20250601-ABC123").
		Build()

	if err := d.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if email.calls != 3 {
		t.Fatalf("got %d email attempts, want 3", email.calls)
	}
	if email.to != "guest@example.com" {
		t.Fatalf("got recipient %q", email.to)
	}
	if msg.Status != NotificationStatusSent {
		t.Fatalf("got status %s, want SENT", msg.Status)
	}

	// A redelivered message does not duplicate the inbox entry.
	if err := d.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	items, total, err := repo.ListForRecipient(context.Background(), recipient, ListQuery{})
	if err != nil {
		t.Fatalf("ListForRecipient: %v", err)
	}
	if total != 1 || items[0].ReferenceID != "VNU-20250601-ABC123" {
		t.Fatalf("got %d entries: %+v", total, items)
	}
}

func TestDelivererGivesUpAfterMaxRetries(t *testing.T) {
	email := &flakyEmail{failures: 10}
	d := NewDeliverer(nil, email, staticContacts{}, 2, logger.Nop())
	d.backoff = time.Millisecond

	msg := NewMessageBuilder().WithRecipient(uuid.New()).WithChannels(NotificationChannelEmail).Build()
	if err := d.Deliver(context.Background(), msg); err == nil {
		t.Fatalf("expected delivery error")
	}
	if email.calls != 3 {
		t.Fatalf("got %d attempts, want 3", email.calls)
	}
	if msg.Status != NotificationStatusFailed {
		t.Fatalf("got status %s, want FAILED", msg.Status)
	}
}

func TestInboxMarkRead(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo)
	ctx := context.Background()
	recipient := uuid.New()

	entry := newInboxEntry(NewMessageBuilder().WithRecipient(recipient).WithSubject("hello").Build())
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.MarkRead(ctx, entry.ID, uuid.New()); err == nil {
		t.Fatalf("another user must not mark the notification read")
	}
	if err := svc.MarkRead(ctx, entry.ID, recipient); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, err := svc.List(ctx, recipient, ListQuery{UnreadOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread.Notifications) != 0 {
		t.Fatalf("got %d unread, want 0", len(unread.Notifications))
	}
}

func TestKafkaSinkPublishesKeyedByRecipient(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	recipient := uuid.New()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		key, _ := pm.Key.Encode()
		if string(key) != recipient.String() {
			t.Errorf("got key %s, want %s", key, recipient)
		}
		value, _ := pm.Value.Encode()
		var msg Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return err
		}
		if msg.Status != NotificationStatusQueued {
			t.Errorf("got status %s, want QUEUED", msg.Status)
		}
		return nil
	})

	sink := newKafkaSink(producer, "venuely.notifications", logger.Nop())
	if err := sink.Publish(context.Background(), NewMessageBuilder().WithRecipient(recipient).Build()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
