package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"venuely/internal/cancellation"
	"venuely/internal/notifications"
	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/config"
	"venuely/internal/users"
	"venuely/internal/venues"
	"venuely/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *service
	repo   Repository
	venues venues.Repository
	venue  *venues.Venue
	owner  uuid.UUID
	user   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&venues.Venue{}, &Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		repo:   NewRepository(db),
		venues: venues.NewRepository(db),
		owner:  uuid.New(),
		user:   uuid.New(),
	}
	f.venue = &venues.Venue{
		OwnerID:            f.owner,
		Name:               "Lakeside Banquet",
		Address:            "Lakeside Road 6",
		City:               "Pokhara",
		MinCapacity:        50,
		MaxCapacity:        500,
		PricePerHour:       5000,
		OpeningTime:        "08:00",
		ClosingTime:        "23:00",
		CancellationPolicy: cancellation.DefaultPolicy(),
		IsActive:           true,
	}
	if err := f.venues.Create(context.Background(), f.venue); err != nil {
		t.Fatalf("create venue: %v", err)
	}

	cfg := config.BookingConfig{SlotLockTTL: time.Second, NotifyTimeout: time.Second, ReferencePrefix: "VNU"}
	f.svc = NewService(f.repo, f.venues, NewLocalSlotLocker(), notifications.Nop(), cfg, logger.Nop()).(*service)
	f.svc.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) request(date, start, end string) CreateBookingRequest {
	return CreateBookingRequest{
		VenueID:    f.venue.ID.String(),
		EventDate:  date,
		StartTime:  start,
		EndTime:    end,
		EventType:  "Wedding",
		GuestCount: 200,
	}
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %v", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("got kind %v (%v), want %v", got, err, kind)
	}
}

func TestCreateBookingPricesByHour(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(context.Background(), f.user, f.request("2025-06-01", "10:00", "18:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.TotalAmount != 40000 {
		t.Fatalf("got total %v, want 40000", b.TotalAmount)
	}
	if b.BalanceAmount != 40000 || b.AdvancePaid != 0 {
		t.Fatalf("got balance %v advance %v, want 40000 and 0", b.BalanceAmount, b.AdvancePaid)
	}
	if b.Status != StatusPending || b.PaymentStatus != PaymentStatusUnpaid {
		t.Fatalf("got %s/%s, want PENDING/UNPAID", b.Status, b.PaymentStatus)
	}
	if b.Version != 1 {
		t.Fatalf("got version %d, want 1", b.Version)
	}
	if len(b.BookingRef) != len("VNU-20250501-ABCDEF") || b.BookingRef[:13] != "VNU-20250501-" {
		t.Fatalf("unexpected booking ref %q", b.BookingRef)
	}
}

func TestCreateBookingRejectsGuestCountOutsideCapacity(t *testing.T) {
	f := newFixture(t)
	req := f.request("2025-06-01", "10:00", "12:00")
	req.GuestCount = 600

	_, err := f.svc.Create(context.Background(), f.user, req)
	wantKind(t, err, apperrors.KindValidation)
	if got, want := apperrors.Message(err), "Guest count must be between 50 and 500"; got != want {
		t.Fatalf("got message %q, want %q", got, want)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "12:00", "10:00"))
	wantKind(t, err, apperrors.KindValidation)

	_, err = f.svc.Create(ctx, f.user, f.request("01-06-2025", "10:00", "12:00"))
	wantKind(t, err, apperrors.KindValidation)

	req := f.request("2025-06-01", "10:00", "12:00")
	req.VenueID = uuid.NewString()
	_, err = f.svc.Create(ctx, f.user, req)
	wantKind(t, err, apperrors.KindNotFound)
}

func TestCreateBookingRejectsInactiveVenue(t *testing.T) {
	f := newFixture(t)
	f.venue.IsActive = false
	if err := f.venues.Save(context.Background(), f.venue); err != nil {
		t.Fatalf("save venue: %v", err)
	}
	_, err := f.svc.Create(context.Background(), f.user, f.request("2025-06-01", "10:00", "12:00"))
	wantKind(t, err, apperrors.KindInvalidState)
}

func TestCreateBookingRejectsOverlapsAndBlockedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "11:00", "13:00"))
	wantKind(t, err, apperrors.KindConflict)

	if _, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "12:00", "14:00")); err != nil {
		t.Fatalf("adjacent booking should fit: %v", err)
	}

	f.venue.BlockedDates = []string{"2025-06-02"}
	if err := f.venues.Save(ctx, f.venue); err != nil {
		t.Fatalf("save venue: %v", err)
	}
	_, err = f.svc.Create(ctx, f.user, f.request("2025-06-02", "10:00", "12:00"))
	wantKind(t, err, apperrors.KindConflict)
}

func TestConcurrentCreatesForSameSlotAdmitOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "10:00", "14:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.KindOf(err) == apperrors.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("got %d successes and %d conflicts, want 1 and %d", successes, conflicts, attempts-1)
	}
}

func TestUpdateStatusStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	confirmed := StatusConfirmed
	_, err = f.svc.UpdateStatus(ctx, b.ID, f.user, users.RoleUser, UpdateStatusRequest{Status: &confirmed})
	wantKind(t, err, apperrors.KindForbidden)

	_, err = f.svc.UpdateStatus(ctx, b.ID, uuid.New(), users.RoleOwner, UpdateStatusRequest{Status: &confirmed})
	wantKind(t, err, apperrors.KindForbidden)

	got, err := f.svc.UpdateStatus(ctx, b.ID, f.owner, users.RoleOwner, UpdateStatusRequest{Status: &confirmed})
	if err != nil {
		t.Fatalf("owner confirm: %v", err)
	}
	if got.Status != StatusConfirmed || got.Version != 2 {
		t.Fatalf("got %s v%d, want CONFIRMED v2", got.Status, got.Version)
	}

	completed := StatusCompleted
	if _, err := f.svc.UpdateStatus(ctx, b.ID, uuid.New(), users.RoleAdmin, UpdateStatusRequest{Status: &completed}); err != nil {
		t.Fatalf("admin complete: %v", err)
	}

	cancelled := StatusCancelled
	_, err = f.svc.UpdateStatus(ctx, b.ID, f.user, users.RoleUser, UpdateStatusRequest{Status: &cancelled})
	wantKind(t, err, apperrors.KindInvalidState)

	pending := StatusPending
	_, err = f.svc.UpdateStatus(ctx, b.ID, f.owner, users.RoleOwner, UpdateStatusRequest{Status: &pending})
	wantKind(t, err, apperrors.KindInvalidState)
}

func TestDeleteConfirmedBookingFailsButCancelRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "18:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	confirmed := StatusConfirmed
	b, err = f.svc.UpdateStatus(ctx, b.ID, f.owner, users.RoleOwner, UpdateStatusRequest{Status: &confirmed})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	b.AdvancePaid, b.BalanceAmount, b.PaymentStatus = 10000, 30000, PaymentStatusPartial
	if err := f.repo.Save(ctx, b); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	err = f.svc.Delete(ctx, b.ID, f.user, users.RoleUser)
	wantKind(t, err, apperrors.KindInvalidState)

	// 30 hours before the event day.
	f.svc.now = func() time.Time { return time.Date(2025, 5, 30, 18, 0, 0, 0, time.UTC) }

	estimate, err := f.svc.RefundEstimate(ctx, b.ID, f.user, users.RoleUser)
	if err != nil {
		t.Fatalf("RefundEstimate: %v", err)
	}
	if estimate.RefundPercentage != 50 || estimate.RefundAmount != 5000 {
		t.Fatalf("got estimate %+v, want 50%% and 5000", estimate)
	}

	cancelled := StatusCancelled
	got, err := f.svc.UpdateStatus(ctx, b.ID, f.user, users.RoleUser, UpdateStatusRequest{Status: &cancelled, Reason: "plans changed"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("got %s cancelled_at=%v, want CANCELLED with timestamp", got.Status, got.CancelledAt)
	}
	if got.RefundAmount != 5000 || got.RefundPercentage != 50 {
		t.Fatalf("got refund %v (%v%%), want 5000 (50%%)", got.RefundAmount, got.RefundPercentage)
	}

	// The cancelled booking frees its slot.
	if _, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "10:00", "18:00")); err != nil {
		t.Fatalf("rebooking freed slot: %v", err)
	}
}

func TestDeletePendingBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = f.svc.Delete(ctx, b.ID, uuid.New(), users.RoleUser)
	wantKind(t, err, apperrors.KindForbidden)

	if err := f.svc.Delete(ctx, b.ID, f.user, users.RoleUser); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = f.svc.GetBooking(ctx, b.ID, f.user, users.RoleUser)
	wantKind(t, err, apperrors.KindNotFound)
}

func TestRescheduleIgnoresOwnSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "14:00", "16:00")); err != nil {
		t.Fatalf("other booking: %v", err)
	}

	got, err := f.svc.Reschedule(ctx, b.ID, f.user, RescheduleRequest{EventDate: "2025-06-01", StartTime: "11:00", EndTime: "14:00"})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.StartTime != "11:00" || got.EndTime != "14:00" || got.TotalAmount != 15000 || got.BalanceAmount != 15000 {
		t.Fatalf("got %s total %v balance %v", got.Slot(), got.TotalAmount, got.BalanceAmount)
	}

	_, err = f.svc.Reschedule(ctx, b.ID, f.user, RescheduleRequest{EventDate: "2025-06-01", StartTime: "13:00", EndTime: "15:00"})
	wantKind(t, err, apperrors.KindConflict)

	_, err = f.svc.Reschedule(ctx, b.ID, f.owner, RescheduleRequest{EventDate: "2025-06-02", StartTime: "10:00", EndTime: "12:00"})
	wantKind(t, err, apperrors.KindForbidden)
}

func TestRescheduleKeepsPaidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "14:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b.AdvancePaid, b.BalanceAmount, b.PaymentStatus = 8000, 12000, PaymentStatusPartial
	if err := f.repo.Save(ctx, b); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	got, err := f.svc.Reschedule(ctx, b.ID, f.user, RescheduleRequest{EventDate: "2025-06-03", StartTime: "09:00", EndTime: "15:00"})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.TotalAmount != 30000 || got.AdvancePaid != 8000 || got.BalanceAmount != 22000 {
		t.Fatalf("got total %v advance %v balance %v, want 30000/8000/22000", got.TotalAmount, got.AdvancePaid, got.BalanceAmount)
	}
}

func TestStaleVersionIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale, err := f.repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	fresh, _ := f.repo.GetByID(ctx, b.ID)
	fresh.Status = StatusConfirmed
	if err := f.repo.Save(ctx, fresh); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stale.Status = StatusCancelled
	err = f.repo.Save(ctx, stale)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("got %v, want ErrVersionConflict", err)
	}
	if mapped := f.svc.mapError(err); !apperrors.IsRetryable(mapped) {
		t.Fatalf("version conflicts must be retryable, got %v", mapped)
	}
}

func TestGetBookingRestrictedToParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, actor := range []struct {
		id   uuid.UUID
		role users.Role
	}{{f.user, users.RoleUser}, {f.owner, users.RoleOwner}, {uuid.New(), users.RoleAdmin}} {
		if _, err := f.svc.GetBooking(ctx, b.ID, actor.id, actor.role); err != nil {
			t.Fatalf("%s should see booking: %v", actor.role, err)
		}
	}
	_, err = f.svc.GetBooking(ctx, b.ID, uuid.New(), users.RoleUser)
	wantKind(t, err, apperrors.KindForbidden)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, slot := range [][2]string{{"10:00", "12:00"}, {"12:00", "14:00"}} {
		if _, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", slot[0], slot[1])); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := f.svc.Create(ctx, uuid.New(), f.request("2025-06-01", "16:00", "18:00")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := f.svc.ListMyBookings(ctx, f.user, BookingListQuery{})
	if err != nil {
		t.Fatalf("ListMyBookings: %v", err)
	}
	if len(mine.Bookings) != 2 || mine.Pagination.Total != 2 {
		t.Fatalf("got %d bookings (total %d), want 2", len(mine.Bookings), mine.Pagination.Total)
	}
	if mine.Bookings[0].StartTime != "10:00" {
		t.Fatalf("got first slot %s, want 10:00", mine.Bookings[0].StartTime)
	}

	owned, err := f.svc.ListOwnerBookings(ctx, f.owner, users.RoleOwner, BookingListQuery{})
	if err != nil {
		t.Fatalf("ListOwnerBookings: %v", err)
	}
	if len(owned.Bookings) != 3 {
		t.Fatalf("got %d owner bookings, want 3", len(owned.Bookings))
	}

	other, err := f.svc.ListOwnerBookings(ctx, uuid.New(), users.RoleOwner, BookingListQuery{Status: string(StatusPending)})
	if err != nil {
		t.Fatalf("ListOwnerBookings: %v", err)
	}
	if len(other.Bookings) != 0 {
		t.Fatalf("got %d bookings for a stranger, want 0", len(other.Bookings))
	}
}

func TestDayAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, f.user, f.request("2025-06-01", "10:00", "12:00")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	day, err := f.svc.DayAvailability(ctx, f.venue.ID, "2025-06-01")
	if err != nil {
		t.Fatalf("DayAvailability: %v", err)
	}
	if !day.Available || len(day.BookedSlots) != 1 || day.BookedSlots[0].StartTime != "10:00" {
		t.Fatalf("unexpected availability %+v", day)
	}

	_, err = f.svc.DayAvailability(ctx, f.venue.ID, "June 1")
	wantKind(t, err, apperrors.KindValidation)
}
