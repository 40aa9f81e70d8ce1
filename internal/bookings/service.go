package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"venuely/internal/availability"
	"venuely/internal/cancellation"
	"venuely/internal/notifications"
	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/clock"
	"venuely/internal/shared/config"
	"venuely/internal/shared/utils/response"
	"venuely/internal/users"
	"venuely/internal/venues"
	"venuely/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("venuely/internal/bookings")

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*Booking, error)
	GetBooking(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*Booking, error)
	ListMyBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error)
	ListOwnerBookings(ctx context.Context, ownerID uuid.UUID, role users.Role, query BookingListQuery) (*PaginatedBookings, error)
	UpdateStatus(ctx context.Context, id, actorID uuid.UUID, role users.Role, req UpdateStatusRequest) (*Booking, error)
	Reschedule(ctx context.Context, id, actorID uuid.UUID, req RescheduleRequest) (*Booking, error)
	RefundEstimate(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*RefundEstimateResponse, error)
	Delete(ctx context.Context, id, actorID uuid.UUID, role users.Role) error
	DayAvailability(ctx context.Context, venueID uuid.UUID, date string) (*availability.DayAvailability, error)
}

type service struct {
	repo      Repository
	venueRepo venues.Repository
	locker    SlotLocker
	notifier  notifications.Notifier
	cfg       config.BookingConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, venueRepo venues.Repository, locker SlotLocker, notifier notifications.Notifier, cfg config.BookingConfig, log *logger.Logger) Service {
	return &service{
		repo:      repo,
		venueRepo: venueRepo,
		locker:    locker,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

var errSlotUnavailable = apperrors.Conflict("the requested time slot is not available")

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Create")
	defer span.End()

	venueID, err := uuid.Parse(req.VenueID)
	if err != nil {
		return nil, apperrors.Validation("venue_id must be a UUID")
	}
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if !venue.IsActive {
		return nil, apperrors.InvalidState("venue is not accepting bookings")
	}
	if !venue.FitsGuests(req.GuestCount) {
		return nil, apperrors.Validation("Guest count must be between %d and %d", venue.MinCapacity, venue.MaxCapacity)
	}

	slot, err := parseSlot(req.EventDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	total, err := CalculateTotal(slot.startTime, slot.endTime, venue.PricePerHour)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	ref, err := generateBookingReference(s.cfg.ReferencePrefix, s.now())
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate booking reference")
	}

	span.SetAttributes(
		attribute.String("venue.id", venue.ID.String()),
		attribute.String("booking.slot", slot.String()),
	)

	booking := &Booking{
		BookingRef:      ref,
		UserID:          userID,
		VenueID:         venue.ID,
		EventDate:       slot.day,
		StartTime:       slot.startTime,
		EndTime:         slot.endTime,
		StartMinute:     slot.startMinute,
		EndMinute:       slot.endMinute,
		EventType:       req.EventType,
		GuestCount:      req.GuestCount,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		SpecialRequests: req.SpecialRequests,
		TotalAmount:     total,
		BalanceAmount:   total,
		Status:          StatusPending,
		PaymentStatus:   PaymentStatusUnpaid,
	}

	err = s.withSlotLock(ctx, venue.ID, slot.day, func() error {
		return s.repo.Transaction(ctx, func(tx Repository) error {
			ok, err := availability.NewChecker(tx).IsAvailable(ctx, venue, slot.day, slot.startTime, slot.endTime, nil)
			if err != nil {
				return err
			}
			if !ok {
				return errSlotUnavailable
			}
			return tx.Create(ctx, booking)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking not created")
		return nil, s.mapError(err)
	}

	s.log.LogBookingCreated(ctx, booking.ID.String(), venue.ID.String(), userID.String(), total)
	s.notifyParties(ctx, booking, venue, notifications.NotificationTypeBookingCreated,
		"Booking received",
		fmt.Sprintf("Booking %s at %s for %s is pending. Total amount: %.2f.", booking.BookingRef, venue.Name, booking.Slot(), booking.TotalAmount))

	booking.Venue = venue
	return booking, nil
}

func (s *service) GetBooking(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*Booking, error) {
	booking, venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc := accessFor(booking, venue, actorID, role); !acc.customer && !acc.manager {
		return nil, apperrors.Forbidden("you are not allowed to view this booking")
	}
	return booking, nil
}

func (s *service) ListMyBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error) {
	query.normalize()
	items, total, err := s.repo.ListByUser(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return paginate(items, total, query), nil
}

func (s *service) ListOwnerBookings(ctx context.Context, ownerID uuid.UUID, role users.Role, query BookingListQuery) (*PaginatedBookings, error) {
	query.normalize()
	if role == users.RoleAdmin {
		ownerID = uuid.Nil
	}
	items, total, err := s.repo.ListByOwner(ctx, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return paginate(items, total, query), nil
}

func (s *service) UpdateStatus(ctx context.Context, id, actorID uuid.UUID, role users.Role, req UpdateStatusRequest) (*Booking, error) {
	booking, venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	acc := accessFor(booking, venue, actorID, role)
	if !acc.customer && !acc.manager {
		return nil, apperrors.Forbidden("you are not allowed to modify this booking")
	}
	if req.Status == nil && req.PaymentStatus == nil {
		return nil, apperrors.Validation("status or payment_status is required")
	}
	if !acc.manager && (req.PaymentStatus != nil || req.Status == nil || *req.Status != StatusCancelled) {
		return nil, apperrors.Forbidden("customers can only cancel their bookings")
	}

	from := booking.Status
	if req.Status != nil {
		to := *req.Status
		if !to.IsValid() {
			return nil, apperrors.Validation("invalid booking status %q", to)
		}
		if !from.CanTransitionTo(to) {
			return nil, apperrors.InvalidState("cannot change booking status from %s to %s", from, to)
		}
		booking.Status = to

		if to == StatusCancelled {
			now := s.now()
			estimate := cancellation.CalculateRefund(booking.EventDate, now, booking.AdvancePaid, venue.CancellationPolicy)
			booking.CancelledAt = &now
			booking.CancellationReason = req.Reason
			booking.RefundAmount = estimate.RefundAmount
			booking.RefundPercentage = estimate.RefundPercentage
		}
	}
	if req.PaymentStatus != nil {
		if !req.PaymentStatus.IsValid() {
			return nil, apperrors.Validation("invalid payment status %q", *req.PaymentStatus)
		}
		booking.PaymentStatus = *req.PaymentStatus
	}

	if err := s.repo.Save(ctx, booking); err != nil {
		return nil, s.mapError(err)
	}

	s.log.LogBookingStatusChanged(ctx, booking.ID.String(), string(from), string(booking.Status), actorID.String())
	body := fmt.Sprintf("Booking %s for %s is now %s.", booking.BookingRef, booking.Slot(), booking.Status)
	if booking.Status == StatusCancelled && from != StatusCancelled {
		s.log.LogBookingCancelled(ctx, booking.ID.String(), actorID.String(), booking.RefundAmount, booking.RefundPercentage)
		body += fmt.Sprintf(" Refund due: %.2f (%.0f%%).", booking.RefundAmount, booking.RefundPercentage)
	}
	s.notifyParties(ctx, booking, venue, notifications.NotificationTypeBookingStatusChanged, "Booking updated", body)
	return booking, nil
}

func (s *service) Reschedule(ctx context.Context, id, actorID uuid.UUID, req RescheduleRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Reschedule")
	defer span.End()

	booking, venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID {
		return nil, apperrors.Forbidden("only the customer who made the booking can reschedule it")
	}
	if !booking.Status.IsActive() {
		return nil, apperrors.InvalidState("only pending or confirmed bookings can be rescheduled")
	}
	if !venue.IsActive {
		return nil, apperrors.InvalidState("venue is not accepting bookings")
	}

	slot, err := parseSlot(req.EventDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	total, err := CalculateTotal(slot.startTime, slot.endTime, venue.PricePerHour)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	oldSlot := booking.Slot()

	err = s.withSlotLock(ctx, venue.ID, slot.day, func() error {
		return s.repo.Transaction(ctx, func(tx Repository) error {
			ok, err := availability.NewChecker(tx).IsAvailable(ctx, venue, slot.day, slot.startTime, slot.endTime, &booking.ID)
			if err != nil {
				return err
			}
			if !ok {
				return errSlotUnavailable
			}

			booking.EventDate = slot.day
			booking.StartTime, booking.EndTime = slot.startTime, slot.endTime
			booking.StartMinute, booking.EndMinute = slot.startMinute, slot.endMinute
			booking.TotalAmount = total
			// Not clamped: a cheaper slot after a larger payment leaves a
			// negative balance that the owner settles out of band.
			booking.BalanceAmount = total - booking.AdvancePaid
			return tx.Save(ctx, booking)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking not rescheduled")
		return nil, s.mapError(err)
	}

	s.log.LogBookingRescheduled(ctx, booking.ID.String(), oldSlot, booking.Slot())
	s.notifyParties(ctx, booking, venue, notifications.NotificationTypeBookingRescheduled,
		"Booking rescheduled",
		fmt.Sprintf("Booking %s moved from %s to %s. New total: %.2f, balance due: %.2f.",
			booking.BookingRef, oldSlot, booking.Slot(), booking.TotalAmount, booking.BalanceAmount))
	return booking, nil
}

func (s *service) RefundEstimate(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*RefundEstimateResponse, error) {
	booking, venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc := accessFor(booking, venue, actorID, role); !acc.customer && !acc.manager {
		return nil, apperrors.Forbidden("you are not allowed to view this booking")
	}

	estimate := cancellation.CalculateRefund(booking.EventDate, s.now(), booking.AdvancePaid, venue.CancellationPolicy)
	return &RefundEstimateResponse{
		BookingID:          booking.ID,
		HoursUntilEvent:    estimate.HoursUntilEvent,
		PaidAmount:         estimate.PaidAmount,
		RefundAmount:       estimate.RefundAmount,
		RefundPercentage:   estimate.RefundPercentage,
		Message:            estimate.Message,
		CancellationPolicy: venue.CancellationPolicy,
	}, nil
}

func (s *service) Delete(ctx context.Context, id, actorID uuid.UUID, role users.Role) error {
	booking, venue, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if acc := accessFor(booking, venue, actorID, role); !acc.customer && !acc.manager {
		return apperrors.Forbidden("you are not allowed to delete this booking")
	}
	if booking.Status != StatusPending {
		return apperrors.InvalidState("only pending bookings can be deleted, %s bookings must be cancelled instead", booking.Status)
	}

	if err := s.repo.DeletePending(ctx, booking); err != nil {
		return s.mapError(err)
	}

	s.log.InfoContext(ctx, "Booking Deleted", "booking_id", booking.ID, "actor_id", actorID)
	s.notifyParties(ctx, booking, venue, notifications.NotificationTypeBookingDeleted,
		"Booking removed",
		fmt.Sprintf("Pending booking %s for %s was removed.", booking.BookingRef, booking.Slot()))
	return nil
}

func (s *service) DayAvailability(ctx context.Context, venueID uuid.UUID, date string) (*availability.DayAvailability, error) {
	day, err := clock.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return availability.NewChecker(s.repo).Day(ctx, venue, day)
}

// load fetches the booking with its venue.
func (s *service) load(ctx context.Context, id uuid.UUID) (*Booking, *venues.Venue, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, s.mapError(err)
	}
	venue := booking.Venue
	if venue == nil {
		if venue, err = s.venueRepo.GetByID(ctx, booking.VenueID); err != nil {
			return nil, nil, s.mapError(err)
		}
	}
	return booking, venue, nil
}

func (s *service) withSlotLock(ctx context.Context, venueID uuid.UUID, day time.Time, fn func() error) error {
	release, err := s.locker.Lock(ctx, venueID, day)
	if err != nil {
		if errors.Is(err, ErrSlotLocked) {
			return apperrors.RetryableConflict("another booking for this venue and day is in progress, please retry")
		}
		return apperrors.Unavailable(err, "unable to reserve the slot")
	}
	defer release()
	return fn()
}

func (s *service) mapError(err error) error {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		return apperrors.NotFound("booking not found")
	case errors.Is(err, venues.ErrVenueNotFound):
		return apperrors.NotFound("venue not found")
	case errors.Is(err, ErrVersionConflict):
		return apperrors.RetryableConflict("booking was modified concurrently, please retry")
	case errors.Is(err, ErrSlotTaken):
		return errSlotUnavailable
	}
	return err
}

func (s *service) notifyParties(ctx context.Context, b *Booking, venue *venues.Venue, t notifications.NotificationType, subject, body string) {
	recipients := []uuid.UUID{b.UserID}
	if venue.OwnerID != b.UserID {
		recipients = append(recipients, venue.OwnerID)
	}

	msgs := make([]*notifications.Message, 0, len(recipients))
	for _, r := range recipients {
		msgs = append(msgs, notifications.NewMessageBuilder().
			WithType(t).
			WithRecipient(r).
			WithSubject(subject).
			WithBody(body).
			WithReference(b.BookingRef).
			WithTemplateData(map[string]interface{}{
				"booking_id": b.ID.String(),
				"venue_name": venue.Name,
				"slot":       b.Slot(),
				"status":     string(b.Status),
			}).
			Build())
	}
	s.notifier.Notify(ctx, msgs...)
}

type access struct {
	customer bool
	manager  bool
}

func accessFor(b *Booking, venue *venues.Venue, actorID uuid.UUID, role users.Role) access {
	return access{
		customer: b.UserID == actorID,
		manager:  role == users.RoleAdmin || venue.OwnedBy(actorID),
	}
}

type slotInput struct {
	day         time.Time
	startTime   string
	endTime     string
	startMinute int
	endMinute   int
}

func (s slotInput) String() string {
	return fmt.Sprintf("%s %s-%s", clock.FormatDate(s.day), s.startTime, s.endTime)
}

func parseSlot(date, startTime, endTime string) (slotInput, error) {
	day, err := clock.ParseDate(date)
	if err != nil {
		return slotInput{}, apperrors.Validation("%s", err.Error())
	}
	start, err := clock.Minutes(startTime)
	if err != nil {
		return slotInput{}, apperrors.Validation("start time: %s", err.Error())
	}
	end, err := clock.Minutes(endTime)
	if err != nil {
		return slotInput{}, apperrors.Validation("end time: %s", err.Error())
	}
	if end <= start {
		return slotInput{}, apperrors.Validation("end time must be after start time")
	}
	return slotInput{day: day, startTime: startTime, endTime: endTime, startMinute: start, endMinute: end}, nil
}

func paginate(items []Booking, total int64, query BookingListQuery) *PaginatedBookings {
	if items == nil {
		items = []Booking{}
	}
	return &PaginatedBookings{
		Bookings:   items,
		Pagination: response.NewPagination(query.Page, query.Limit, total),
	}
}

// generateBookingReference builds PREFIX-yyyymmdd-XXXXXX with six random
// uppercase letters.
func generateBookingReference(prefix string, now time.Time) (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), string(randomPart)), nil
}
