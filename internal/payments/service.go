package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"venuely/internal/bookings"
	"venuely/internal/notifications"
	"venuely/internal/payments/gateway"
	"venuely/internal/shared/apperrors"
	"venuely/internal/shared/config"
	"venuely/internal/users"
	"venuely/pkg/logger"
	"venuely/pkg/mq"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("venuely/internal/payments")

// Event routing keys.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventRefundRequested  = "refund.requested"
	EventRefundSettled    = "refund.settled"
)

var openStatuses = []Status{StatusInitiated, StatusPending}

type Service interface {
	Initiate(ctx context.Context, requesterID uuid.UUID, req InitiatePaymentRequest) (*InitiatePaymentResponse, error)
	// Verify handles a gateway success redirect. Repeated calls for a
	// completed payment return AlreadyProcessed and change nothing.
	Verify(ctx context.Context, gatewayName string, params url.Values) (*VerificationResult, error)
	// Reconcile re-checks an open payment with the provider by reference.
	Reconcile(ctx context.Context, referenceID string) (*VerificationResult, error)
	// ReconcileStale re-checks open payments older than the configured age
	// and returns how many reached a final state.
	ReconcileStale(ctx context.Context) (int, error)

	InitiateRefund(ctx context.Context, paymentID, requesterID uuid.UUID, role users.Role, reason string) (*Payment, error)
	SettleRefund(ctx context.Context, refundID, actorID uuid.UUID) (*Payment, error)

	GetPayment(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*Payment, error)
	ListForBooking(ctx context.Context, bookingID, actorID uuid.UUID, role users.Role) ([]Payment, error)
	OwnerEarnings(ctx context.Context, ownerID uuid.UUID) (*Earnings, error)
}

type service struct {
	repo     Repository
	bookings bookings.Repository
	gateways *gateway.Registry
	events   mq.EventPublisher
	notifier notifications.Notifier
	cfg      config.PaymentsConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	bookingRepo bookings.Repository,
	gateways *gateway.Registry,
	events mq.EventPublisher,
	notifier notifications.Notifier,
	cfg config.PaymentsConfig,
	log *logger.Logger,
) Service {
	if cfg.InitiationTimeout <= 0 {
		cfg.InitiationTimeout = 15 * time.Second
	}
	if cfg.MinAdvancePercent <= 0 {
		cfg.MinAdvancePercent = 20
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 50
	}
	return &service{
		repo:     repo,
		bookings: bookingRepo,
		gateways: gateways,
		events:   events,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *service) Initiate(ctx context.Context, requesterID uuid.UUID, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	ctx, span := tracer.Start(ctx, "payments.Initiate")
	defer span.End()

	gw, err := gateway.Parse(req.Gateway)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	adapter, err := s.gateways.Get(gw)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if !req.PaymentType.IsChargeable() {
		return nil, apperrors.Validation("invalid payment type %q", req.PaymentType)
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, apperrors.Validation("booking_id must be a UUID")
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, mapError(err)
	}
	if booking.UserID != requesterID {
		return nil, apperrors.Forbidden("you can only pay for your own bookings")
	}
	if !booking.Status.IsActive() {
		return nil, apperrors.InvalidState("payments are only accepted for pending or confirmed bookings")
	}
	if booking.PaymentStatus == bookings.PaymentStatusPaid {
		return nil, apperrors.InvalidState("booking is already fully paid")
	}
	if err := ValidateAmount(req.PaymentType, req.Amount, booking, s.cfg.MinAdvancePercent); err != nil {
		return nil, err
	}
	if reason := CreditConflict(booking, req.PaymentType, req.Amount); reason != "" {
		return nil, apperrors.InvalidState("%s", reason)
	}

	payment := &Payment{
		BookingID:   booking.ID,
		UserID:      requesterID,
		VenueID:     booking.VenueID,
		Amount:      req.Amount,
		Gateway:     gw,
		PaymentType: req.PaymentType,
		Status:      StatusInitiated,
		ReferenceID: generateReferenceID(s.now()),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	span.SetAttributes(
		attribute.String("payment.reference", payment.ReferenceID),
		attribute.String("payment.gateway", string(gw)),
		attribute.Bool("payment.mock", adapter.Mock()),
	)

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.InitiationTimeout)
	defer cancel()
	init, err := adapter.Initiate(initCtx, gateway.InitiationRequest{
		ReferenceID:   payment.ReferenceID,
		Amount:        payment.Amount,
		BookingRef:    booking.BookingRef,
		CustomerName:  booking.ContactName,
		CustomerEmail: booking.ContactEmail,
		CustomerPhone: booking.ContactPhone,
	})
	if err != nil {
		// The INITIATED row stays behind for Reconcile.
		s.log.LogGatewayFailure(ctx, string(gw), "initiate", payment.ReferenceID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway initiation failed")
		return nil, apperrors.Unavailable(err, "payment initiation failed, retry with reference %s", payment.ReferenceID)
	}

	if init.ProviderReference != "" {
		if err := s.repo.SetTransactionID(ctx, payment.ID, init.ProviderReference); err != nil {
			return nil, fmt.Errorf("failed to store gateway reference: %w", err)
		}
		payment.TransactionID = init.ProviderReference
	}

	s.log.LogPaymentInitiated(ctx, payment.ID.String(), payment.ReferenceID, string(gw), payment.Amount)
	return &InitiatePaymentResponse{
		PaymentID:   payment.ID,
		ReferenceID: payment.ReferenceID,
		Gateway:     gw,
		PaymentURL:  init.PaymentURL,
		FormData:    init.FormData,
		Mock:        init.Mock,
	}, nil
}

func (s *service) Verify(ctx context.Context, gatewayName string, params url.Values) (*VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "payments.Verify")
	defer span.End()

	gw, err := gateway.Parse(gatewayName)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	adapter, err := s.gateways.Get(gw)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	cb, err := adapter.ParseCallback(params)
	if err != nil {
		return nil, apperrors.Validation("invalid %s callback: %s", gw, err.Error())
	}

	var payment *Payment
	if pidx := cb.ProviderReference(); pidx != "" {
		payment, err = s.repo.GetByTransactionID(ctx, string(gw), pidx)
	} else {
		payment, err = s.repo.GetByReference(ctx, cb.ReferenceID())
	}
	if err != nil {
		return nil, mapError(err)
	}
	if payment.Gateway != gw {
		return nil, apperrors.NotFound("payment not found")
	}
	span.SetAttributes(attribute.String("payment.reference", payment.ReferenceID))

	return s.settle(ctx, adapter, payment, func(ctx context.Context) (gateway.Outcome, error) {
		return adapter.Verify(ctx, cb)
	})
}

func (s *service) Reconcile(ctx context.Context, referenceID string) (*VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "payments.Reconcile")
	defer span.End()

	payment, err := s.repo.GetByReference(ctx, referenceID)
	if err != nil {
		return nil, mapError(err)
	}
	return s.reconcile(ctx, payment)
}

func (s *service) reconcile(ctx context.Context, payment *Payment) (*VerificationResult, error) {
	adapter, err := s.gateways.Get(payment.Gateway)
	if err != nil {
		return nil, apperrors.Internal(err, "no adapter for gateway %s", payment.Gateway)
	}
	return s.settle(ctx, adapter, payment, func(ctx context.Context) (gateway.Outcome, error) {
		if payment.Gateway == gateway.Khalti && payment.TransactionID == "" {
			// Initiation never returned a pidx, so the customer never reached Khalti.
			return gateway.Failed{Reason: "initiation never completed"}, nil
		}
		return adapter.Lookup(ctx, gateway.LookupRequest{
			ReferenceID:   payment.ReferenceID,
			TransactionID: payment.TransactionID,
			Amount:        payment.Amount,
		})
	})
}

func (s *service) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.ReconcileAfter)
	stale, err := s.repo.ListStale(ctx, cutoff, s.cfg.ReconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}

	settled := 0
	for i := range stale {
		p := &stale[i]
		res, err := s.reconcile(ctx, p)
		if err != nil {
			s.log.WarnContext(ctx, "Payment reconciliation failed", "reference_id", p.ReferenceID, "error", err)
			continue
		}
		if !res.Status.IsOpen() {
			settled++
		}
	}
	return settled, nil
}

// settle runs check and records its outcome. It never touches a payment that
// has already left INITIATED/PENDING.
func (s *service) settle(ctx context.Context, adapter gateway.Adapter, payment *Payment, check func(context.Context) (gateway.Outcome, error)) (*VerificationResult, error) {
	if payment.PaymentType == PaymentTypeRefund {
		return nil, apperrors.InvalidState("refunds are settled by an administrator")
	}
	if !payment.Status.IsOpen() {
		return s.result(ctx, payment, true, "payment already processed"), nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.InitiationTimeout)
	defer cancel()
	outcome, err := check(checkCtx)
	if err != nil {
		s.log.LogGatewayFailure(ctx, string(adapter.Gateway()), "verify", payment.ReferenceID, err)
		return nil, apperrors.Unavailable(err, "payment verification failed")
	}

	switch o := outcome.(type) {
	case gateway.Succeeded:
		return s.complete(ctx, payment, o)
	case gateway.Failed:
		return s.close(ctx, payment, StatusFailed, o.Raw, o.Reason)
	case gateway.Pending:
		return s.close(ctx, payment, StatusPending, o.Raw, "payment is pending at the gateway")
	}
	return nil, apperrors.Internal(nil, "unexpected gateway outcome %T", outcome)
}

// complete marks payment COMPLETED and credits its booking. When the booking
// changed since initiation (cancelled, or paid by another payment) the money
// is not credited and a PENDING refund for the whole amount is raised instead.
func (s *service) complete(ctx context.Context, payment *Payment, o gateway.Succeeded) (*VerificationResult, error) {
	now := s.now()
	var (
		booking  *bookings.Booking
		surplus  *Payment
		conflict string
	)

	err := s.repo.Transaction(ctx, func(tx Repository, txBookings bookings.Repository) error {
		changed, err := tx.Transition(ctx, payment.ID, openStatuses, StatusCompleted, Update{
			TransactionID:   o.TransactionID,
			GatewayResponse: o.Raw,
			VerifiedAt:      &now,
		})
		if err != nil || !changed {
			return err
		}

		b, err := txBookings.GetByIDForUpdate(ctx, payment.BookingID)
		if err != nil {
			return err
		}
		booking = b

		if conflict = CreditConflict(b, payment.PaymentType, payment.Amount); conflict != "" {
			surplus = newRefund(payment, "payment not applied: "+conflict, now)
			return tx.Create(ctx, surplus)
		}
		ApplyPayment(b, payment.PaymentType, payment.Amount)
		return txBookings.Save(ctx, b)
	})
	if err != nil {
		return nil, mapError(err)
	}

	if booking == nil {
		// Lost the race to another verification of the same payment.
		fresh, err := s.repo.GetByID(ctx, payment.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return s.result(ctx, fresh, true, "payment already processed"), nil
	}

	payment.Status = StatusCompleted
	payment.VerifiedAt = &now
	if o.TransactionID != "" {
		payment.TransactionID = o.TransactionID
	}
	s.log.LogPaymentVerified(ctx, payment.ID.String(), payment.ReferenceID, string(StatusCompleted))
	s.publish(ctx, EventPaymentCompleted, payment)

	message := "payment verified"
	if surplus != nil {
		message = fmt.Sprintf("payment received but not applied (%s), refund %s raised", conflict, surplus.ReferenceID)
		s.log.WarnContext(ctx, "Payment Not Applied",
			"payment_id", payment.ID, "booking_id", booking.ID, "refund_id", surplus.ID,
			"amount", payment.Amount, "reason", conflict)
		s.publish(ctx, EventRefundRequested, surplus)
		s.notify(ctx, surplus, notifications.NotificationTypeRefundRequested, "Payment will be refunded",
			fmt.Sprintf("Your payment %s of %.2f could not be applied to booking %s (%s). A refund has been raised.",
				payment.ReferenceID, payment.Amount, booking.BookingRef, conflict))
	} else {
		s.notify(ctx, payment, notifications.NotificationTypePaymentCompleted, "Payment received",
			fmt.Sprintf("We received your %s payment of %.2f for booking %s. Balance due: %.2f.",
				payment.PaymentType, payment.Amount, booking.BookingRef, booking.BalanceAmount))
	}

	res := &VerificationResult{
		PaymentID:            payment.ID,
		ReferenceID:          payment.ReferenceID,
		Gateway:              payment.Gateway,
		Status:               StatusCompleted,
		BookingID:            booking.ID,
		BookingPaymentStatus: booking.PaymentStatus,
		AdvancePaid:          booking.AdvancePaid,
		BalanceAmount:        booking.BalanceAmount,
		Message:              message,
	}
	if surplus != nil {
		res.RefundID = &surplus.ID
	}
	return res, nil
}

// close records a non-success outcome. The booking is left alone.
func (s *service) close(ctx context.Context, payment *Payment, to Status, raw []byte, message string) (*VerificationResult, error) {
	changed, err := s.repo.Transition(ctx, payment.ID, openStatuses, to, Update{GatewayResponse: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if !changed {
		fresh, err := s.repo.GetByID(ctx, payment.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return s.result(ctx, fresh, true, "payment already processed"), nil
	}
	payment.Status = to

	s.log.LogPaymentVerified(ctx, payment.ID.String(), payment.ReferenceID, string(to))
	if to == StatusFailed {
		s.publish(ctx, EventPaymentFailed, payment)
		s.notify(ctx, payment, notifications.NotificationTypePaymentFailed, "Payment failed",
			fmt.Sprintf("Your payment %s of %.2f could not be completed: %s.", payment.ReferenceID, payment.Amount, message))
	}
	return s.result(ctx, payment, false, message), nil
}

func (s *service) result(ctx context.Context, payment *Payment, alreadyProcessed bool, message string) *VerificationResult {
	res := &VerificationResult{
		PaymentID:        payment.ID,
		ReferenceID:      payment.ReferenceID,
		Gateway:          payment.Gateway,
		Status:           payment.Status,
		AlreadyProcessed: alreadyProcessed,
		BookingID:        payment.BookingID,
		Message:          message,
	}
	if b, err := s.bookings.GetByID(ctx, payment.BookingID); err == nil {
		res.BookingPaymentStatus = b.PaymentStatus
		res.AdvancePaid = b.AdvancePaid
		res.BalanceAmount = b.BalanceAmount
	}
	return res
}

func (s *service) InitiateRefund(ctx context.Context, paymentID, requesterID uuid.UUID, role users.Role, reason string) (*Payment, error) {
	original, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, mapError(err)
	}
	if original.UserID != requesterID && role != users.RoleAdmin {
		return nil, apperrors.Forbidden("you can only refund your own payments")
	}
	if original.PaymentType == PaymentTypeRefund || original.Status != StatusCompleted {
		return nil, apperrors.InvalidState("only completed payments can be refunded")
	}

	refund := newRefund(original, reason, s.now())
	err = s.repo.Transaction(ctx, func(tx Repository, _ bookings.Repository) error {
		if _, err := tx.FindLiveRefund(ctx, original.ID); err == nil {
			return ErrDuplicateRefund
		} else if !errors.Is(err, ErrPaymentNotFound) {
			return err
		}
		return tx.Create(ctx, refund)
	})
	if err != nil {
		return nil, mapError(err)
	}

	s.log.InfoContext(ctx, "Refund Requested",
		"refund_id", refund.ID, "original_payment_id", original.ID, "amount", refund.Amount, "requested_by", requesterID)
	s.publish(ctx, EventRefundRequested, refund)
	s.notify(ctx, refund, notifications.NotificationTypeRefundRequested, "Refund requested",
		fmt.Sprintf("A refund of %.2f for payment %s has been requested and will be settled shortly.", -refund.Amount, original.ReferenceID))
	return refund, nil
}

// SettleRefund records that a pending refund was paid out: the refund row
// completes, the original becomes REFUNDED and so does the booking.
func (s *service) SettleRefund(ctx context.Context, refundID, actorID uuid.UUID) (*Payment, error) {
	var refund *Payment
	now := s.now()

	err := s.repo.Transaction(ctx, func(tx Repository, txBookings bookings.Repository) error {
		r, err := tx.GetByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r.PaymentType != PaymentTypeRefund {
			return apperrors.InvalidState("payment %s is not a refund", r.ReferenceID)
		}
		changed, err := tx.Transition(ctx, r.ID, []Status{StatusPending}, StatusCompleted, Update{VerifiedAt: &now})
		if err != nil {
			return err
		}
		if !changed {
			return apperrors.InvalidState("refund is not pending")
		}
		if r.OriginalPaymentID != nil {
			if _, err := tx.Transition(ctx, *r.OriginalPaymentID, []Status{StatusCompleted}, StatusRefunded, Update{}); err != nil {
				return err
			}
		}

		b, err := txBookings.GetByIDForUpdate(ctx, r.BookingID)
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
		case err != nil:
			return err
		default:
			b.PaymentStatus = bookings.PaymentStatusRefunded
			if err := txBookings.Save(ctx, b); err != nil {
				return err
			}
		}

		r.Status = StatusCompleted
		r.VerifiedAt = &now
		refund = r
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	s.log.InfoContext(ctx, "Refund Settled", "refund_id", refund.ID, "settled_by", actorID)
	s.publish(ctx, EventRefundSettled, refund)
	s.notify(ctx, refund, notifications.NotificationTypeRefundSettled, "Refund completed",
		fmt.Sprintf("Your refund of %.2f has been completed.", -refund.Amount))
	return refund, nil
}

func (s *service) GetPayment(ctx context.Context, id, actorID uuid.UUID, role users.Role) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if payment.UserID == actorID || role == users.RoleAdmin {
		return payment, nil
	}
	b, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil || b.Venue == nil || !b.Venue.OwnedBy(actorID) {
		return nil, apperrors.Forbidden("you are not allowed to view this payment")
	}
	return payment, nil
}

func (s *service) ListForBooking(ctx context.Context, bookingID, actorID uuid.UUID, role users.Role) ([]Payment, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, mapError(err)
	}
	owner := b.Venue != nil && b.Venue.OwnedBy(actorID)
	if b.UserID != actorID && role != users.RoleAdmin && !owner {
		return nil, apperrors.Forbidden("you are not allowed to view payments for this booking")
	}

	items, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	if items == nil {
		items = []Payment{}
	}
	return items, nil
}

func (s *service) OwnerEarnings(ctx context.Context, ownerID uuid.UUID) (*Earnings, error) {
	totals, err := s.repo.OwnerTotals(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	earnings := ComputeEarnings(totals.TotalCompleted, totals.TotalRefunds, s.cfg.PlatformFeePercent)
	earnings.OwnerID = ownerID
	earnings.CompletedPayments = totals.CompletedPayments
	return &earnings, nil
}

func (s *service) publish(ctx context.Context, key string, p *Payment) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	err := s.events.PublishJSON(ctx, key, PaymentEvent{
		PaymentID:   p.ID,
		BookingID:   p.BookingID,
		UserID:      p.UserID,
		VenueID:     p.VenueID,
		ReferenceID: p.ReferenceID,
		Gateway:     p.Gateway,
		PaymentType: p.PaymentType,
		Amount:      p.Amount,
		Status:      p.Status,
		OccurredAt:  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to publish payment event", "key", key, "payment_id", p.ID, "error", err)
	}
}

func (s *service) notify(ctx context.Context, p *Payment, t notifications.NotificationType, subject, body string) {
	s.notifier.Notify(ctx, notifications.NewMessageBuilder().
		WithType(t).
		WithRecipient(p.UserID).
		WithSubject(subject).
		WithBody(body).
		WithReference(p.ReferenceID).
		WithTemplateData(map[string]interface{}{
			"payment_id":   p.ID.String(),
			"booking_id":   p.BookingID.String(),
			"amount":       p.Amount,
			"payment_type": string(p.PaymentType),
		}).
		Build())
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return apperrors.NotFound("payment not found")
	case errors.Is(err, bookings.ErrBookingNotFound):
		return apperrors.NotFound("booking not found")
	case errors.Is(err, bookings.ErrVersionConflict):
		return apperrors.RetryableConflict("booking was modified concurrently, please retry")
	case errors.Is(err, ErrDuplicateRefund):
		return apperrors.Conflict("a refund has already been requested for this payment")
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("payment operation failed: %w", err)
}
