package payments

import (
	"fmt"
	"math"
	"strings"
	"time"

	"venuely/internal/bookings"
	"venuely/internal/shared/apperrors"

	"github.com/google/uuid"
)

// amountTolerance absorbs float noise when comparing whole-rupee amounts.
const amountTolerance = 0.005

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateAmount checks amount against the booking for the given type.
// minAdvancePercent is the deposit floor for ADVANCE, e.g. 20.
func ValidateAmount(t PaymentType, amount float64, b *bookings.Booking, minAdvancePercent float64) error {
	if amount <= 0 {
		return apperrors.Validation("amount must be greater than zero")
	}

	switch t {
	case PaymentTypeAdvance:
		minimum := roundCents(b.TotalAmount * minAdvancePercent / 100)
		if amount+amountTolerance < minimum {
			return apperrors.Validation("advance payment must be at least %.2f (%.0f%% of %.2f)", minimum, minAdvancePercent, b.TotalAmount)
		}
		if amount > b.TotalAmount+amountTolerance {
			return apperrors.Validation("advance payment cannot exceed the total amount %.2f", b.TotalAmount)
		}
	case PaymentTypeFull:
		if math.Abs(amount-b.TotalAmount) > amountTolerance {
			return apperrors.Validation("full payment must equal the total amount %.2f", b.TotalAmount)
		}
	case PaymentTypeBalance:
		expected := roundCents(b.TotalAmount - b.AdvancePaid)
		if expected <= 0 {
			return apperrors.InvalidState("booking has no outstanding balance")
		}
		if math.Abs(amount-expected) > amountTolerance {
			return apperrors.Validation("balance payment must equal the outstanding balance %.2f", expected)
		}
	default:
		return apperrors.Validation("invalid payment type %q", t)
	}
	return nil
}

// ApplyPayment credits a verified payment to its booking. AdvancePaid is the
// running amount paid, so FULL overwrites it and BALANCE adds to it.
func ApplyPayment(b *bookings.Booking, t PaymentType, amount float64) {
	switch t {
	case PaymentTypeAdvance:
		b.AdvancePaid = amount
		b.BalanceAmount = b.TotalAmount - amount
		b.PaymentStatus = bookings.PaymentStatusPartial
	case PaymentTypeFull:
		b.AdvancePaid = amount
		b.BalanceAmount = 0
		b.PaymentStatus = bookings.PaymentStatusPaid
	case PaymentTypeBalance:
		b.AdvancePaid += amount
		b.BalanceAmount = 0
		b.PaymentStatus = bookings.PaymentStatusPaid
	}
}

// CreditConflict reports why a verified payment can no longer be credited to
// b in its current state, or "" when ApplyPayment may run.
func CreditConflict(b *bookings.Booking, t PaymentType, amount float64) string {
	if !b.Status.IsActive() {
		return fmt.Sprintf("booking is %s", b.Status)
	}
	switch t {
	case PaymentTypeAdvance, PaymentTypeFull:
		if b.PaymentStatus != bookings.PaymentStatusUnpaid {
			return fmt.Sprintf("booking payment status is already %s", b.PaymentStatus)
		}
		if t == PaymentTypeFull && math.Abs(amount-b.TotalAmount) > amountTolerance {
			return fmt.Sprintf("full payment no longer matches the total amount %.2f", b.TotalAmount)
		}
		if amount > b.TotalAmount+amountTolerance {
			return fmt.Sprintf("advance payment exceeds the total amount %.2f", b.TotalAmount)
		}
	case PaymentTypeBalance:
		expected := roundCents(b.TotalAmount - b.AdvancePaid)
		if b.PaymentStatus == bookings.PaymentStatusPaid || expected <= 0 {
			return "booking has no outstanding balance"
		}
		if math.Abs(amount-expected) > amountTolerance {
			return fmt.Sprintf("balance payment no longer matches the outstanding balance %.2f", expected)
		}
	}
	return ""
}

// newRefund builds the PENDING refund row for original.
func newRefund(original *Payment, reason string, now time.Time) *Payment {
	return &Payment{
		BookingID:         original.BookingID,
		UserID:            original.UserID,
		VenueID:           original.VenueID,
		Amount:            -original.Amount,
		Gateway:           original.Gateway,
		PaymentType:       PaymentTypeRefund,
		Status:            StatusPending,
		ReferenceID:       generateReferenceID(now),
		OriginalPaymentID: &original.ID,
		RefundReason:      reason,
	}
}

// generateReferenceID returns TXN_<unix>_<8 hex>.
func generateReferenceID(now time.Time) string {
	short := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("TXN_%d_%s", now.Unix(), strings.ToUpper(short))
}
