package payments

import (
	"venuely/internal/bookings"
	"venuely/internal/payments/gateway"

	"github.com/google/uuid"
)

// InitiatePaymentResponse tells the client where to send the customer. eSewa
// returns form fields to POST, Khalti a hosted payment URL.
type InitiatePaymentResponse struct {
	PaymentID   uuid.UUID         `json:"payment_id"`
	ReferenceID string            `json:"reference_id"`
	Gateway     gateway.Gateway   `json:"gateway"`
	PaymentURL  string            `json:"payment_url,omitempty"`
	FormData    map[string]string `json:"form_data,omitempty"`
	Mock        bool              `json:"mock"`
}

type VerificationResult struct {
	PaymentID            uuid.UUID              `json:"payment_id"`
	ReferenceID          string                 `json:"reference_id"`
	Gateway              gateway.Gateway        `json:"gateway"`
	Status               Status                 `json:"status"`
	AlreadyProcessed     bool                   `json:"already_processed"`
	BookingID            uuid.UUID              `json:"booking_id"`
	BookingPaymentStatus bookings.PaymentStatus `json:"booking_payment_status,omitempty"`
	AdvancePaid          float64                `json:"advance_paid"`
	BalanceAmount        float64                `json:"balance_amount"`
	Message              string                 `json:"message"`
	// RefundID is set when the payment could not be credited to the booking.
	RefundID *uuid.UUID `json:"refund_id,omitempty"`
}

type RefundResponse struct {
	Message string   `json:"message"`
	Refund  *Payment `json:"refund"`
}

// PaymentEvent is published to the event exchange.
type PaymentEvent struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	BookingID   uuid.UUID       `json:"booking_id"`
	UserID      uuid.UUID       `json:"user_id"`
	VenueID     uuid.UUID       `json:"venue_id"`
	ReferenceID string          `json:"reference_id"`
	Gateway     gateway.Gateway `json:"gateway"`
	PaymentType PaymentType     `json:"payment_type"`
	Amount      float64         `json:"amount"`
	Status      Status          `json:"status"`
	OccurredAt  string          `json:"occurred_at"`
}
