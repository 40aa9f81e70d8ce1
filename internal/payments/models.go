package payments

import (
	"time"

	"venuely/internal/payments/gateway"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentType string

const (
	PaymentTypeAdvance PaymentType = "ADVANCE"
	PaymentTypeFull    PaymentType = "FULL"
	PaymentTypeBalance PaymentType = "BALANCE"
	PaymentTypeRefund  PaymentType = "REFUND"
)

// IsChargeable reports whether a customer may initiate this type.
func (t PaymentType) IsChargeable() bool {
	return t == PaymentTypeAdvance || t == PaymentTypeFull || t == PaymentTypeBalance
}

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// IsOpen reports whether the payment still awaits a gateway result.
func (s Status) IsOpen() bool {
	return s == StatusInitiated || s == StatusPending
}

// Payment is one row of the payment ledger. Refunds are separate rows with a
// negative amount pointing at the original payment.
type Payment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `json:"booking_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	VenueID   uuid.UUID `json:"venue_id" gorm:"type:uuid;not null;index"`

	Amount      float64         `json:"amount" gorm:"not null"`
	Gateway     gateway.Gateway `json:"gateway" gorm:"type:varchar(20);not null"`
	PaymentType PaymentType     `json:"payment_type" gorm:"type:varchar(20);not null"`
	Status      Status          `json:"status" gorm:"type:varchar(20);not null;index"`

	ReferenceID     string         `json:"reference_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	TransactionID   string         `json:"transaction_id,omitempty" gorm:"type:varchar(128);index"`
	GatewayResponse datatypes.JSON `json:"gateway_response,omitempty"`

	// At most one live refund per original payment.
	OriginalPaymentID *uuid.UUID `json:"original_payment_id,omitempty" gorm:"type:uuid;index:idx_payments_live_refund,unique,where:status <> 'FAILED'"`
	RefundReason      string     `json:"refund_reason,omitempty" gorm:"type:text"`

	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Earnings is an owner's payout view over the ledger.
type Earnings struct {
	OwnerID            uuid.UUID `json:"owner_id"`
	TotalCompleted     float64   `json:"total_completed"`
	TotalRefunds       float64   `json:"total_refunds"`
	PlatformFeePercent float64   `json:"platform_fee_percent"`
	PlatformFee        float64   `json:"platform_fee"`
	NetEarnings        float64   `json:"net_earnings"`
	CompletedPayments  int64     `json:"completed_payments"`
}

// ComputeEarnings applies net = completed - refunds - completed*feePercent/100.
func ComputeEarnings(totalCompleted, totalRefunds, feePercent float64) Earnings {
	fee := roundCents(totalCompleted * feePercent / 100)
	return Earnings{
		TotalCompleted:     totalCompleted,
		TotalRefunds:       totalRefunds,
		PlatformFeePercent: feePercent,
		PlatformFee:        fee,
		NetEarnings:        roundCents(totalCompleted - totalRefunds - fee),
	}
}
