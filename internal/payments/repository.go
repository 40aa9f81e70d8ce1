package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"venuely/internal/bookings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDuplicateRefund means a live refund already exists for the original.
	ErrDuplicateRefund = errors.New("refund already requested")
)

type Repository interface {
	// Transaction runs fn with payment and booking repositories bound to one
	// DB transaction.
	Transaction(ctx context.Context, fn func(tx Repository, txBookings bookings.Repository) error) error

	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByReference(ctx context.Context, referenceID string) (*Payment, error)
	GetByTransactionID(ctx context.Context, gw string, transactionID string) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error)
	SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error

	// Transition moves a payment from one of the from statuses to `to` and
	// reports whether a row changed. This is what makes verification
	// idempotent.
	Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, update Update) (bool, error)

	FindLiveRefund(ctx context.Context, originalID uuid.UUID) (*Payment, error)
	// ListStale returns open, non-refund payments created before cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]Payment, error)
	OwnerTotals(ctx context.Context, ownerID uuid.UUID) (OwnerTotals, error)
}

// Update carries the optional columns written by Transition.
type Update struct {
	TransactionID   string
	GatewayResponse json.RawMessage
	VerifiedAt      *time.Time
}

type OwnerTotals struct {
	TotalCompleted    float64
	TotalRefunds      float64
	CompletedPayments int64
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository, txBookings bookings.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx}, bookings.NewRepository(tx))
	})
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && payment.PaymentType == PaymentTypeRefund {
		return ErrDuplicateRefund
	}
	return err
}

func (r *repository) first(ctx context.Context, query string, args ...interface{}) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).Where(query, args...).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByReference(ctx context.Context, referenceID string) (*Payment, error) {
	return r.first(ctx, "reference_id = ?", referenceID)
}

func (r *repository) GetByTransactionID(ctx context.Context, gw string, transactionID string) (*Payment, error) {
	return r.first(ctx, "gateway = ? AND transaction_id = ?", gw, transactionID)
}

func (r *repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error) {
	var items []Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at").
		Find(&items).Error
	return items, err
}

func (r *repository) SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error {
	res := r.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", id).
		Updates(map[string]interface{}{"transaction_id": transactionID, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, update Update) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.TransactionID != "" {
		values["transaction_id"] = update.TransactionID
	}
	if len(update.GatewayResponse) > 0 {
		values["gateway_response"] = datatypes.JSON(update.GatewayResponse)
	}
	if update.VerifiedAt != nil {
		values["verified_at"] = *update.VerifiedAt
	}

	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindLiveRefund(ctx context.Context, originalID uuid.UUID) (*Payment, error) {
	return r.first(ctx, "original_payment_id = ? AND payment_type = ? AND status <> ?", originalID, PaymentTypeRefund, StatusFailed)
}

func (r *repository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]Payment, error) {
	var items []Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND payment_type <> ? AND created_at < ?", []Status{StatusInitiated, StatusPending}, PaymentTypeRefund, cutoff).
		Order("created_at").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// OwnerTotals sums the ledger over every venue the owner holds. Payments
// later refunded still count as collected; the refund row is subtracted.
func (r *repository) OwnerTotals(ctx context.Context, ownerID uuid.UUID) (OwnerTotals, error) {
	var totals OwnerTotals
	err := r.db.WithContext(ctx).
		Model(&Payment{}).
		Select(`COALESCE(SUM(CASE WHEN payments.payment_type <> ? AND payments.status IN ? THEN payments.amount ELSE 0 END), 0) AS total_completed,
			COALESCE(SUM(CASE WHEN payments.payment_type = ? AND payments.status <> ? THEN -payments.amount ELSE 0 END), 0) AS total_refunds,
			COALESCE(SUM(CASE WHEN payments.payment_type <> ? AND payments.status IN ? THEN 1 ELSE 0 END), 0) AS completed_payments`,
			PaymentTypeRefund, []Status{StatusCompleted, StatusRefunded},
			PaymentTypeRefund, StatusFailed,
			PaymentTypeRefund, []Status{StatusCompleted, StatusRefunded}).
		Joins("JOIN venues ON venues.id = payments.venue_id").
		Where("venues.owner_id = ?", ownerID).
		Scan(&totals).Error
	return totals, err
}
