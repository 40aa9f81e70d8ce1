package bookings

import (
	"context"
	"errors"
	"time"

	"venuely/internal/availability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("booking was modified concurrently")
	// ErrSlotTaken is raised by the database exclusion constraint.
	ErrSlotTaken = errors.New("time slot already booked")
)

type Repository interface {
	// Transaction runs fn with a repository bound to a single DB transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// GetByIDForUpdate takes a row lock where the database supports it.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)
	// Save writes the mutable columns if booking.Version still matches and
	// bumps the version on success.
	Save(ctx context.Context, booking *Booking) error
	// DeletePending removes a PENDING booking at the given version.
	DeletePending(ctx context.Context, booking *Booking) error

	ListByUser(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
	// ListByOwner lists bookings on the owner's venues; uuid.Nil lists all.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)

	availability.BookingReader
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	if booking.Version == 0 {
		booking.Version = 1
	}
	return mapWriteError(r.db.WithContext(ctx).Omit(clause.Associations).Create(booking).Error)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Preload("Venue").First(&booking, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) Save(ctx context.Context, booking *Booking) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND version = ?", booking.ID, booking.Version).
		Updates(map[string]interface{}{
			"event_date":          booking.EventDate,
			"start_time":          booking.StartTime,
			"end_time":            booking.EndTime,
			"start_minute":        booking.StartMinute,
			"end_minute":          booking.EndMinute,
			"total_amount":        booking.TotalAmount,
			"advance_paid":        booking.AdvancePaid,
			"balance_amount":      booking.BalanceAmount,
			"status":              booking.Status,
			"payment_status":      booking.PaymentStatus,
			"cancelled_at":        booking.CancelledAt,
			"cancellation_reason": booking.CancellationReason,
			"refund_amount":       booking.RefundAmount,
			"refund_percentage":   booking.RefundPercentage,
			"version":             booking.Version + 1,
			"updated_at":          now,
		})
	if res.Error != nil {
		return mapWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	booking.Version++
	booking.UpdatedAt = now
	return nil
}

func (r *repository) DeletePending(ctx context.Context, booking *Booking) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ? AND status = ?", booking.ID, booking.Version, StatusPending).
		Delete(&Booking{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *repository) ActiveSlots(ctx context.Context, venueID uuid.UUID, day time.Time, excludeID *uuid.UUID) ([]availability.Slot, error) {
	query := r.db.WithContext(ctx).
		Model(&Booking{}).
		Select("id, start_time, end_time, start_minute, end_minute").
		Where("venue_id = ? AND event_date = ? AND status IN ?", venueID, day, activeStatuses())
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var rows []Booking
	if err := query.Order("start_minute").Find(&rows).Error; err != nil {
		return nil, err
	}

	slots := make([]availability.Slot, 0, len(rows))
	for _, b := range rows {
		slots = append(slots, availability.Slot{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Start:     b.StartMinute,
			End:       b.EndMinute,
		})
	}
	return slots, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).Model(&Booking{}).Where("bookings.user_id = ?", userID)
	return r.list(base, query)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).Model(&Booking{})
	if ownerID != uuid.Nil {
		base = base.Joins("JOIN venues ON venues.id = bookings.venue_id").
			Where("venues.owner_id = ?", ownerID)
	}
	return r.list(base, query)
}

func (r *repository) list(base *gorm.DB, query BookingListQuery) ([]Booking, int64, error) {
	query.normalize()
	if query.Status != "" {
		base = base.Where("bookings.status = ?", query.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Booking
	err := base.
		Preload("Venue").
		Order("bookings.event_date DESC, bookings.start_minute").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&items).Error
	return items, total, err
}

// mapWriteError turns the slot exclusion constraint into ErrSlotTaken.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return ErrSlotTaken
	}
	return err
}
