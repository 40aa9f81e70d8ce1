package bookings

import (
	"fmt"
	"time"

	"venuely/internal/shared/clock"
	"venuely/internal/venues"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking reserves a venue for [StartTime, EndTime) on EventDate.
//
// AdvancePaid is the running total paid so far, not only the advance.
type Booking struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingRef string    `json:"booking_ref" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	VenueID    uuid.UUID `json:"venue_id" gorm:"type:uuid;not null;index:idx_bookings_venue_day,priority:1"`

	EventDate   time.Time `json:"event_date" gorm:"type:date;not null;index:idx_bookings_venue_day,priority:2"`
	StartTime   string    `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime     string    `json:"end_time" gorm:"type:varchar(5);not null"`
	StartMinute int       `json:"-" gorm:"not null"`
	EndMinute   int       `json:"-" gorm:"not null"`

	EventType       string `json:"event_type" gorm:"type:varchar(50);not null"`
	GuestCount      int    `json:"guest_count" gorm:"not null"`
	ContactName     string `json:"contact_name" gorm:"type:varchar(255)"`
	ContactPhone    string `json:"contact_phone" gorm:"type:varchar(20)"`
	ContactEmail    string `json:"contact_email" gorm:"type:varchar(255)"`
	SpecialRequests string `json:"special_requests" gorm:"type:text"`

	TotalAmount   float64       `json:"total_amount" gorm:"not null"`
	AdvancePaid   float64       `json:"advance_paid" gorm:"not null"`
	BalanceAmount float64       `json:"balance_amount" gorm:"not null"`
	Status        Status        `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`
	RefundAmount       float64    `json:"refund_amount"`
	RefundPercentage   float64    `json:"refund_percentage"`

	Version   int       `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Venue *venues.Venue `json:"venue,omitempty" gorm:"foreignKey:VenueID;constraint:OnDelete:RESTRICT;"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Slot renders the booking's date and times, e.g. "2025-06-01 10:00-12:00".
func (b *Booking) Slot() string {
	return fmt.Sprintf("%s %s-%s", clock.FormatDate(b.EventDate), b.StartTime, b.EndTime)
}

type BookingListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
	Page   int    `form:"page,default=1" binding:"omitempty,min=1"`
	Limit  int    `form:"limit,default=10" binding:"omitempty,min=1,max=100"`
}

func (q *BookingListQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
}
