package venues

import (
	"slices"
	"time"

	"venuely/internal/cancellation"
	"venuely/internal/shared/clock"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Venue is a bookable space listed by an owner.
type Venue struct {
	ID           uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID      uuid.UUID                   `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name         string                      `json:"name" gorm:"type:varchar(255);not null"`
	Description  string                      `json:"description" gorm:"type:text"`
	Address      string                      `json:"address" gorm:"type:varchar(500);not null"`
	City         string                      `json:"city" gorm:"type:varchar(100);not null;index"`
	MinCapacity  int                         `json:"min_capacity" gorm:"not null;default:1"`
	MaxCapacity  int                         `json:"max_capacity" gorm:"not null"`
	PricePerHour float64                     `json:"price_per_hour" gorm:"not null"`
	OpeningTime  string                      `json:"opening_time" gorm:"type:varchar(5);not null;default:'08:00'"`
	ClosingTime  string                      `json:"closing_time" gorm:"type:varchar(5);not null;default:'22:00'"`
	BlockedDates datatypes.JSONSlice[string] `json:"blocked_dates"`

	CancellationPolicy cancellation.Policy `json:"cancellation_policy" gorm:"embedded;embeddedPrefix:cancellation_"`

	IsActive  bool      `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Venue) TableName() string {
	return "venues"
}

func (v *Venue) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// IsBlocked reports whether the calendar day containing date is blocked.
func (v *Venue) IsBlocked(date time.Time) bool {
	return slices.Contains(v.BlockedDates, clock.FormatDate(clock.Day(date)))
}

func (v *Venue) OwnedBy(userID uuid.UUID) bool {
	return v.OwnerID == userID
}

// FitsGuests reports whether guestCount is inside the venue's capacity range.
func (v *Venue) FitsGuests(guestCount int) bool {
	return guestCount >= v.MinCapacity && guestCount <= v.MaxCapacity
}

type VenueFilters struct {
	City     string   `form:"city"`
	Search   string   `form:"search" binding:"omitempty,max=100"`
	Guests   int      `form:"guests" binding:"omitempty,min=1"`
	MaxPrice *float64 `form:"max_price" binding:"omitempty,min=0"`
	Page     int      `form:"page,default=1" binding:"omitempty,min=1"`
	Limit    int      `form:"limit,default=20" binding:"omitempty,min=1,max=100"`

	OwnerID         *uuid.UUID `form:"-"`
	IncludeInactive bool       `form:"-"`
}

func (f *VenueFilters) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}
