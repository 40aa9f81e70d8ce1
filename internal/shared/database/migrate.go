package database

import (
	"venuely/internal/bookings"
	"venuely/internal/notifications"
	"venuely/internal/payments"
	"venuely/internal/users"
	"venuely/internal/venues"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&venues.Venue{},
		&bookings.Booking{},
		&payments.Payment{},
		&notifications.Notification{},
	)
}
