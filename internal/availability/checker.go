// Package availability answers whether a venue slot can be booked.
package availability

import (
	"context"
	"fmt"
	"time"

	"venuely/internal/shared/clock"
	"venuely/internal/venues"

	"github.com/google/uuid"
)

// Slot is an occupied interval on a venue day, in minutes since midnight.
type Slot struct {
	BookingID uuid.UUID `json:"booking_id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Start     int       `json:"-"`
	End       int       `json:"-"`
}

// BookingReader lists the PENDING and CONFIRMED bookings of a venue day.
// excludeID, when set, is left out of the result.
type BookingReader interface {
	ActiveSlots(ctx context.Context, venueID uuid.UUID, day time.Time, excludeID *uuid.UUID) ([]Slot, error)
}

type DayAvailability struct {
	VenueID     uuid.UUID `json:"venue_id"`
	Date        string    `json:"date"`
	Available   bool      `json:"available"`
	OpeningTime string    `json:"opening_time"`
	ClosingTime string    `json:"closing_time"`
	BookedSlots []Slot    `json:"booked_slots"`
}

type Checker struct {
	reader BookingReader
}

func NewChecker(reader BookingReader) *Checker {
	return &Checker{reader: reader}
}

// IsAvailable reports whether [startTime, endTime) on date is free at venue.
// Blocked days are never available. Slots that only touch an existing
// booking's boundary are free.
func (c *Checker) IsAvailable(ctx context.Context, venue *venues.Venue, date time.Time, startTime, endTime string, excludeID *uuid.UUID) (bool, error) {
	day := clock.Day(date)
	if venue.IsBlocked(day) {
		return false, nil
	}

	start, err := clock.Minutes(startTime)
	if err != nil {
		return false, err
	}
	end, err := clock.Minutes(endTime)
	if err != nil {
		return false, err
	}

	slots, err := c.reader.ActiveSlots(ctx, venue.ID, day, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to load booked slots: %w", err)
	}
	for _, s := range slots {
		if clock.Overlaps(start, end, s.Start, s.End) {
			return false, nil
		}
	}
	return true, nil
}

// Day returns the venue's hours and booked slots for the given day.
func (c *Checker) Day(ctx context.Context, venue *venues.Venue, date time.Time) (*DayAvailability, error) {
	day := clock.Day(date)
	slots, err := c.reader.ActiveSlots(ctx, venue.ID, day, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked slots: %w", err)
	}
	if slots == nil {
		slots = []Slot{}
	}
	return &DayAvailability{
		VenueID:     venue.ID,
		Date:        clock.FormatDate(day),
		Available:   venue.IsActive && !venue.IsBlocked(day),
		OpeningTime: venue.OpeningTime,
		ClosingTime: venue.ClosingTime,
		BookedSlots: slots,
	}, nil
}
