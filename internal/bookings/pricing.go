package bookings

import (
	"venuely/internal/shared/clock"
)

// CalculateTotal prices a slot by whole hours: minutes are dropped from both
// ends before multiplying, so 10:30-12:00 is charged as two hours.
func CalculateTotal(startTime, endTime string, pricePerHour float64) (float64, error) {
	start, err := clock.Hour(startTime)
	if err != nil {
		return 0, err
	}
	end, err := clock.Hour(endTime)
	if err != nil {
		return 0, err
	}
	return float64(end-start) * pricePerHour, nil
}
