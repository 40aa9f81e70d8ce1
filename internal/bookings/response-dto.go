package bookings

import (
	"venuely/internal/cancellation"
	"venuely/internal/shared/utils/response"

	"github.com/google/uuid"
)

type PaginatedBookings struct {
	Bookings   []Booking           `json:"bookings"`
	Pagination response.Pagination `json:"pagination"`
}

type RefundEstimateResponse struct {
	BookingID          uuid.UUID           `json:"booking_id"`
	HoursUntilEvent    float64             `json:"hours_until_event"`
	PaidAmount         float64             `json:"paid_amount"`
	RefundAmount       float64             `json:"refund_amount"`
	RefundPercentage   float64             `json:"refund_percentage"`
	Message            string              `json:"message"`
	CancellationPolicy cancellation.Policy `json:"cancellation_policy"`
}
