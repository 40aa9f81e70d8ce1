package bookings

type CreateBookingRequest struct {
	VenueID         string `json:"venue_id" binding:"required,uuid"`
	EventDate       string `json:"event_date" binding:"required"`
	StartTime       string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime         string `json:"end_time" binding:"required,datetime=15:04"`
	EventType       string `json:"event_type" binding:"required,max=50"`
	GuestCount      int    `json:"guest_count" binding:"required,min=1"`
	ContactName     string `json:"contact_name" binding:"omitempty,max=255"`
	ContactPhone    string `json:"contact_phone" binding:"omitempty,max=20"`
	ContactEmail    string `json:"contact_email" binding:"omitempty,email"`
	SpecialRequests string `json:"special_requests" binding:"omitempty,max=2000"`
}

// UpdateStatusRequest changes the booking status, the payment status, or both.
type UpdateStatusRequest struct {
	Status        *Status        `json:"status"`
	PaymentStatus *PaymentStatus `json:"payment_status"`
	Reason        string         `json:"reason" binding:"omitempty,max=1000"`
}

type RescheduleRequest struct {
	EventDate string `json:"event_date" binding:"required"`
	StartTime string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime   string `json:"end_time" binding:"required,datetime=15:04"`
}
