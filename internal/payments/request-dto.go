package payments

type InitiatePaymentRequest struct {
	BookingID   string      `json:"booking_id" binding:"required,uuid"`
	Amount      float64     `json:"amount" binding:"required,gt=0"`
	Gateway     string      `json:"gateway" binding:"required"`
	PaymentType PaymentType `json:"payment_type" binding:"required,oneof=ADVANCE FULL BALANCE"`
}

type RefundRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}
