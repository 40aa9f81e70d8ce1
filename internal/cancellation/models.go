package cancellation

import (
	"fmt"
)

// Policy is the refund schedule a venue owner attaches to their venue.
// It is embedded in the venue row with the cancellation_ column prefix.
type Policy struct {
	FullRefundHours         int     `json:"full_refund_hours" gorm:"not null"`
	PartialRefundHours      int     `json:"partial_refund_hours" gorm:"not null"`
	PartialRefundPercentage float64 `json:"partial_refund_percentage" gorm:"not null"`
	NoRefundHours           int     `json:"no_refund_hours" gorm:"not null"`
}

func DefaultPolicy() Policy {
	return Policy{
		FullRefundHours:         72,
		PartialRefundHours:      24,
		PartialRefundPercentage: 50,
		NoRefundHours:           0,
	}
}

// Validate enforces full >= partial >= none >= 0 and a percentage in [0,100].
func (p Policy) Validate() error {
	if p.NoRefundHours < 0 {
		return fmt.Errorf("no refund hours cannot be negative")
	}
	if p.PartialRefundHours < p.NoRefundHours {
		return fmt.Errorf("partial refund hours (%d) must be at least no refund hours (%d)", p.PartialRefundHours, p.NoRefundHours)
	}
	if p.FullRefundHours < p.PartialRefundHours {
		return fmt.Errorf("full refund hours (%d) must be at least partial refund hours (%d)", p.FullRefundHours, p.PartialRefundHours)
	}
	if p.PartialRefundPercentage < 0 || p.PartialRefundPercentage > 100 {
		return fmt.Errorf("partial refund percentage must be between 0 and 100")
	}
	return nil
}

// RefundEstimate is what a cancellation right now would return.
type RefundEstimate struct {
	HoursUntilEvent  float64 `json:"hours_until_event"`
	PaidAmount       float64 `json:"paid_amount"`
	RefundPercentage float64 `json:"refund_percentage"`
	RefundAmount     float64 `json:"refund_amount"`
	Message          string  `json:"message"`
}
