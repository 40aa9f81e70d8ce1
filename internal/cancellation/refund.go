package cancellation

import (
	"fmt"
	"math"
	"time"

	"venuely/internal/shared/clock"
)

// CalculateRefund applies policy to the amount already paid. It has no side
// effects; callers decide whether to persist the result.
//
// Hours are measured from now to the start of the event day in UTC.
func CalculateRefund(eventDate, now time.Time, paid float64, policy Policy) RefundEstimate {
	hours := clock.Day(eventDate).Sub(now).Hours()

	var pct float64
	switch {
	case hours >= float64(policy.FullRefundHours):
		pct = 100
	case hours >= float64(policy.PartialRefundHours):
		pct = policy.PartialRefundPercentage
	default:
		pct = 0
	}

	return RefundEstimate{
		HoursUntilEvent:  hours,
		PaidAmount:       paid,
		RefundPercentage: pct,
		RefundAmount:     RoundAmount(paid * pct / 100),
		Message:          refundMessage(pct, paid),
	}
}

// RoundAmount rounds to whole currency units, halves away from zero.
func RoundAmount(v float64) float64 {
	return math.Round(v)
}

func refundMessage(pct, paid float64) string {
	switch {
	case paid <= 0:
		return "No payment has been made, nothing to refund"
	case pct >= 100:
		return "Full refund available"
	case pct > 0:
		return fmt.Sprintf("%.0f%% refund available", pct)
	default:
		return "No refund available for cancellations this close to the event"
	}
}
