package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestGetRateLimitType(t *testing.T) {
	cases := []struct {
		method, path string
		want         RateLimitType
	}{
		{http.MethodGet, "/health", RateLimitTypeHealth},
		{http.MethodPost, "/api/v1/auth/login", RateLimitTypeAuth},
		{http.MethodPost, "/api/v1/bookings", RateLimitTypeBookingCritical},
		{http.MethodPatch, "/api/v1/bookings/:id/reschedule", RateLimitTypeBookingCritical},
		{http.MethodPatch, "/api/v1/bookings/:id/status", RateLimitTypeBookingCritical},
		{http.MethodGet, "/api/v1/bookings/availability/:venueId", RateLimitTypeBooking},
		{http.MethodPost, "/api/v1/payments/initiate", RateLimitTypePayment},
		{http.MethodPost, "/api/v1/admin/payments/:referenceId/reconcile", RateLimitTypeAdmin},
		{http.MethodGet, "/api/v1/venues", RateLimitTypePublic},
		{http.MethodGet, "/api/v1/notifications", RateLimitTypeDefault},
	}
	for _, tc := range cases {
		if got := getRateLimitType(tc.method, tc.path); got != tc.want {
			t.Fatalf("getRateLimitType(%s %s) = %s, want %s", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestNilClientAdmits(t *testing.T) {
	rl := NewRateLimiter(nil, &Config{Enabled: true, WindowDuration: time.Minute, DefaultRequests: 1})
	for i := 0; i < 3; i++ {
		res, err := rl.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeDefault)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: got allowed=%v err=%v", i, res.Allowed, err)
		}
	}
}

func TestBuildResultAtLimit(t *testing.T) {
	// The request that fills the window is admitted with nothing remaining.
	res := buildResult(true, 5, 5, time.Unix(100, 0))
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("got %+v", res)
	}
	res = buildResult(false, 5, 5, time.Unix(100, 0))
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("got %+v", res)
	}
}
