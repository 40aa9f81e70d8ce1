package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"venuely/internal/shared/clock"
	"venuely/internal/venues"

	"github.com/google/uuid"
)

type fakeReader struct {
	slots []Slot
	err   error
}

func (f *fakeReader) ActiveSlots(_ context.Context, _ uuid.UUID, _ time.Time, excludeID *uuid.UUID) ([]Slot, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Slot
	for _, s := range f.slots {
		if excludeID != nil && s.BookingID == *excludeID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := clock.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func slot(id uuid.UUID, start, end string) Slot {
	s, _ := clock.Minutes(start)
	e, _ := clock.Minutes(end)
	return Slot{BookingID: id, StartTime: start, EndTime: end, Start: s, End: e}
}

func testVenue() *venues.Venue {
	return &venues.Venue{
		ID:          uuid.New(),
		OpeningTime: "08:00",
		ClosingTime: "23:00",
		IsActive:    true,
	}
}

func TestIsAvailableOverlap(t *testing.T) {
	existing := uuid.New()
	checker := NewChecker(&fakeReader{slots: []Slot{slot(existing, "10:00", "12:00")}})
	venue := testVenue()
	day := mustDate(t, "2025-06-01")

	cases := []struct {
		start, end string
		want       bool
	}{
		{"12:00", "14:00", true},
		{"08:00", "10:00", true},
		{"11:00", "13:00", false},
		{"09:00", "10:30", false},
		{"10:00", "12:00", false},
		{"09:00", "13:00", false},
		{"10:30", "11:30", false},
	}
	for _, tc := range cases {
		got, err := checker.IsAvailable(context.Background(), venue, day, tc.start, tc.end, nil)
		if err != nil {
			t.Fatalf("%s-%s: %v", tc.start, tc.end, err)
		}
		if got != tc.want {
			t.Fatalf("%s-%s: got %v, want %v", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestIsAvailableExcludesOwnBooking(t *testing.T) {
	own := uuid.New()
	checker := NewChecker(&fakeReader{slots: []Slot{slot(own, "10:00", "12:00")}})

	got, err := checker.IsAvailable(context.Background(), testVenue(), mustDate(t, "2025-06-01"), "11:00", "13:00", &own)
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if !got {
		t.Fatalf("got unavailable, want the booking's own slot to be ignored")
	}
}

func TestIsAvailableBlockedDate(t *testing.T) {
	checker := NewChecker(&fakeReader{})
	venue := testVenue()
	venue.BlockedDates = []string{"2025-06-01"}

	// Any time of day on the blocked date is rejected.
	at := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	got, err := checker.IsAvailable(context.Background(), venue, at, "08:00", "09:00", nil)
	if err != nil {
		t.Fatalf("IsAvailable: %v", err)
	}
	if got {
		t.Fatalf("got available on a blocked date")
	}
}

func TestIsAvailableReaderError(t *testing.T) {
	checker := NewChecker(&fakeReader{err: errors.New("db down")})
	if _, err := checker.IsAvailable(context.Background(), testVenue(), mustDate(t, "2025-06-01"), "10:00", "11:00", nil); err == nil {
		t.Fatalf("expected reader error to propagate")
	}
}

func TestDay(t *testing.T) {
	checker := NewChecker(&fakeReader{slots: []Slot{slot(uuid.New(), "10:00", "12:00")}})
	venue := testVenue()
	venue.BlockedDates = []string{"2025-06-02"}

	open, err := checker.Day(context.Background(), venue, mustDate(t, "2025-06-01"))
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if !open.Available || len(open.BookedSlots) != 1 || open.OpeningTime != "08:00" {
		t.Fatalf("got %+v", open)
	}

	blocked, err := checker.Day(context.Background(), venue, mustDate(t, "2025-06-02"))
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if blocked.Available {
		t.Fatalf("blocked day reported available")
	}
}
