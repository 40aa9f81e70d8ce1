package clock

import (
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	cases := map[string]int{"00:00": 0, "10:00": 600, "12:30": 750, "23:59": 1439}
	for in, want := range cases {
		got, err := Minutes(in)
		if err != nil || got != want {
			t.Fatalf("Minutes(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "7pm", "25:00", "10:60", "10-00"} {
		if _, err := Minutes(bad); err == nil {
			t.Fatalf("Minutes(%q) should fail", bad)
		}
	}
}

func TestHourIgnoresMinutes(t *testing.T) {
	h, err := Hour("17:45")
	if err != nil || h != 17 {
		t.Fatalf("got %d, %v", h, err)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		a, b [2]int
		want bool
	}{
		{[2]int{600, 720}, [2]int{720, 840}, false}, // 10-12 then 12-14
		{[2]int{720, 840}, [2]int{600, 720}, false},
		{[2]int{600, 720}, [2]int{660, 780}, true},
		{[2]int{600, 900}, [2]int{660, 720}, true},
		{[2]int{660, 720}, [2]int{600, 900}, true},
		{[2]int{600, 660}, [2]int{700, 760}, false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.a[0], tc.a[1], tc.b[0], tc.b[1]); got != tc.want {
			t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseDateNormalizesToDay(t *testing.T) {
	d, err := ParseDate("2025-03-14T18:30:00+05:45")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("got %v, want %v", d, want)
	}
	if _, err := ParseDate("14/03/2025"); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}
