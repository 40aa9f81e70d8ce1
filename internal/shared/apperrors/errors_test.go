package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("venue not found"), http.StatusNotFound},
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("taken"), http.StatusConflict},
		{Forbidden("nope"), http.StatusForbidden},
		{InvalidState("terminal"), http.StatusUnprocessableEntity},
		{Unavailable(errors.New("timeout"), "gateway down"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Conflict("slot taken"))
	if KindOf(err) != KindConflict {
		t.Fatalf("got %v, want %v", KindOf(err), KindConflict)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("errors.Is should match the kind sentinel")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is matched the wrong kind")
	}
}

func TestRetryable(t *testing.T) {
	if IsRetryable(Conflict("slot taken")) {
		t.Fatalf("plain conflict must be terminal")
	}
	if !IsRetryable(RetryableConflict("version changed")) {
		t.Fatalf("version conflict must be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrap: %w", Unavailable(nil, "gateway"))) {
		t.Fatalf("unavailable must be retryable")
	}
	if IsRetryable(errors.New("x")) {
		t.Fatalf("untagged errors are not retryable")
	}
}

func TestMessageMasksUntagged(t *testing.T) {
	if got := Message(errors.New("pq: secret detail")); got != "internal server error" {
		t.Fatalf("got %q", got)
	}
	if got := Message(Validation("Guest count must be between %d and %d", 50, 500)); got != "Guest count must be between 50 and 500" {
		t.Fatalf("got %q", got)
	}
}
