package model

import (
	"testing"
	"time"
)

func TestState_CanTransition(t *testing.T) {
	all := []State{StateHeld, StateExpired, StateConfirmed, StateAborted}
	for _, from := range all {
		for _, to := range all {
			want := from == StateHeld && to != StateHeld
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
		if from.Terminal() != (from != StateHeld) {
			t.Errorf("%s.Terminal() = %v", from, from.Terminal())
		}
	}
	if StateHeld.CanTransition(State("PAID")) {
		t.Error("HELD -> unknown state should be rejected")
	}
}

func TestReservation_ExpiredAt(t *testing.T) {
	deadline := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := Reservation{State: StateHeld, ExpiresAt: deadline}
	if r.ExpiredAt(deadline.Add(-time.Nanosecond)) {
		t.Fatal("expired before the deadline")
	}
	if !r.ExpiredAt(deadline) {
		t.Fatal("not expired at the deadline")
	}
	r.State = StateConfirmed
	if r.ExpiredAt(deadline.Add(time.Hour)) {
		t.Fatal("confirmed reservations never expire")
	}
}
