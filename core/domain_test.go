package core

import (
	"testing"
	"time"
)

type tokenPayload struct{ token string }

func (p tokenPayload) SessionToken() string { return p.token }

func TestSessionExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	session := NewSession("abc", issued, time.Minute)
	if session.Expired(issued.Add(time.Minute - time.Nanosecond)) {
		t.Fatalf("expected session valid just before expiry")
	}
	if !session.Expired(issued.Add(time.Minute)) {
		t.Fatalf("expected session expired at expiry instant")
	}
	if !(Session{}).Expired(issued) {
		t.Fatalf("expected absent session to count as expired")
	}
}

func TestSessionTokenFrom(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "carrier", payload: tokenPayload{token: " t1 "}, want: "t1"},
		{name: "string", payload: "t2", want: "t2"},
		{name: "map any", payload: map[string]any{"Session": "t3"}, want: "t3"},
		{name: "map lower", payload: map[string]string{"session": "t4"}, want: "t4"},
		{name: "map non string", payload: map[string]any{"Session": 12}, want: ""},
		{name: "nil", payload: nil, want: ""},
		{name: "other", payload: 42, want: ""},
	}
	for _, tc := range cases {
		if got := SessionTokenFrom(tc.payload); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestFaultError(t *testing.T) {
	fault := &Fault{Code: "fns:INVALID_VALUE", Message: "bad"}
	if fault.Error() != "remote fault fns:INVALID_VALUE: bad" {
		t.Fatalf("unexpected fault text %q", fault.Error())
	}
	if (&Fault{}).Error() != "remote fault" {
		t.Fatalf("unexpected empty fault text")
	}
}

func TestLinearBackoffScheduler(t *testing.T) {
	scheduler := LinearBackoffScheduler{Unit: 500 * time.Millisecond}
	if scheduler.NextDelay(1) != 500*time.Millisecond || scheduler.NextDelay(4) != 2*time.Second {
		t.Fatalf("expected linear delays")
	}
	if scheduler.NextDelay(0) != 500*time.Millisecond {
		t.Fatalf("expected attempt floor of one")
	}
}
