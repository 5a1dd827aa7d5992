package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestQueueEntry_CanTransition(t *testing.T) {
	cases := []struct {
		name string
		from EntryStatus
		to   EntryStatus
		want bool
	}{
		{"waiting to approved", StatusWaiting, StatusApproved, true},
		{"waiting to rejected", StatusWaiting, StatusRejected, true},
		{"waiting to speaking skips approval", StatusWaiting, StatusSpeaking, false},
		{"approved to speaking", StatusApproved, StatusSpeaking, true},
		{"approved to approved is not idempotent", StatusApproved, StatusApproved, false},
		{"approved to rejected after approval", StatusApproved, StatusRejected, false},
		{"speaking to done", StatusSpeaking, StatusDone, true},
		{"speaking to approved rolls back", StatusSpeaking, StatusApproved, false},
		{"done is terminal", StatusDone, StatusApproved, false},
		{"rejected is terminal", StatusRejected, StatusApproved, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &QueueEntry{Status: tc.from}
			if got := e.CanTransition(tc.to); got != tc.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName(""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: expected ErrInvalidName, got %v", err)
	}
	if err := ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen+1)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("overlong name: expected ErrInvalidName, got %v", err)
	}
	if err := ValidateDisplayName("Alice"); err != nil {
		t.Errorf("valid name: unexpected error %v", err)
	}
}

func TestClampLevel(t *testing.T) {
	if got := ClampLevel(-5); got != 0 {
		t.Errorf("ClampLevel(-5) = %d, want 0", got)
	}
	if got := ClampLevel(250); got != MaxLevel {
		t.Errorf("ClampLevel(250) = %d, want %d", got, MaxLevel)
	}
	if got := ClampLevel(42); got != 42 {
		t.Errorf("ClampLevel(42) = %d, want 42", got)
	}
}
