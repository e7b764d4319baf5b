package models

import (
	"testing"
	"time"
)

func TestSessionValidity(t *testing.T) {
	now := time.Now()
	profileID := "profile-1"

	tests := []struct {
		name      string
		session   Session
		wantValid bool
	}{
		{
			"live session",
			Session{ExpiresAt: now.Add(time.Hour)},
			true,
		},
		{
			"expired session",
			Session{ExpiresAt: now.Add(-time.Minute)},
			false,
		},
		{
			"claimed session",
			Session{ExpiresAt: now.Add(time.Hour), ClaimedByProfileID: &profileID},
			false,
		},
		{
			"expires exactly now",
			Session{ExpiresAt: now},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsValid(now); got != tt.wantValid {
				t.Errorf("IsValid() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestSessionIsClaimedEmptyString(t *testing.T) {
	empty := ""
	s := Session{ClaimedByProfileID: &empty, ExpiresAt: time.Now().Add(time.Hour)}
	if s.IsClaimed() {
		t.Error("empty claimedBy string should not count as claimed")
	}
}

func TestIsValidPhase(t *testing.T) {
	for _, phase := range []string{PhaseDiscovery, PhaseROI, PhaseGreenlight} {
		if !IsValidPhase(phase) {
			t.Errorf("IsValidPhase(%q) = false, want true", phase)
		}
	}
	for _, phase := range []string{"", "checkout", "Discovery"} {
		if IsValidPhase(phase) {
			t.Errorf("IsValidPhase(%q) = true, want false", phase)
		}
	}
}
