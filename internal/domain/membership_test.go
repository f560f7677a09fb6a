package domain

import (
	"testing"
	"time"
)

func TestIsMembershipCurrent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name      string
		status    string
		periodEnd time.Time
		want      bool
	}{
		{"active within period", MembershipStatusActive, future, true},
		{"trialing within period", MembershipStatusTrialing, future, true},
		{"active but expired", MembershipStatusActive, past, false},
		{"canceled status", "canceled", future, false},
		{"past_due status", "past_due", future, false},
		{"period end exactly now", MembershipStatusActive, now, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMembershipCurrent(tc.status, tc.periodEnd, now); got != tc.want {
				t.Errorf("IsMembershipCurrent(%q, %v) = %v, want %v", tc.status, tc.periodEnd, got, tc.want)
			}
		})
	}
}

func TestDueForReminder(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	never := RenewalCandidate{MembershipID: "m1"}
	if !never.DueForReminder(now) {
		t.Error("candidate with no prior notice should be due")
	}

	recent := now.Add(-10 * 24 * time.Hour)
	suppressed := RenewalCandidate{MembershipID: "m2", LastRenewalNoticeAt: &recent}
	if suppressed.DueForReminder(now) {
		t.Error("notice 10 days ago should suppress the reminder")
	}

	stale := now.Add(-40 * 24 * time.Hour)
	due := RenewalCandidate{MembershipID: "m3", LastRenewalNoticeAt: &stale}
	if !due.DueForReminder(now) {
		t.Error("notice 40 days ago should not suppress the reminder")
	}
}
