package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_SubscriptionActive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		account Account
		want    bool
	}{
		{name: "unlimited", account: Account{Plan: PlanFree}, want: true},
		{name: "trial in future", account: Account{Plan: PlanTrial, ExpiresAt: &future}, want: true},
		{name: "trial expired", account: Account{Plan: PlanTrial, ExpiresAt: &past}, want: false},
		{name: "expired plan without date", account: Account{Plan: PlanExpired}, want: false},
		{name: "admin ignores expiry", account: Account{Plan: PlanAdmin, IsAdmin: true, ExpiresAt: &past}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.SubscriptionActive(now))
		})
	}
}

func TestAccount_DaysRemaining(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	in7 := now.AddDate(0, 0, 7)
	past := now.AddDate(0, 0, -1)

	assert.Equal(t, -1, (&Account{}).DaysRemaining(now))
	assert.Equal(t, 7, (&Account{ExpiresAt: &in7}).DaysRemaining(now))
	assert.Equal(t, 0, (&Account{ExpiresAt: &past}).DaysRemaining(now))
}
