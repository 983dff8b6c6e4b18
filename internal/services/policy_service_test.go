package services

import (
	"context"
	"errors"
	"testing"

	"growth-ledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestPolicyServiceUnknownApp(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.policies.GetPolicy(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPolicyServiceUpsert(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	ctx := context.Background()

	policy, err := env.policies.GetPolicy(ctx, testApp)
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	policy.ReferralCredits = decimal.NewFromInt(9)
	policy.WaitlistEnabled = true
	if err := env.policies.UpsertPolicy(ctx, policy); err != nil {
		t.Fatalf("UpsertPolicy failed: %v", err)
	}

	updated, err := env.policies.GetPolicy(ctx, testApp)
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if !updated.ReferralCredits.Equal(decimal.NewFromInt(9)) {
		t.Errorf("expected referral credits 9, got %s", updated.ReferralCredits)
	}
	if !updated.WaitlistEnabled || updated.WaitlistEnabledAt == nil {
		t.Errorf("expected the waitlist to be enabled with a timestamp, got %+v", updated)
	}

	invalid := &models.AppPolicy{AppID: testApp, DailyReferralCap: -1}
	if err := env.policies.UpsertPolicy(ctx, invalid); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
