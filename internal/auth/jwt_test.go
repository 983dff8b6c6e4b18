package auth

import (
	"testing"
	"time"
)

func TestReferralTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := NewTokenSigner("test-secret", 24*time.Hour).WithClock(func() time.Time { return now })

	token, expiresAt, err := signer.IssueReferralToken("app-1", "R123")
	if err != nil {
		t.Fatalf("IssueReferralToken failed: %v", err)
	}
	if !expiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("expected expiry %v, got %v", now.Add(24*time.Hour), expiresAt)
	}

	verified, err := signer.VerifyReferralToken(token)
	if err != nil {
		t.Fatalf("VerifyReferralToken failed: %v", err)
	}
	if verified.ReferralCode != "R123" || verified.AppID != "app-1" {
		t.Errorf("unexpected claims: %+v", verified)
	}
}

func TestReferralTokenRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	signer := NewTokenSigner("test-secret", time.Hour).WithClock(func() time.Time { return clock })

	token, _, err := signer.IssueReferralToken("app-1", "R123")
	if err != nil {
		t.Fatalf("IssueReferralToken failed: %v", err)
	}

	other := NewTokenSigner("other-secret", time.Hour).WithClock(func() time.Time { return now })
	if _, err := other.VerifyReferralToken(token); err == nil {
		t.Errorf("expected signature mismatch to be rejected")
	}

	clock = now.Add(2 * time.Hour)
	if _, err := signer.VerifyReferralToken(token); err == nil {
		t.Errorf("expected expired token to be rejected")
	}
}

func TestAdminTokenIsNotAReferralToken(t *testing.T) {
	signer := NewTokenSigner("shared-secret", time.Hour)

	adminToken, err := signer.IssueAdminToken("ops")
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}
	if _, err := signer.ValidateAdminToken(adminToken); err != nil {
		t.Fatalf("ValidateAdminToken failed: %v", err)
	}
	if _, err := signer.VerifyReferralToken(adminToken); err == nil {
		t.Errorf("admin token must not verify as a referral token")
	}

	referralToken, _, err := signer.IssueReferralToken("app-1", "R123")
	if err != nil {
		t.Fatalf("IssueReferralToken failed: %v", err)
	}
	if _, err := signer.ValidateAdminToken(referralToken); err == nil {
		t.Errorf("referral token must not validate as an admin token")
	}
}
