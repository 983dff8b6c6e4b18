package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"growth-ledger/internal/models"

	"github.com/shopspring/decimal"
)

func joinAll(t *testing.T, env *testEnv, emails ...string) []*models.WaitlistEntry {
	t.Helper()
	entries := make([]*models.WaitlistEntry, 0, len(emails))
	for i, email := range emails {
		entry, err := env.growth.JoinWaitlist(context.Background(), &models.JoinWaitlistRequest{
			AppID:       testApp,
			Fingerprint: "fp-waiting-" + string(rune('a'+i)) + "00",
			Email:       email,
		})
		if err != nil {
			t.Fatalf("JoinWaitlist(%s) failed: %v", email, err)
		}
		entries = append(entries, entry)
		env.clock.Advance(time.Second)
	}
	return entries
}

func reloadEntry(t *testing.T, env *testEnv, entry *models.WaitlistEntry) *models.WaitlistEntry {
	t.Helper()
	current, err := env.repo.GetWaitlistEntryByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("failed to reload entry: %v", err)
	}
	return current
}

func TestRunBatchInvitesInSignupOrder(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	entries := joinAll(t, env, "first@example.com", "second@example.com", "third@example.com")

	results, err := env.invitations.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if len(results) != 1 || results[0].Invited != 2 || results[0].Failed != 0 {
		t.Fatalf("expected 2 invitations, got %+v", results)
	}

	for i, want := range []models.WaitlistStatus{models.WaitlistStatusInvited, models.WaitlistStatusInvited, models.WaitlistStatusWaiting} {
		current := reloadEntry(t, env, entries[i])
		if current.Status != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, current.Status)
		}
		if want == models.WaitlistStatusInvited && (current.InvitationCode == nil || current.CodeExpiresAt == nil) {
			t.Errorf("entry %d: expected a code with an expiry", i)
		}
	}

	if len(env.sender.sent) != 2 || env.sender.sent[0].To != "first@example.com" {
		t.Errorf("expected emails to the first two signups, got %+v", env.sender.sent)
	}
	if env.sender.sent[0].Template != InvitationTemplate || env.sender.sent[0].Data["invitation_code"] == "" {
		t.Errorf("expected an invitation template with a code, got %+v", env.sender.sent[0])
	}
}

func TestRunBatchDeliveryFailureKeepsEntryWaiting(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	entries := joinAll(t, env, "bounce@example.com", "ok@example.com")
	env.sender.failFor["bounce@example.com"] = true

	results, err := env.invitations.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if results[0].Invited != 1 || results[0].Failed != 1 {
		t.Errorf("expected 1 invited and 1 failed, got %+v", results[0])
	}

	if got := reloadEntry(t, env, entries[0]); got.Status != models.WaitlistStatusWaiting || got.InvitationCode != nil {
		t.Errorf("expected the failed entry to stay WAITING without a code, got %+v", got)
	}
	if got := reloadEntry(t, env, entries[1]); got.Status != models.WaitlistStatusInvited {
		t.Errorf("expected the delivered entry to be INVITED, got %s", got.Status)
	}

	failures := env.auditEvents(t, models.AuditActionInvitationFailed)
	if len(failures) != 1 || failures[0].Metadata["email"] != "bounce@example.com" {
		t.Errorf("expected one recorded delivery failure, got %+v", failures)
	}
}

func TestGenerateCodeGivesUpAfterCollisions(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	entries := joinAll(t, env, "taken@example.com")

	code := "INV-TAKEN2"
	expiresAt := env.clock.Now().Add(time.Hour)
	if _, err := env.repo.MarkInvited(context.Background(), entries[0].ID, code, expiresAt, env.clock.Now()); err != nil {
		t.Fatalf("MarkInvited failed: %v", err)
	}

	calls := 0
	env.invitations.generate = func() (string, error) {
		calls++
		return code, nil
	}

	_, err := env.invitations.GenerateCode(context.Background(), testApp)
	if !errors.Is(err, ErrCodeCollision) {
		t.Errorf("expected ErrCodeCollision, got %v", err)
	}
	if calls != maxCodeAttempts {
		t.Errorf("expected %d attempts, got %d", maxCodeAttempts, calls)
	}
}

func inviteOne(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	entries := joinAll(t, env, email)
	if _, err := env.invitations.InviteApp(context.Background(), &models.AppPolicy{AppID: testApp}, 1); err != nil {
		t.Fatalf("InviteApp failed: %v", err)
	}
	current := reloadEntry(t, env, entries[0])
	if current.InvitationCode == nil {
		t.Fatalf("expected an invitation code for %s", email)
	}
	return *current.InvitationCode
}

func TestInvitationRedemption(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	code := inviteOne(t, env, "guest@example.com")

	resp := env.resolve(t, "fp-guest-00001", code)
	if resp.Claim.Status != models.ClaimStatusAccepted || !resp.Claim.Credited {
		t.Fatalf("expected an accepted invitation, got %+v", resp.Claim)
	}
	if !resp.Balance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected balance 7, got %s", resp.Balance)
	}
	if resp.Waitlist.Status != models.WaitlistStatusAccepted || !resp.Entitled {
		t.Errorf("expected an accepted and entitled identity, got %+v", resp)
	}

	// Lower-case input is the same code.
	replay := env.resolve(t, "fp-guest-00001", " "+strings.ToLower(code)+" ")
	if replay.Claim.Status != models.ClaimStatusAccepted || replay.Claim.Credited {
		t.Errorf("expected a replay to be accepted without credit, got %+v", replay.Claim)
	}
	if !replay.Balance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected balance to stay 7, got %s", replay.Balance)
	}

	other := env.resolve(t, "fp-other-00001", code)
	if other.Claim.Status != models.ClaimStatusIgnored || !other.Balance.IsZero() {
		t.Errorf("expected reuse by another identity to be ignored, got %+v", other.Claim)
	}

	if count := env.creditCount(t, resp.IdentityID, models.CreditReasonInvitation); count != 1 {
		t.Errorf("expected 1 invitation credit, got %d", count)
	}

	var profile models.Profile
	env.db.Where("identity_id = ?", resp.IdentityID).First(&profile)
	if profile.Email != "guest@example.com" || !profile.EmailVerified {
		t.Errorf("expected a verified profile for the invited email, got %+v", profile)
	}
}

func TestExpiredInvitationIgnored(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	entries := joinAll(t, env, "late@example.com")

	expiresAt := env.clock.Now().Add(-time.Minute)
	if _, err := env.repo.MarkInvited(context.Background(), entries[0].ID, "INV-AB12CD", expiresAt, env.clock.Now()); err != nil {
		t.Fatalf("MarkInvited failed: %v", err)
	}

	resp := env.resolve(t, "fp-late-000001", "INV-AB12CD")
	if resp.Claim.Status != models.ClaimStatusIgnored {
		t.Errorf("expected an expired code to be ignored, got %+v", resp.Claim)
	}
	if !resp.Balance.IsZero() {
		t.Errorf("expected no credit, got %s", resp.Balance)
	}
	if got := reloadEntry(t, env, entries[0]); got.Status != models.WaitlistStatusInvited || got.CodeUsedAt != nil {
		t.Errorf("expected the entry to be untouched, got %+v", got)
	}
}

func TestUnknownInvitationIgnored(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	resp := env.resolve(t, "fp-unknown-001", "INV-ZZZZZZ")
	if resp.Claim.Status != models.ClaimStatusIgnored || resp.Claim.Kind != "invitation_code" {
		t.Errorf("expected an unknown code to be ignored, got %+v", resp.Claim)
	}
}

func TestReferralAcceptsInvitedEntry(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	inviteOne(t, env, "invited@example.com")

	referrer := env.resolve(t, "fp-referrer-01", "")
	// joinAll used the fingerprint of the first signup
	resp := env.resolve(t, "fp-waiting-a00", env.tokenFor(t, referrer))
	if !resp.Claim.Referred {
		t.Fatalf("expected a referral, got %+v", resp.Claim)
	}
	if resp.Waitlist.Status != models.WaitlistStatusAccepted {
		t.Errorf("expected INVITED to advance to ACCEPTED, got %s", resp.Waitlist.Status)
	}
}

func TestInvitationRedeemedAfterReferralAccepted(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	code := inviteOne(t, env, "invited@example.com")

	referrer := env.resolve(t, "fp-referrer-01", "")
	referred := env.resolve(t, "fp-waiting-a00", env.tokenFor(t, referrer))
	if referred.Waitlist.Status != models.WaitlistStatusAccepted {
		t.Fatalf("expected the referral to accept the entry, got %s", referred.Waitlist.Status)
	}

	env.clock.Advance(time.Minute)
	resp := env.resolve(t, "fp-waiting-a00", code)
	if resp.Claim.Status != models.ClaimStatusAccepted || !resp.Claim.Credited {
		t.Fatalf("expected the unused code to be credited, got %+v", resp.Claim)
	}
	if !resp.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected balance 10, got %s", resp.Balance)
	}

	entry, err := env.repo.FindWaitlistEntryByCode(context.Background(), testApp, code)
	if err != nil || entry == nil {
		t.Fatalf("failed to reload entry: %v", err)
	}
	if entry.Status != models.WaitlistStatusAccepted || entry.CodeUsedAt == nil || entry.UseCount != 1 {
		t.Errorf("expected an accepted entry with its code used once, got %+v", entry)
	}
	if entry.AcceptedAt == nil || !entry.AcceptedAt.Before(*entry.CodeUsedAt) {
		t.Errorf("expected accepted_at to stay at the referral time, got %+v", entry)
	}
	env.assertBalanceMatchesEntries(t, resp)
}

func TestInvitedEmailDoesNotEntitleOtherIdentity(t *testing.T) {
	policy := defaultPolicy()
	enabledAt := newTestClock().Now().Add(-time.Hour)
	policy.WaitlistEnabled = true
	policy.WaitlistEnabledAt = &enabledAt
	env := newTestEnv(t, policy)
	ctx := context.Background()

	code := inviteOne(t, env, "invited@example.com")

	if _, err := env.growth.JoinWaitlist(ctx, &models.JoinWaitlistRequest{
		AppID:       testApp,
		Fingerprint: "fp-intruder-01",
		Email:       "Invited@Example.com",
	}); err != nil {
		t.Fatalf("JoinWaitlist failed: %v", err)
	}

	intruder := env.resolve(t, "fp-intruder-01", "")
	if intruder.Entitled || !intruder.RequiresWaitlist {
		t.Errorf("expected a second joiner of the same email to stay gated, got %+v", intruder)
	}

	owner := env.resolve(t, "fp-waiting-a00", "")
	if !owner.Entitled {
		t.Errorf("expected the invited joiner to be entitled, got %+v", owner)
	}

	// A referral entitles the intruder for that request but leaves the
	// entry it does not hold untouched.
	referrer := env.resolve(t, "fp-referrer-01", "")
	referred := env.resolve(t, "fp-intruder-01", env.tokenFor(t, referrer))
	if !referred.Claim.Referred || !referred.Entitled {
		t.Fatalf("expected a referral, got %+v", referred)
	}
	entry, err := env.repo.FindWaitlistEntryByCode(ctx, testApp, code)
	if err != nil || entry == nil {
		t.Fatalf("failed to reload entry: %v", err)
	}
	if entry.Status != models.WaitlistStatusInvited || entry.IdentityID == nil || *entry.IdentityID != owner.IdentityID {
		t.Errorf("expected the entry to stay INVITED and owned by the joiner, got %+v", entry)
	}

	redeemed := env.resolve(t, "fp-waiting-a00", code)
	if !redeemed.Claim.Credited || redeemed.Waitlist.Status != models.WaitlistStatusAccepted {
		t.Errorf("expected the joiner to redeem the code, got %+v", redeemed)
	}
}
