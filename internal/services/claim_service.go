package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"growth-ledger/internal/auth"
	"growth-ledger/internal/claims"
	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"
)

// SignatureVerifier issues and validates signed referral tokens
type SignatureVerifier interface {
	IssueReferralToken(appID, referralCode string) (string, time.Time, error)
	VerifyReferralToken(token string) (*auth.ReferralToken, error)
}

// ClaimService redeems invitation codes and referral tokens. Rejections
// are reported as ignored outcomes, not errors.
type ClaimService struct {
	repo      *repository.Repository
	ledger    *LedgerService
	admission *AdmissionService
	verifier  SignatureVerifier
	location  *time.Location
	now       Clock
}

// NewClaimService creates a new ClaimService. location defines the day
// boundary for the daily referral cap.
func NewClaimService(
	repo *repository.Repository,
	ledger *LedgerService,
	admission *AdmissionService,
	verifier SignatureVerifier,
	location *time.Location,
	now Clock,
) *ClaimService {
	if location == nil {
		location = time.UTC
	}
	return &ClaimService{
		repo:      repo,
		ledger:    ledger,
		admission: admission,
		verifier:  verifier,
		location:  location,
		now:       now,
	}
}

// WithRepo returns a copy bound to repo (typically a transaction)
func (s *ClaimService) WithRepo(repo *repository.Repository) *ClaimService {
	c := *s
	c.repo = repo
	c.ledger = s.ledger.WithRepo(repo)
	c.admission = s.admission.WithRepo(repo)
	return &c
}

func ignored(kind claims.Kind, reason string) models.ClaimOutcome {
	return models.ClaimOutcome{Kind: kind.String(), Status: models.ClaimStatusIgnored, Reason: reason}
}

// Resolve applies claim on behalf of identity
func (s *ClaimService) Resolve(
	ctx context.Context,
	policy *models.AppPolicy,
	identity *models.Identity,
	claim claims.Claim,
	audit models.AuditContext,
) (models.ClaimOutcome, error) {
	switch claim.Kind {
	case claims.KindNone:
		return models.ClaimOutcome{Kind: claim.Kind.String(), Status: models.ClaimStatusNone}, nil
	case claims.KindInvitationCode:
		return s.redeemInvitation(ctx, policy, identity, claim.Code, audit)
	case claims.KindReferralToken:
		return s.redeemReferral(ctx, policy, identity, claim.Token, audit)
	default:
		return ignored(claim.Kind, "unrecognized claim"), nil
	}
}

func (s *ClaimService) redeemInvitation(
	ctx context.Context,
	policy *models.AppPolicy,
	identity *models.Identity,
	code string,
	audit models.AuditContext,
) (models.ClaimOutcome, error) {
	kind := claims.KindInvitationCode

	entry, err := s.repo.FindWaitlistEntryByCode(ctx, identity.AppID, code)
	if err != nil {
		return models.ClaimOutcome{}, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if entry == nil {
		return ignored(kind, "unknown invitation code"), nil
	}
	if entry.CodeUsedAt != nil {
		return s.usedInvitation(entry, identity), nil
	}

	now := s.now()
	if entry.CodeExpiresAt != nil && !now.Before(*entry.CodeExpiresAt) {
		return ignored(kind, "invitation code expired"), nil
	}

	var outcome models.ClaimOutcome
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		redeemed, err := tx.RedeemInvitation(ctx, entry.ID, identity.ID, now)
		if err != nil {
			return fmt.Errorf("failed to redeem invitation: %w", err)
		}
		if !redeemed {
			current, err := tx.GetWaitlistEntryByID(ctx, entry.ID)
			if err != nil {
				return fmt.Errorf("failed to reload invitation: %w", err)
			}
			outcome = s.usedInvitation(current, identity)
			return nil
		}

		metadata := audit.Metadata()
		metadata["invitation_code"] = code
		metadata["waitlist_entry_id"] = entry.ID.String()

		if _, err := s.ledger.WithRepo(tx).AppendCredit(ctx, identity.ID, policy.InvitationCredits, models.CreditReasonInvitation, metadata); err != nil {
			return err
		}
		if err := s.admission.WithRepo(tx).attachEmail(ctx, identity, entry.Email, true); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, identity, models.AuditActionInvitationRedeemed, metadata, now); err != nil {
			return err
		}

		outcome = models.ClaimOutcome{Kind: kind.String(), Status: models.ClaimStatusAccepted, Credited: true}
		return nil
	})
	if err != nil {
		return models.ClaimOutcome{}, err
	}

	if outcome.Credited {
		log.Printf("[Claims] Identity %s redeemed invitation %s", identity.ID, code)
	}
	return outcome, nil
}

// usedInvitation reports on a code that is already consumed: a replay by
// its owner is accepted without side effects.
func (s *ClaimService) usedInvitation(entry *models.WaitlistEntry, identity *models.Identity) models.ClaimOutcome {
	if entry.CodeUsedAt != nil && entry.IdentityID != nil && *entry.IdentityID == identity.ID {
		return models.ClaimOutcome{Kind: claims.KindInvitationCode.String(), Status: models.ClaimStatusAccepted}
	}
	return ignored(claims.KindInvitationCode, "invitation code already used")
}

func (s *ClaimService) redeemReferral(
	ctx context.Context,
	policy *models.AppPolicy,
	identity *models.Identity,
	token string,
	audit models.AuditContext,
) (models.ClaimOutcome, error) {
	kind := claims.KindReferralToken

	verified, err := s.verifier.VerifyReferralToken(token)
	if err != nil {
		return ignored(kind, "invalid or expired referral token"), nil
	}
	if verified.AppID != identity.AppID {
		return ignored(kind, "referral token issued for another app"), nil
	}

	existing, err := s.repo.FindReferralByReferred(ctx, identity.ID)
	if err != nil {
		return models.ClaimOutcome{}, fmt.Errorf("failed to look up referral: %w", err)
	}
	if existing != nil {
		return ignored(kind, "identity already referred"), nil
	}

	if policy.IsMasterCode(verified.ReferralCode) {
		return s.redeemMaster(ctx, policy, identity, token, verified, audit)
	}

	referrer, err := s.repo.FindIdentityByReferralCode(ctx, identity.AppID, verified.ReferralCode)
	if err != nil {
		return models.ClaimOutcome{}, fmt.Errorf("failed to look up referrer: %w", err)
	}
	if referrer == nil {
		return ignored(kind, "unknown referral code"), nil
	}
	if referrer.ID == identity.ID {
		return ignored(kind, "self referral"), nil
	}

	now := s.now()
	var outcome models.ClaimOutcome
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// Serializes concurrent claims against the same referrer so the
		// count below cannot be raced past the cap.
		if _, err := tx.LockIdentity(ctx, referrer.ID); err != nil {
			return fmt.Errorf("failed to lock referrer: %w", err)
		}

		if policy.DailyReferralCap > 0 {
			count, err := tx.CountReferralsSince(ctx, referrer.ID, s.startOfDay(now))
			if err != nil {
				return fmt.Errorf("failed to count referrals: %w", err)
			}
			if count >= int64(policy.DailyReferralCap) {
				outcome = models.ClaimOutcome{
					Kind:   kind.String(),
					Status: models.ClaimStatusAccepted,
					Reason: "referrer reached the daily referral cap",
				}
				return nil
			}
		}

		referrerID := referrer.ID
		expiresAt := verified.ExpiresAt
		referral := &models.Referral{
			AppID:          identity.AppID,
			ReferrerID:     &referrerID,
			ReferredID:     identity.ID,
			ReferralCode:   verified.ReferralCode,
			ClaimToken:     token,
			ClaimExpiresAt: &expiresAt,
			ClaimedAt:      now,
			CreatedAt:      now,
		}
		if err := tx.CreateReferral(ctx, referral); err != nil {
			if repository.IsDuplicateKey(err) {
				outcome = ignored(kind, "identity already referred")
				return nil
			}
			return fmt.Errorf("failed to record referral: %w", err)
		}

		metadata := audit.Metadata()
		metadata["referral_id"] = referral.ID.String()
		metadata["referral_code"] = verified.ReferralCode

		ledger := s.ledger.WithRepo(tx)
		if _, err := ledger.AppendCredit(ctx, identity.ID, policy.ReferredCredits, models.CreditReasonReferral, withRole(metadata, "referred")); err != nil {
			return err
		}
		if _, err := ledger.AppendCredit(ctx, referrer.ID, policy.ReferralCredits, models.CreditReasonReferral, withRole(metadata, "referrer")); err != nil {
			return err
		}
		if err := s.admission.WithRepo(tx).PromoteAfterReferral(ctx, identity, false); err != nil {
			return err
		}

		metadata["referrer_id"] = referrer.ID.String()
		if err := recordAudit(ctx, tx, identity, models.AuditActionReferralAwarded, metadata, now); err != nil {
			return err
		}

		outcome = models.ClaimOutcome{Kind: kind.String(), Status: models.ClaimStatusAccepted, Referred: true, Credited: true}
		return nil
	})
	if err != nil {
		return models.ClaimOutcome{}, err
	}

	if outcome.Referred {
		log.Printf("[Claims] Identity %s referred by %s", identity.ID, referrer.ID)
	}
	return outcome, nil
}

func (s *ClaimService) redeemMaster(
	ctx context.Context,
	policy *models.AppPolicy,
	identity *models.Identity,
	token string,
	verified *auth.ReferralToken,
	audit models.AuditContext,
) (models.ClaimOutcome, error) {
	kind := claims.KindReferralToken
	now := s.now()

	var outcome models.ClaimOutcome
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		expiresAt := verified.ExpiresAt
		referral := &models.Referral{
			AppID:          identity.AppID,
			ReferredID:     identity.ID,
			ReferralCode:   verified.ReferralCode,
			IsMaster:       true,
			ClaimToken:     token,
			ClaimExpiresAt: &expiresAt,
			ClaimedAt:      now,
			CreatedAt:      now,
		}
		if err := tx.CreateReferral(ctx, referral); err != nil {
			if repository.IsDuplicateKey(err) {
				outcome = ignored(kind, "identity already referred")
				return nil
			}
			return fmt.Errorf("failed to record referral: %w", err)
		}

		metadata := audit.Metadata()
		metadata["referral_id"] = referral.ID.String()
		metadata["referral_code"] = verified.ReferralCode

		if _, err := s.ledger.WithRepo(tx).AppendCredit(ctx, identity.ID, policy.MasterReferralCredits, models.CreditReasonMasterReferral, metadata); err != nil {
			return err
		}
		if err := s.admission.WithRepo(tx).PromoteAfterReferral(ctx, identity, true); err != nil {
			return err
		}
		if err := recordAudit(ctx, tx, identity, models.AuditActionMasterReferral, metadata, now); err != nil {
			return err
		}

		outcome = models.ClaimOutcome{Kind: kind.String(), Status: models.ClaimStatusAccepted, Referred: true, Credited: true}
		return nil
	})
	if err != nil {
		return models.ClaimOutcome{}, err
	}

	if outcome.Referred {
		log.Printf("[Claims] Identity %s redeemed the master referral code of app %s", identity.ID, identity.AppID)
	}
	return outcome, nil
}

// startOfDay returns local midnight of t's day in the service location
func (s *ClaimService) startOfDay(t time.Time) time.Time {
	local := t.In(s.location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location).UTC()
}

func withRole(metadata map[string]string, role string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["role"] = role
	return out
}

func recordAudit(ctx context.Context, repo *repository.Repository, identity *models.Identity, action string, metadata map[string]string, now time.Time) error {
	identityID := identity.ID
	event := &models.AuditEvent{
		AppID:      identity.AppID,
		IdentityID: &identityID,
		Action:     action,
		Metadata:   metadata,
		CreatedAt:  now,
	}
	if err := repo.CreateAuditEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}
