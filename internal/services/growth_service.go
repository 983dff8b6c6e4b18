package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"growth-ledger/internal/claims"
	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"

	"github.com/google/uuid"
)

// ReferralTokenResponse is a shareable referral token
type ReferralTokenResponse struct {
	Token        string    `json:"token"`
	ReferralCode string    `json:"referral_code"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LedgerView is an identity's balance with its recent entries
type LedgerView struct {
	IdentityID   uuid.UUID            `json:"identity_id"`
	AppID        string               `json:"app_id"`
	ReferralCode string               `json:"referral_code"`
	Balance      string               `json:"balance"`
	Entries      []models.CreditEntry `json:"entries"`
}

// GrowthService is the entry point for client-facing growth operations
type GrowthService struct {
	repo       *repository.Repository
	policies   PolicyReader
	identities *IdentityService
	ledger     *LedgerService
	admission  *AdmissionService
	claims     *ClaimService
	grants     *DailyGrantService
	verifier   SignatureVerifier
	timeout    time.Duration
}

// GrowthDeps groups GrowthService collaborators
type GrowthDeps struct {
	Repo       *repository.Repository
	Policies   PolicyReader
	Identities *IdentityService
	Ledger     *LedgerService
	Admission  *AdmissionService
	Claims     *ClaimService
	Grants     *DailyGrantService
	Verifier   SignatureVerifier
	Timeout    time.Duration
}

// NewGrowthService creates a new GrowthService
func NewGrowthService(deps GrowthDeps) *GrowthService {
	return &GrowthService{
		repo:       deps.Repo,
		policies:   deps.Policies,
		identities: deps.Identities,
		ledger:     deps.Ledger,
		admission:  deps.Admission,
		claims:     deps.Claims,
		grants:     deps.Grants,
		verifier:   deps.Verifier,
		timeout:    deps.Timeout,
	}
}

func (s *GrowthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// deadlineError reports err as a timeout when it or ctx ran out of time
func deadlineError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", op, context.DeadlineExceeded)
	}
	return err
}

// ResolveIdentity resolves (or creates) the caller's identity, applies an
// optional claim, computes admission and pays any due grant. Everything
// runs in one transaction: an error or timeout leaves no partial effects.
func (s *GrowthService) ResolveIdentity(ctx context.Context, req *models.ResolveIdentityRequest, audit models.AuditContext) (*models.ResolveIdentityResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	claim, err := claims.Parse(req.Claim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	policy, err := s.policies.GetPolicy(ctx, req.AppID)
	if err != nil {
		return nil, deadlineError(ctx, "resolve identity", err)
	}

	var resp *models.ResolveIdentityResponse
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		identity, _, err := s.identities.WithRepo(tx).ResolveOrCreate(ctx, req.AppID, req.Fingerprint)
		if err != nil {
			return err
		}

		outcome, err := s.claims.WithRepo(tx).Resolve(ctx, policy, identity, claim, audit)
		if err != nil {
			return err
		}

		admission, err := s.admission.WithRepo(tx).Evaluate(ctx, policy, identity, outcome.Referred)
		if err != nil {
			return err
		}

		granted, err := s.grants.WithRepo(tx).Apply(ctx, policy, identity, admission.Entitled)
		if err != nil {
			return err
		}

		balance, err := s.ledger.WithRepo(tx).Balance(ctx, identity.ID)
		if err != nil {
			return err
		}

		resp = &models.ResolveIdentityResponse{
			IdentityID:       identity.ID,
			Balance:          balance,
			ReferralCode:     identity.ReferralCode,
			Waitlist:         admission.Waitlist,
			Entitled:         admission.Entitled,
			RequiresWaitlist: admission.RequiresWaitlist,
			Grandfathered:    admission.Grandfathered,
			Claim:            outcome,
			Granted:          granted,
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, deadlineError(ctx, "resolve identity", err)
	}

	return resp, nil
}

// JoinWaitlist records the caller's email and returns its waitlist entry
func (s *GrowthService) JoinWaitlist(ctx context.Context, req *models.JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.policies.GetPolicy(ctx, req.AppID); err != nil {
		return nil, deadlineError(ctx, "join waitlist", err)
	}

	var entry *models.WaitlistEntry
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		entry, err = s.admission.WithRepo(tx).Join(ctx, req)
		return err
	})
	if err != nil {
		return nil, deadlineError(ctx, "join waitlist", err)
	}
	return entry, nil
}

// IssueReferralToken signs a shareable token for an existing identity
func (s *GrowthService) IssueReferralToken(ctx context.Context, appID, fingerprint string) (*ReferralTokenResponse, error) {
	if appID == "" || fingerprint == "" {
		return nil, fmt.Errorf("%w: app_id and fingerprint are required", ErrValidation)
	}
	identity, err := s.identities.FindIdentity(ctx, appID, fingerprint)
	if err != nil {
		return nil, err
	}
	return s.issue(appID, identity.ReferralCode)
}

// IssueMasterToken signs a token carrying the app's master referral code
func (s *GrowthService) IssueMasterToken(ctx context.Context, appID string) (*ReferralTokenResponse, error) {
	policy, err := s.policies.GetPolicy(ctx, appID)
	if err != nil {
		return nil, err
	}
	if policy.MasterReferralCode == "" {
		return nil, fmt.Errorf("%w: app %s has no master referral code", ErrValidation, appID)
	}
	return s.issue(appID, policy.MasterReferralCode)
}

func (s *GrowthService) issue(appID, code string) (*ReferralTokenResponse, error) {
	token, expiresAt, err := s.verifier.IssueReferralToken(appID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to sign referral token: %w", err)
	}
	return &ReferralTokenResponse{
		Token:        token,
		ReferralCode: code,
		ExpiresAt:    expiresAt,
	}, nil
}

// Ledger returns an identity's balance and recent history
func (s *GrowthService) Ledger(ctx context.Context, identityID uuid.UUID, limit int) (*LedgerView, error) {
	identity, err := s.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, identityID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.History(ctx, identityID, limit)
	if err != nil {
		return nil, err
	}

	return &LedgerView{
		IdentityID:   identity.ID,
		AppID:        identity.AppID,
		ReferralCode: identity.ReferralCode,
		Balance:      balance.StringFixed(2),
		Entries:      entries,
	}, nil
}
