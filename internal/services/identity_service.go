package services

import (
	"context"
	"fmt"
	"log"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"
	"growth-ledger/internal/utils"

	"github.com/google/uuid"
)

// IdentityService resolves anonymous identities
type IdentityService struct {
	repo *repository.Repository
	now  Clock
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(repo *repository.Repository, now Clock) *IdentityService {
	return &IdentityService{repo: repo, now: now}
}

// WithRepo returns a copy bound to repo (typically a transaction)
func (s *IdentityService) WithRepo(repo *repository.Repository) *IdentityService {
	c := *s
	c.repo = repo
	return &c
}

// ResolveOrCreate looks up (appID, fingerprint) and creates the identity,
// with a fresh referral code, when it does not exist yet. The boolean is
// true when this call created it.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, appID, fingerprint string) (*models.Identity, bool, error) {
	existing, err := s.repo.FindIdentityByFingerprint(ctx, appID, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up identity: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := utils.GenerateReferralCode()
		if err != nil {
			return nil, false, err
		}

		taken, err := s.repo.ReferralCodeExists(ctx, appID, code)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check referral code: %w", err)
		}
		if taken {
			continue
		}

		identity := &models.Identity{
			AppID:        appID,
			Fingerprint:  fingerprint,
			ReferralCode: code,
			CreatedAt:    s.now(),
		}
		err = s.repo.CreateIdentity(ctx, identity)
		if err == nil {
			log.Printf("[Identity] Created identity %s for app %s", identity.ID, appID)
			return identity, true, nil
		}
		if !repository.IsDuplicateKey(err) {
			return nil, false, fmt.Errorf("failed to create identity: %w", err)
		}

		// Either a concurrent request created this fingerprint or the code
		// was taken in between; the first case resolves to that row.
		existing, err := s.repo.FindIdentityByFingerprint(ctx, appID, fingerprint)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up identity: %w", err)
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	return nil, false, fmt.Errorf("%w: referral code after %d attempts", ErrCodeCollision, maxCodeAttempts)
}

// FindIdentity returns ErrNotFound for an unknown fingerprint
func (s *IdentityService) FindIdentity(ctx context.Context, appID, fingerprint string) (*models.Identity, error) {
	identity, err := s.repo.FindIdentityByFingerprint(ctx, appID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: identity", ErrNotFound)
	}
	return identity, nil
}

// GetIdentity returns ErrNotFound for an unknown ID
func (s *IdentityService) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	identity, err := s.repo.GetIdentityByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: identity %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return identity, nil
}
