package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"
)

// maxPositionAttempts bounds retries when two joins race for a position
const maxPositionAttempts = 3

// AdmissionService owns the waitlist and computes entitlement
type AdmissionService struct {
	repo       *repository.Repository
	identities *IdentityService
	now        Clock
}

// NewAdmissionService creates a new AdmissionService
func NewAdmissionService(repo *repository.Repository, identities *IdentityService, now Clock) *AdmissionService {
	return &AdmissionService{
		repo:       repo,
		identities: identities,
		now:        now,
	}
}

// WithRepo returns a copy bound to repo (typically a transaction)
func (s *AdmissionService) WithRepo(repo *repository.Repository) *AdmissionService {
	c := *s
	c.repo = repo
	c.identities = s.identities.WithRepo(repo)
	return &c
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lookup returns the identity's profile and the waitlist entry matching its
// email. Either may be nil.
func (s *AdmissionService) lookup(ctx context.Context, identity *models.Identity) (*models.Profile, *models.WaitlistEntry, error) {
	profile, err := s.repo.FindProfileByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil || profile.Email == "" {
		return profile, nil, nil
	}

	entry, err := s.repo.FindWaitlistEntryByEmail(ctx, identity.AppID, profile.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load waitlist entry: %w", err)
	}
	return profile, entry, nil
}

// holds reports whether identity may act on entry: it created or redeemed
// the entry, or its profile email was verified by an invitation.
func holds(identity *models.Identity, profile *models.Profile, entry *models.WaitlistEntry) bool {
	if entry.IdentityID != nil && *entry.IdentityID == identity.ID {
		return true
	}
	return profile != nil && profile.EmailVerified
}

// Evaluate computes admission for identity under policy. justReferred is
// true when this request produced a referral for the identity.
func (s *AdmissionService) Evaluate(ctx context.Context, policy *models.AppPolicy, identity *models.Identity, justReferred bool) (*models.Admission, error) {
	view := models.WaitlistView{Status: models.WaitlistStatusNone}

	profile, entry, err := s.lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	admitted := false
	if entry != nil {
		position := entry.Position
		view = models.WaitlistView{Status: entry.Status, Position: &position}
		admitted = entry.Status.Admitted() && holds(identity, profile, entry)
	}

	grandfathered := policy.WaitlistEnabled &&
		policy.WaitlistEnabledAt != nil &&
		identity.CreatedAt.Before(*policy.WaitlistEnabledAt)

	entitled := !policy.WaitlistEnabled ||
		grandfathered ||
		admitted ||
		justReferred

	return &models.Admission{
		Waitlist:         view,
		Entitled:         entitled,
		RequiresWaitlist: !entitled,
		Grandfathered:    grandfathered,
	}, nil
}

// Join captures email for the identity behind req and places it on the
// waitlist. Joining again with the same email returns the existing entry.
func (s *AdmissionService) Join(ctx context.Context, req *models.JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	email := NormalizeEmail(req.Email)

	identity, _, err := s.identities.ResolveOrCreate(ctx, req.AppID, req.Fingerprint)
	if err != nil {
		return nil, err
	}

	entry, err := s.ensureEntry(ctx, identity, email)
	if err != nil {
		return nil, err
	}

	if err := s.attachEmail(ctx, identity, email, false); err != nil {
		return nil, err
	}

	return entry, nil
}

// ensureEntry returns the entry for email, creating it owned by identity
// when the email is new.
func (s *AdmissionService) ensureEntry(ctx context.Context, identity *models.Identity, email string) (*models.WaitlistEntry, error) {
	appID := identity.AppID
	identityID := identity.ID
	for attempt := 1; attempt <= maxPositionAttempts; attempt++ {
		existing, err := s.repo.FindWaitlistEntryByEmail(ctx, appID, email)
		if err != nil {
			return nil, fmt.Errorf("failed to load waitlist entry: %w", err)
		}
		if existing != nil {
			return existing, nil
		}

		position, err := s.repo.NextWaitlistPosition(ctx, appID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute waitlist position: %w", err)
		}

		entry := &models.WaitlistEntry{
			AppID:      appID,
			IdentityID: &identityID,
			Email:      email,
			Status:     models.WaitlistStatusWaiting,
			Position:   position,
			CreatedAt:  s.now(),
			UpdatedAt:  s.now(),
		}
		err = s.repo.CreateWaitlistEntry(ctx, entry)
		if err == nil {
			log.Printf("[Waitlist] %s joined app %s at position %d", email, appID, position)
			return entry, nil
		}
		if !repository.IsDuplicateKey(err) {
			return nil, fmt.Errorf("failed to create waitlist entry: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to allocate waitlist position for app %s", appID)
}

// attachEmail records email on the identity's profile. A verified email is
// never replaced by an unverified one.
func (s *AdmissionService) attachEmail(ctx context.Context, identity *models.Identity, email string, verified bool) error {
	current, err := s.repo.FindProfileByIdentity(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if current != nil && current.EmailVerified && !verified {
		return nil
	}

	profile := &models.Profile{
		AppID:         identity.AppID,
		IdentityID:    identity.ID,
		Email:         email,
		EmailVerified: verified,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// PromoteAfterReferral applies the waitlist effect of a successful
// referral: an INVITED entry is accepted, and a master claim also lifts a
// WAITING entry to INVITED. Entries the identity does not hold are left
// alone.
func (s *AdmissionService) PromoteAfterReferral(ctx context.Context, identity *models.Identity, master bool) error {
	profile, entry, err := s.lookup(ctx, identity)
	if err != nil || entry == nil {
		return err
	}
	if !holds(identity, profile, entry) {
		return nil
	}

	var next models.WaitlistStatus
	switch {
	case entry.Status == models.WaitlistStatusInvited:
		next = models.WaitlistStatusAccepted
	case entry.Status == models.WaitlistStatusWaiting && master:
		next = models.WaitlistStatusInvited
	default:
		return nil
	}

	if _, err := s.repo.AdvanceWaitlistStatus(ctx, entry.ID, next, s.now()); err != nil {
		return fmt.Errorf("failed to advance waitlist entry: %w", err)
	}
	if err := s.repo.LinkWaitlistIdentity(ctx, entry.ID, identity.ID); err != nil {
		return fmt.Errorf("failed to link waitlist entry: %w", err)
	}
	log.Printf("[Waitlist] Entry %s advanced %s -> %s", entry.ID, entry.Status, next)
	return nil
}
