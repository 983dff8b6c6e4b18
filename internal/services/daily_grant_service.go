package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"
)

// GrantInterval is the minimum spacing between two grants to one identity
const GrantInterval = 24 * time.Hour

// DailyGrantService awards the first-visit and per-day credits
type DailyGrantService struct {
	repo   *repository.Repository
	ledger *LedgerService
	now    Clock
}

// NewDailyGrantService creates a new DailyGrantService
func NewDailyGrantService(repo *repository.Repository, ledger *LedgerService, now Clock) *DailyGrantService {
	return &DailyGrantService{
		repo:   repo,
		ledger: ledger,
		now:    now,
	}
}

// WithRepo returns a copy bound to repo (typically a transaction)
func (s *DailyGrantService) WithRepo(repo *repository.Repository) *DailyGrantService {
	c := *s
	c.repo = repo
	c.ledger = s.ledger.WithRepo(repo)
	return &c
}

// Apply grants the identity its due credit, if any, and returns the entry
// written. Nothing is granted to identities that are not entitled or while
// the app has credits paused; activity is still recorded.
func (s *DailyGrantService) Apply(ctx context.Context, policy *models.AppPolicy, identity *models.Identity, entitled bool) (*models.CreditEntry, error) {
	now := s.now()

	if !entitled || policy.CreditsPaused {
		if err := s.repo.TouchIdentity(ctx, identity.ID, now); err != nil {
			return nil, fmt.Errorf("failed to record activity: %w", err)
		}
		return nil, nil
	}

	var granted *models.CreditEntry
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var (
			claimed bool
			err     error
			reason  models.CreditReason
			amount  = policy.PerDayCredits
		)

		// The conditional update is the only gate: a concurrent request
		// that loses it simply gets no grant.
		if identity.LastDailyGrant == nil {
			reason = models.CreditReasonFirstVisit
			amount = policy.FirstVisitCredits
			claimed, err = tx.ClaimFirstVisitGrant(ctx, identity.ID, now)
		} else {
			reason = models.CreditReasonDailyGrant
			claimed, err = tx.ClaimDailyGrant(ctx, identity.ID, now, now.Add(-GrantInterval))
		}
		if err != nil {
			return fmt.Errorf("failed to claim grant: %w", err)
		}
		if !claimed {
			return tx.TouchIdentity(ctx, identity.ID, now)
		}

		entry, err := s.ledger.WithRepo(tx).AppendCredit(ctx, identity.ID, amount, reason, nil)
		if err != nil {
			return err
		}
		granted = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	if granted != nil {
		log.Printf("[Grants] %s of %s credited to identity %s", granted.Reason, granted.Amount, identity.ID)
	}
	return granted, nil
}
