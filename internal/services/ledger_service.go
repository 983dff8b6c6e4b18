package services

import (
	"context"
	"fmt"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService appends credit entries and reduces them to balances.
// There is no stored balance: Balance always sums the entries.
type LedgerService struct {
	repo *repository.Repository
	now  Clock
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo *repository.Repository, now Clock) *LedgerService {
	return &LedgerService{repo: repo, now: now}
}

// WithRepo returns a copy bound to repo (typically a transaction)
func (s *LedgerService) WithRepo(repo *repository.Repository) *LedgerService {
	c := *s
	c.repo = repo
	return &c
}

// AppendCredit records amount for identityID. A zero amount writes nothing
// and returns nil, nil.
func (s *LedgerService) AppendCredit(
	ctx context.Context,
	identityID uuid.UUID,
	amount decimal.Decimal,
	reason models.CreditReason,
	metadata map[string]string,
) (*models.CreditEntry, error) {
	identity, err := s.repo.GetIdentityByID(ctx, identityID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: identity %s", ErrNotFound, identityID)
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	if amount.IsZero() {
		return nil, nil
	}

	entry := &models.CreditEntry{
		AppID:      identity.AppID,
		IdentityID: identityID,
		Amount:     amount,
		Reason:     reason,
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	if err := s.repo.AppendCredit(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append credit: %w", err)
	}

	return entry, nil
}

// Balance sums every entry for identityID
func (s *LedgerService) Balance(ctx context.Context, identityID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.repo.SumCredits(ctx, identityID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// History returns the newest entries first
func (s *LedgerService) History(ctx context.Context, identityID uuid.UUID, limit int) ([]models.CreditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.repo.ListCredits(ctx, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	return entries, nil
}
