package repository

import (
	"context"

	"growth-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppendCredit inserts one ledger row
func (r *Repository) AppendCredit(ctx context.Context, entry *models.CreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// SumCredits reduces an identity's ledger to its balance
func (r *Repository) SumCredits(ctx context.Context, identityID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	row := r.db.WithContext(ctx).Model(&models.CreditEntry{}).
		Where("identity_id = ?", identityID).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ListCredits returns the newest entries first
func (r *Repository) ListCredits(ctx context.Context, identityID uuid.UUID, limit int) ([]models.CreditEntry, error) {
	var entries []models.CreditEntry
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateAuditEvent appends an audit row
func (r *Repository) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
