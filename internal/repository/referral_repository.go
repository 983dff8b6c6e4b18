package repository

import (
	"context"
	"time"

	"growth-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FindReferralByReferred returns the identity's lifetime referral row, or nil, nil
func (r *Repository) FindReferralByReferred(ctx context.Context, referredID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&referral).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// CreateReferral inserts inside a savepoint; a duplicate referred_id surfaces
// as a duplicate-key error (see IsDuplicateKey).
func (r *Repository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(referral).Error
	})
}

// CountReferralsSince counts referrals credited to referrerID at or after since
func (r *Repository) CountReferralsSince(ctx context.Context, referrerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ? AND created_at >= ?", referrerID, since).
		Count(&count).Error
	return count, err
}
