package repository

import (
	"context"

	"growth-ledger/internal/models"

	"gorm.io/gorm/clause"
)

// GetAppPolicy retrieves one app's policy
func (r *Repository) GetAppPolicy(ctx context.Context, appID string) (*models.AppPolicy, error) {
	var policy models.AppPolicy
	if err := r.db.WithContext(ctx).Where("app_id = ?", appID).First(&policy).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

// UpsertAppPolicy creates or fully replaces an app's policy
func (r *Repository) UpsertAppPolicy(ctx context.Context, policy *models.AppPolicy) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		UpdateAll: true,
	}).Create(policy).Error
}

// ListAutoInviteApps returns policies with the batch inviter switched on
func (r *Repository) ListAutoInviteApps(ctx context.Context) ([]models.AppPolicy, error) {
	var policies []models.AppPolicy
	err := r.db.WithContext(ctx).
		Where("auto_invite_enabled = ? AND daily_invite_quota > 0", true).
		Order("app_id ASC").
		Find(&policies).Error
	if err != nil {
		return nil, err
	}
	return policies, nil
}
