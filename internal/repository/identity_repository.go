package repository

import (
	"context"
	"time"

	"growth-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindIdentityByFingerprint returns nil, nil when the fingerprint is unknown
func (r *Repository) FindIdentityByFingerprint(ctx context.Context, appID, fingerprint string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND fingerprint = ?", appID, fingerprint).
		First(&identity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetIdentityByID retrieves an identity by ID
func (r *Repository) GetIdentityByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// FindIdentityByReferralCode returns nil, nil when no identity owns code
func (r *Repository) FindIdentityByReferralCode(ctx context.Context, appID, code string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND referral_code = ?", appID, code).
		First(&identity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// LockIdentity loads an identity holding a row lock until the surrounding
// transaction ends.
func (r *Repository) LockIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	err := r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// ReferralCodeExists checks whether code is already issued within the app
func (r *Repository) ReferralCodeExists(ctx context.Context, appID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("app_id = ? AND referral_code = ?", appID, code).
		Count(&count).Error
	return count > 0, err
}

// CreateIdentity inserts inside a savepoint so a unique violation leaves an
// enclosing transaction usable.
func (r *Repository) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(identity).Error
	})
}

// ClaimFirstVisitGrant stamps last_daily_grant only if it has never been set.
// Returns false when another request got there first.
func (r *Repository) ClaimFirstVisitGrant(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND last_daily_grant IS NULL", id).
		Updates(map[string]interface{}{
			"last_daily_grant": now,
			"last_active_at":   now,
		})
	return result.RowsAffected == 1, result.Error
}

// ClaimDailyGrant is a compare-and-swap on last_daily_grant: it succeeds
// only for the one request that observes the previous grant at or before
// cutoff.
func (r *Repository) ClaimDailyGrant(ctx context.Context, id uuid.UUID, now, cutoff time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND last_daily_grant IS NOT NULL AND last_daily_grant <= ?", id, cutoff).
		Updates(map[string]interface{}{
			"last_daily_grant": now,
			"last_active_at":   now,
		})
	return result.RowsAffected == 1, result.Error
}

// TouchIdentity records activity without granting anything
func (r *Repository) TouchIdentity(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", id).
		Update("last_active_at", now).Error
}

// FindProfileByIdentity returns nil, nil when no profile was captured
func (r *Repository) FindProfileByIdentity(ctx context.Context, identityID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile creates or overwrites the identity's email and verification flag
func (r *Repository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":          profile.Email,
			"email_verified": profile.EmailVerified,
			"updated_at":     profile.UpdatedAt,
		}),
	}).Create(profile).Error
}
