package repository

import (
	"context"
	"time"

	"growth-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FindWaitlistEntryByEmail returns nil, nil when the email never joined
func (r *Repository) FindWaitlistEntryByEmail(ctx context.Context, appID, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.WithContext(ctx).Where("app_id = ? AND email = ?", appID, email).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindWaitlistEntryByCode returns nil, nil for an unknown invitation code
func (r *Repository) FindWaitlistEntryByCode(ctx context.Context, appID, code string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.db.WithContext(ctx).Where("app_id = ? AND invitation_code = ?", appID, code).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetWaitlistEntryByID retrieves an entry by ID
func (r *Repository) GetWaitlistEntryByID(ctx context.Context, id uuid.UUID) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// InvitationCodeExists checks whether code is already assigned within the app
func (r *Repository) InvitationCodeExists(ctx context.Context, appID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("app_id = ? AND invitation_code = ?", appID, code).
		Count(&count).Error
	return count > 0, err
}

// NextWaitlistPosition returns one past the highest position in the app
func (r *Repository) NextWaitlistPosition(ctx context.Context, appID string) (int64, error) {
	var maxPosition int64
	row := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("app_id = ?", appID).
		Select("COALESCE(MAX(position), 0)").Row()
	if err := row.Scan(&maxPosition); err != nil {
		return 0, err
	}
	return maxPosition + 1, nil
}

// CreateWaitlistEntry inserts inside a savepoint (email and position are unique per app)
func (r *Repository) CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

// ListWaitingEntries returns up to limit WAITING entries in signup order
func (r *Repository) ListWaitingEntries(ctx context.Context, appID string, limit int) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND status = ?", appID, models.WaitlistStatusWaiting).
		Order("position ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkInvited attaches an invitation code and moves the entry to INVITED.
// Returns false when the entry has already moved past WAITING.
func (r *Repository) MarkInvited(ctx context.Context, entryID uuid.UUID, code string, expiresAt, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("id = ? AND status IN ?", entryID, models.PredecessorsOf(models.WaitlistStatusInvited)).
		Updates(map[string]interface{}{
			"status":          models.WaitlistStatusInvited,
			"invitation_code": code,
			"code_expires_at": expiresAt,
			"invited_at":      now,
		})
	return result.RowsAffected == 1, result.Error
}

// RedeemInvitation consumes an unused code for identityID. The
// code_used_at IS NULL guard makes the code single-use under concurrency.
// The status moves to ACCEPTED only from an earlier status; an entry that
// is already ACCEPTED keeps its accepted_at.
func (r *Repository) RedeemInvitation(ctx context.Context, entryID, identityID uuid.UUID, now time.Time) (bool, error) {
	predecessors := models.PredecessorsOf(models.WaitlistStatusAccepted)
	result := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("id = ? AND code_used_at IS NULL", entryID).
		Updates(map[string]interface{}{
			"status":       gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END", predecessors, models.WaitlistStatusAccepted),
			"accepted_at":  gorm.Expr("CASE WHEN status IN ? THEN ? ELSE accepted_at END", predecessors, now),
			"identity_id":  identityID,
			"code_used_at": now,
			"use_count":    gorm.Expr("use_count + ?", 1),
		})
	return result.RowsAffected == 1, result.Error
}

// LinkWaitlistIdentity records identityID as the owner of an unclaimed entry
func (r *Repository) LinkWaitlistIdentity(ctx context.Context, entryID, identityID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("id = ? AND identity_id IS NULL", entryID).
		Update("identity_id", identityID).Error
}

// AdvanceWaitlistStatus moves an entry forward to next; backward or
// sideways moves affect no rows.
func (r *Repository) AdvanceWaitlistStatus(ctx context.Context, entryID uuid.UUID, next models.WaitlistStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{"status": next}
	switch next {
	case models.WaitlistStatusInvited:
		updates["invited_at"] = now
	case models.WaitlistStatusAccepted:
		updates["accepted_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).
		Where("id = ? AND status IN ?", entryID, models.PredecessorsOf(next)).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}
