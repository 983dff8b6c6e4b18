package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is an anonymous per-app user, keyed by a client fingerprint.
// Identities are never deleted and their referral code never changes.
type Identity struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AppID          string     `gorm:"size:64;not null;uniqueIndex:ux_identities_app_fingerprint,priority:1;uniqueIndex:ux_identities_app_referral_code,priority:1" json:"app_id"`
	Fingerprint    string     `gorm:"size:256;not null;uniqueIndex:ux_identities_app_fingerprint,priority:2" json:"-"`
	ReferralCode   string     `gorm:"size:32;not null;uniqueIndex:ux_identities_app_referral_code,priority:2" json:"referral_code"`
	LastDailyGrant *time.Time `json:"last_daily_grant,omitempty"`
	LastActiveAt   *time.Time `json:"last_active_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (Identity) TableName() string {
	return "identities"
}

func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Profile holds the contact details captured for an identity (the "lead").
type Profile struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID         string    `gorm:"size:64;not null;index" json:"app_id"`
	IdentityID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"identity_id"`
	Email         string    `gorm:"size:320;not null;index" json:"email"`
	EmailVerified bool      `gorm:"default:false" json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
