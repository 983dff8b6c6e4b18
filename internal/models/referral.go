package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral records that ReferredID redeemed a referral token. The unique
// index on referred_id makes "referred at most once" a storage guarantee.
// ReferrerID is nil for redemptions of the app's master code.
type Referral struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AppID          string     `gorm:"size:64;not null;index" json:"app_id"`
	ReferrerID     *uuid.UUID `gorm:"type:uuid;index:idx_referrals_referrer_created,priority:1" json:"referrer_id,omitempty"`
	ReferredID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_referrals_referred" json:"referred_id"`
	ReferralCode   string     `gorm:"size:64;not null" json:"referral_code"`
	IsMaster       bool       `gorm:"default:false" json:"is_master"`
	ClaimToken     string     `gorm:"type:text;not null" json:"-"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`
	ClaimedAt      time.Time  `gorm:"not null" json:"claimed_at"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_referrals_referrer_created,priority:2" json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
