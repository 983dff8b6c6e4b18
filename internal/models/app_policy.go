package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppPolicy is the per-app growth configuration read by every component.
type AppPolicy struct {
	AppID                 string          `gorm:"primaryKey;size:64" json:"app_id"`
	ReferralCredits       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"referral_credits"`
	ReferredCredits       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"referred_credits"`
	DailyReferralCap      int             `gorm:"not null;default:0" json:"daily_referral_cap"`
	InvitationCredits     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"invitation_credits"`
	PerDayCredits         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"per_day_credits"`
	FirstVisitCredits     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"first_visit_credits"`
	MasterReferralCode    string          `gorm:"size:64" json:"master_referral_code"`
	MasterReferralCredits decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"master_referral_credits"`
	WaitlistEnabled       bool            `gorm:"default:false" json:"waitlist_enabled"`
	WaitlistEnabledAt     *time.Time      `json:"waitlist_enabled_at,omitempty"`
	CreditsPaused         bool            `gorm:"default:false" json:"credits_paused"`
	AutoInviteEnabled     bool            `gorm:"default:false" json:"auto_invite_enabled"`
	DailyInviteQuota      int             `gorm:"not null;default:0" json:"daily_invite_quota"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (AppPolicy) TableName() string {
	return "app_policies"
}

// IsMasterCode reports whether code is this app's master referral code.
func (p *AppPolicy) IsMasterCode(code string) bool {
	return p.MasterReferralCode != "" && code == p.MasterReferralCode
}
