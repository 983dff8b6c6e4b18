package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditActionInvitationRedeemed = "invitation_redeemed"
	AuditActionReferralAwarded    = "referral_awarded"
	AuditActionMasterReferral     = "master_referral_redeemed"
	AuditActionInvitationSent     = "invitation_sent"
	AuditActionInvitationFailed   = "invitation_delivery_failed"
)

// AuditEvent is an append-only record of growth side effects.
type AuditEvent struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string            `gorm:"size:64;not null;index" json:"app_id"`
	IdentityID *uuid.UUID        `gorm:"type:uuid;index" json:"identity_id,omitempty"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	Metadata   map[string]string `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

func (a *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
