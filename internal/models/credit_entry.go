package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreditReason string

const (
	CreditReasonFirstVisit     CreditReason = "first_visit"
	CreditReasonDailyGrant     CreditReason = "daily_grant"
	CreditReasonReferral       CreditReason = "referral"
	CreditReasonMasterReferral CreditReason = "master_referral"
	CreditReasonInvitation     CreditReason = "invitation"
)

// CreditEntry is one append-only ledger row. Rows are never updated or
// deleted; an identity's balance is the sum of its entries.
type CreditEntry struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      string            `gorm:"size:64;not null;index" json:"app_id"`
	IdentityID uuid.UUID         `gorm:"type:uuid;not null;index:idx_credit_entries_identity_created,priority:1" json:"identity_id"`
	Amount     decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"amount"`
	Reason     CreditReason      `gorm:"size:32;not null;index" json:"reason"`
	Metadata   map[string]string `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_credit_entries_identity_created,priority:2" json:"created_at"`
}

func (CreditEntry) TableName() string {
	return "credit_entries"
}

func (e *CreditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects any attempt to rewrite ledger history.
func (e *CreditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

func (e *CreditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}
