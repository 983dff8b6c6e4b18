package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WaitlistStatus string

const (
	WaitlistStatusNone     WaitlistStatus = "NONE"
	WaitlistStatusWaiting  WaitlistStatus = "WAITING"
	WaitlistStatusInvited  WaitlistStatus = "INVITED"
	WaitlistStatusAccepted WaitlistStatus = "ACCEPTED"
)

func (s WaitlistStatus) rank() int {
	switch s {
	case WaitlistStatusWaiting:
		return 1
	case WaitlistStatusInvited:
		return 2
	case WaitlistStatusAccepted:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the status
// forward-only.
func (s WaitlistStatus) CanAdvanceTo(next WaitlistStatus) bool {
	return next.rank() > s.rank()
}

// Admitted reports whether the status grants feature access.
func (s WaitlistStatus) Admitted() bool {
	return s == WaitlistStatusInvited || s == WaitlistStatusAccepted
}

// PredecessorsOf lists the stored statuses that may advance to next.
func PredecessorsOf(next WaitlistStatus) []WaitlistStatus {
	var from []WaitlistStatus
	for _, s := range []WaitlistStatus{WaitlistStatusWaiting, WaitlistStatusInvited, WaitlistStatusAccepted} {
		if s.CanAdvanceTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// WaitlistEntry tracks admission for one email within an app.
type WaitlistEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AppID          string         `gorm:"size:64;not null;uniqueIndex:ux_waitlist_app_email,priority:1;uniqueIndex:ux_waitlist_app_code,priority:1;uniqueIndex:ux_waitlist_app_position,priority:1;index:idx_waitlist_queue,priority:1" json:"app_id"`
	Email          string         `gorm:"size:320;not null;uniqueIndex:ux_waitlist_app_email,priority:2" json:"email"`
	Status         WaitlistStatus `gorm:"size:16;not null;default:WAITING;index:idx_waitlist_queue,priority:2" json:"status"`
	Position       int64          `gorm:"not null;uniqueIndex:ux_waitlist_app_position,priority:2;index:idx_waitlist_queue,priority:3" json:"position"`
	InvitationCode *string        `gorm:"size:32;uniqueIndex:ux_waitlist_app_code,priority:2" json:"invitation_code,omitempty"`
	CodeExpiresAt  *time.Time     `json:"code_expires_at,omitempty"`
	CodeUsedAt     *time.Time     `json:"code_used_at,omitempty"`
	UseCount       int            `gorm:"not null;default:0" json:"use_count"`
	IdentityID     *uuid.UUID     `gorm:"type:uuid;index" json:"identity_id,omitempty"`
	InvitedAt      *time.Time     `json:"invited_at,omitempty"`
	AcceptedAt     *time.Time     `json:"accepted_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}

func (w *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
