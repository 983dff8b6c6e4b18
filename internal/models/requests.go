package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResolveIdentityRequest is the inbound identity-resolution call.
type ResolveIdentityRequest struct {
	AppID       string `json:"app_id" binding:"required" validate:"required,max=64"`
	Fingerprint string `json:"fingerprint" binding:"required" validate:"required,min=8,max=256,printascii"`
	Claim       string `json:"claim,omitempty" validate:"max=4096"`
}

// JoinWaitlistRequest captures an email for the waitlist.
type JoinWaitlistRequest struct {
	AppID       string `json:"app_id" binding:"required" validate:"required,max=64"`
	Fingerprint string `json:"fingerprint" binding:"required" validate:"required,min=8,max=256,printascii"`
	Email       string `json:"email" binding:"required" validate:"required,email,max=320"`
}

// AuditContext carries request metadata recorded with audit events.
type AuditContext struct {
	IP        string
	UserAgent string
}

func (a AuditContext) Metadata() map[string]string {
	m := map[string]string{}
	if a.IP != "" {
		m["ip"] = a.IP
	}
	if a.UserAgent != "" {
		m["user_agent"] = a.UserAgent
	}
	return m
}

type ClaimStatus string

const (
	ClaimStatusNone     ClaimStatus = "none"
	ClaimStatusAccepted ClaimStatus = "accepted"
	ClaimStatusIgnored  ClaimStatus = "ignored"
)

// ClaimOutcome describes what happened to a submitted claim. Ignored claims
// are not errors: the request still succeeds.
type ClaimOutcome struct {
	Kind     string      `json:"kind"`
	Status   ClaimStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Referred bool        `json:"referred"`
	Credited bool        `json:"credited"`
}

type WaitlistView struct {
	Status   WaitlistStatus `json:"status"`
	Position *int64         `json:"position,omitempty"`
}

// Admission is the computed (never persisted) entitlement for one request.
type Admission struct {
	Waitlist         WaitlistView `json:"waitlist"`
	Entitled         bool         `json:"entitled"`
	RequiresWaitlist bool         `json:"requires_waitlist"`
	Grandfathered    bool         `json:"grandfathered"`
}

// ResolveIdentityResponse is returned by ResolveIdentity.
type ResolveIdentityResponse struct {
	IdentityID       uuid.UUID       `json:"identity_id"`
	Balance          decimal.Decimal `json:"balance"`
	ReferralCode     string          `json:"referral_code"`
	Waitlist         WaitlistView    `json:"waitlist"`
	Entitled         bool            `json:"entitled"`
	RequiresWaitlist bool            `json:"requires_waitlist"`
	Grandfathered    bool            `json:"grandfathered"`
	Claim            ClaimOutcome    `json:"claim"`
	Granted          *CreditEntry    `json:"granted,omitempty"`
}
