package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"
	"growth-ledger/internal/utils"

	"github.com/google/uuid"
)

// InvitationTemplate names the email template used for invitations
const InvitationTemplate = "waitlist_invitation"

// EmailSender delivers templated transactional email
type EmailSender interface {
	Send(ctx context.Context, to, template string, data map[string]string) error
}

// BatchResult summarizes one app's invitation batch
type BatchResult struct {
	AppID    string   `json:"app_id"`
	Selected int      `json:"selected"`
	Invited  int      `json:"invited"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// InvitationService issues invitation codes to waiting entries
type InvitationService struct {
	repo          *repository.Repository
	sender        EmailSender
	codeTTL       time.Duration
	inviteURLBase string
	now           Clock
	generate      func() (string, error)
}

// NewInvitationService creates a new InvitationService. sender may be nil,
// in which case every delivery fails and entries stay WAITING.
func NewInvitationService(repo *repository.Repository, sender EmailSender, codeTTL time.Duration, inviteURLBase string, now Clock) *InvitationService {
	return &InvitationService{
		repo:          repo,
		sender:        sender,
		codeTTL:       codeTTL,
		inviteURLBase: inviteURLBase,
		now:           now,
		generate:      utils.GenerateInvitationCode,
	}
}

// GenerateCode returns an invitation code not yet used within the app
func (s *InvitationService) GenerateCode(ctx context.Context, appID string) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}
		taken, err := s.repo.InvitationCodeExists(ctx, appID, code)
		if err != nil {
			return "", fmt.Errorf("failed to check invitation code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: invitation code after %d attempts", ErrCodeCollision, maxCodeAttempts)
}

// RunBatch invites up to each auto-invite app's daily quota
func (s *InvitationService) RunBatch(ctx context.Context) ([]BatchResult, error) {
	apps, err := s.repo.ListAutoInviteApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}

	results := make([]BatchResult, 0, len(apps))
	for i := range apps {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		result, err := s.InviteApp(ctx, &apps[i], apps[i].DailyInviteQuota)
		if err != nil {
			log.Printf("[Invitations] Batch for app %s failed: %v", apps[i].AppID, err)
			results = append(results, BatchResult{AppID: apps[i].AppID, Errors: []string{err.Error()}})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// InviteApp invites up to limit WAITING entries of one app in signup
// order. An entry moves to INVITED only after its email was accepted for
// delivery; failures are recorded and the entry stays WAITING.
func (s *InvitationService) InviteApp(ctx context.Context, policy *models.AppPolicy, limit int) (*BatchResult, error) {
	result := &BatchResult{AppID: policy.AppID}
	if limit <= 0 {
		return result, nil
	}

	entries, err := s.repo.ListWaitingEntries(ctx, policy.AppID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	result.Selected = len(entries)

	for i := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		entry := &entries[i]
		if err := s.inviteEntry(ctx, entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Email, err))
			log.Printf("[Invitations] Failed to invite %s for app %s: %v", entry.Email, entry.AppID, err)
			s.recordFailure(ctx, entry, err)
			continue
		}
		result.Invited++
	}

	log.Printf("[Invitations] App %s: %d selected, %d invited, %d failed",
		policy.AppID, result.Selected, result.Invited, result.Failed)
	return result, nil
}

func (s *InvitationService) inviteEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	code, err := s.GenerateCode(ctx, entry.AppID)
	if err != nil {
		return err
	}

	now := s.now()
	expiresAt := now.Add(s.codeTTL)

	if s.sender == nil {
		return fmt.Errorf("%w: no email sender configured", ErrDeliveryFailed)
	}
	data := map[string]string{
		"invitation_code": code,
		"invite_url":      s.inviteURL(code),
		"expires_at":      expiresAt.Format(time.RFC3339),
		"position":        strconv.FormatInt(entry.Position, 10),
	}
	if err := s.sender.Send(ctx, entry.Email, InvitationTemplate, data); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	marked, err := s.repo.MarkInvited(ctx, entry.ID, code, expiresAt, now)
	if err != nil {
		return fmt.Errorf("failed to mark entry invited: %w", err)
	}
	if !marked {
		return errors.New("entry is no longer waiting")
	}

	s.recordEvent(ctx, entry, models.AuditActionInvitationSent, map[string]string{
		"invitation_code": code,
		"email":           entry.Email,
	})
	return nil
}

func (s *InvitationService) inviteURL(code string) string {
	if s.inviteURLBase == "" {
		return ""
	}
	return s.inviteURLBase + "?invite=" + code
}

func (s *InvitationService) recordFailure(ctx context.Context, entry *models.WaitlistEntry, cause error) {
	s.recordEvent(ctx, entry, models.AuditActionInvitationFailed, map[string]string{
		"email": entry.Email,
		"error": cause.Error(),
	})
}

func (s *InvitationService) recordEvent(ctx context.Context, entry *models.WaitlistEntry, action string, metadata map[string]string) {
	metadata["waitlist_entry_id"] = entry.ID.String()
	event := &models.AuditEvent{
		AppID:      entry.AppID,
		IdentityID: identityOf(entry),
		Action:     action,
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateAuditEvent(ctx, event); err != nil {
		log.Printf("[Invitations] Failed to record %s for entry %s: %v", action, entry.ID, err)
	}
}

func identityOf(entry *models.WaitlistEntry) *uuid.UUID {
	if entry.IdentityID == nil {
		return nil
	}
	id := *entry.IdentityID
	return &id
}
