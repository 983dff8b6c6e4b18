package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"growth-ledger/internal/auth"
	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testApp = "app-test"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// :memory: is per connection, so the pool must never open a second one
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.AppPolicy{},
		&models.Identity{},
		&models.Profile{},
		&models.CreditEntry{},
		&models.Referral{},
		&models.WaitlistEntry{},
		&models.AuditEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEmail struct {
	To       string
	Template string
	Data     map[string]string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, to, template string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, sentEmail{To: to, Template: template, Data: data})
	return nil
}

type testEnv struct {
	db          *gorm.DB
	repo        *repository.Repository
	clock       *testClock
	signer      *auth.TokenSigner
	sender      *fakeSender
	policies    *PolicyService
	identities  *IdentityService
	ledger      *LedgerService
	admission   *AdmissionService
	grants      *DailyGrantService
	invitations *InvitationService
	growth      *GrowthService
}

func defaultPolicy() *models.AppPolicy {
	return &models.AppPolicy{
		AppID:             testApp,
		ReferralCredits:   decimal.NewFromInt(5),
		ReferredCredits:   decimal.NewFromInt(3),
		DailyReferralCap:  2,
		InvitationCredits: decimal.NewFromInt(7),
		AutoInviteEnabled: true,
		DailyInviteQuota:  2,
	}
}

func newTestEnv(t *testing.T, policy *models.AppPolicy) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	clock := newTestClock()
	signer := auth.NewTokenSigner("test-referral-secret", 30*24*time.Hour).WithClock(clock.Now)
	sender := &fakeSender{failFor: map[string]bool{}}

	policies := NewPolicyService(repo, nil, time.Minute)
	if policy != nil {
		if err := policies.UpsertPolicy(context.Background(), policy); err != nil {
			t.Fatalf("failed to save policy: %v", err)
		}
	}

	identities := NewIdentityService(repo, clock.Now)
	ledger := NewLedgerService(repo, clock.Now)
	admission := NewAdmissionService(repo, identities, clock.Now)
	claimSvc := NewClaimService(repo, ledger, admission, signer, time.UTC, clock.Now)
	grants := NewDailyGrantService(repo, ledger, clock.Now)
	invitations := NewInvitationService(repo, sender, 7*24*time.Hour, "https://app.example.com/join", clock.Now)

	growth := NewGrowthService(GrowthDeps{
		Repo:       repo,
		Policies:   policies,
		Identities: identities,
		Ledger:     ledger,
		Admission:  admission,
		Claims:     claimSvc,
		Grants:     grants,
		Verifier:   signer,
		Timeout:    5 * time.Second,
	})

	return &testEnv{
		db:          db,
		repo:        repo,
		clock:       clock,
		signer:      signer,
		sender:      sender,
		policies:    policies,
		identities:  identities,
		ledger:      ledger,
		admission:   admission,
		grants:      grants,
		invitations: invitations,
		growth:      growth,
	}
}

func (e *testEnv) resolve(t *testing.T, fingerprint, claim string) *models.ResolveIdentityResponse {
	t.Helper()
	resp, err := e.growth.ResolveIdentity(context.Background(), &models.ResolveIdentityRequest{
		AppID:       testApp,
		Fingerprint: fingerprint,
		Claim:       claim,
	}, models.AuditContext{IP: "203.0.113.7"})
	if err != nil {
		t.Fatalf("ResolveIdentity(%s) failed: %v", fingerprint, err)
	}
	return resp
}

func (e *testEnv) tokenFor(t *testing.T, resp *models.ResolveIdentityResponse) string {
	t.Helper()
	token, _, err := e.signer.IssueReferralToken(testApp, resp.ReferralCode)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// assertBalanceMatchesEntries checks the reported balance against the raw entries
func (e *testEnv) assertBalanceMatchesEntries(t *testing.T, resp *models.ResolveIdentityResponse) {
	t.Helper()
	var entries []models.CreditEntry
	if err := e.db.Where("identity_id = ?", resp.IdentityID).Find(&entries).Error; err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Amount)
	}
	balance, err := e.ledger.Balance(context.Background(), resp.IdentityID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(sum) {
		t.Errorf("balance %s does not match sum of entries %s", balance, sum)
	}
}

func (e *testEnv) balance(t *testing.T, resp *models.ResolveIdentityResponse) decimal.Decimal {
	t.Helper()
	balance, err := e.ledger.Balance(context.Background(), resp.IdentityID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return balance
}

func (e *testEnv) auditEvents(t *testing.T, action string) []models.AuditEvent {
	t.Helper()
	var events []models.AuditEvent
	err := e.db.Where("app_id = ? AND action = ?", testApp, action).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		t.Fatalf("failed to list audit events: %v", err)
	}
	return events
}

func (e *testEnv) creditCount(t *testing.T, identityID uuid.UUID, reason models.CreditReason) int64 {
	t.Helper()
	var count int64
	err := e.db.Model(&models.CreditEntry{}).
		Where("identity_id = ? AND reason = ?", identityID, reason).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count credits: %v", err)
	}
	return count
}
