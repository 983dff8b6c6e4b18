package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"growth-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAppendCreditUnknownIdentity(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	_, err := env.ledger.AppendCredit(context.Background(), uuid.New(), decimal.NewFromInt(1), models.CreditReasonDailyGrant, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerEntriesAreImmutable(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	ctx := context.Background()
	resp := env.resolve(t, "fp-ledger-0001", "")

	entry, err := env.ledger.AppendCredit(ctx, resp.IdentityID, decimal.RequireFromString("2.50"), models.CreditReasonDailyGrant, map[string]string{"source": "test"})
	if err != nil {
		t.Fatalf("AppendCredit failed: %v", err)
	}

	if err := env.db.Model(entry).Update("amount", decimal.NewFromInt(100)).Error; !errors.Is(err, models.ErrLedgerImmutable) {
		t.Errorf("expected ErrLedgerImmutable on update, got %v", err)
	}
	if err := env.db.Delete(entry).Error; !errors.Is(err, models.ErrLedgerImmutable) {
		t.Errorf("expected ErrLedgerImmutable on delete, got %v", err)
	}

	balance, err := env.ledger.Balance(ctx, resp.IdentityID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected balance 2.50, got %s", balance)
	}
}

func TestLedgerViewNewestFirst(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	ctx := context.Background()
	resp := env.resolve(t, "fp-ledger-0002", "")

	for _, amount := range []int64{1, 2, 3} {
		if _, err := env.ledger.AppendCredit(ctx, resp.IdentityID, decimal.NewFromInt(amount), models.CreditReasonDailyGrant, nil); err != nil {
			t.Fatalf("AppendCredit failed: %v", err)
		}
		env.clock.Advance(time.Second)
	}

	view, err := env.growth.Ledger(ctx, resp.IdentityID, 0)
	if err != nil {
		t.Fatalf("Ledger failed: %v", err)
	}
	if view.Balance != "6.00" || len(view.Entries) != 3 {
		t.Fatalf("expected balance 6.00 over 3 entries, got %s over %d", view.Balance, len(view.Entries))
	}
	if !view.Entries[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected newest entry first, got %s", view.Entries[0].Amount)
	}

	if _, err := env.growth.Ledger(ctx, uuid.New(), 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown identity, got %v", err)
	}
}

func TestZeroAmountWritesNothing(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	resp := env.resolve(t, "fp-ledger-0003", "")

	entry, err := env.ledger.AppendCredit(context.Background(), resp.IdentityID, decimal.Zero, models.CreditReasonDailyGrant, nil)
	if err != nil || entry != nil {
		t.Errorf("expected no entry and no error, got %+v, %v", entry, err)
	}
}
