package account

import (
	"context"
	"errors"
	"testing"

	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/savings"
)

func newFixture(t *testing.T) (*Service, ledger.Store, *savings.Service) {
	t.Helper()
	store := ledger.NewInMemory()
	goals := savings.NewService(savings.NewMemoryRepository(store))
	return NewService(store, goals), store, goals
}

func TestSummarize(t *testing.T) {
	svc, store, goals := newFixture(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, 1, "4000001234567890"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	ledger.SeedBalance(store, 1, money.MustParse("100.00"))
	if _, err := goals.Create(ctx, 1, savings.CreateInput{
		Name:          "Trip",
		TargetAmount:  money.MustParse("100.00"),
		CurrentAmount: money.MustParse("30.00"),
	}); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	summary, err := svc.Summarize(ctx, 1)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got := summary.Balance.String(); got != "100.00" {
		t.Fatalf("balance = %s", got)
	}
	if got := summary.Available.String(); got != "70.00" {
		t.Fatalf("available = %s, want 70.00", got)
	}
	if got := summary.Reserved.String(); got != "30.00" {
		t.Fatalf("reserved = %s, want 30.00", got)
	}
	if summary.CardNumber != "**** **** **** 7890" {
		t.Fatalf("card number = %q", summary.CardNumber)
	}
}

func TestSummarizeAvailableFloor(t *testing.T) {
	svc, store, goals := newFixture(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, 1, ""); err != nil {
		t.Fatalf("create account: %v", err)
	}
	ledger.SeedBalance(store, 1, money.MustParse("50.00"))
	if _, err := goals.Create(ctx, 1, savings.CreateInput{
		Name:          "All in",
		TargetAmount:  money.MustParse("50.00"),
		CurrentAmount: money.MustParse("50.00"),
	}); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	// An admin override can push the balance below the reserved sum; the
	// available projection floors at zero rather than going negative.
	if _, err := svc.AdjustBalance(ctx, 1, money.MustParse("20.00")); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	summary, err := svc.Summarize(ctx, 1)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.Available.IsZero() {
		t.Fatalf("available = %s, want 0.00", summary.Available)
	}
}

func TestSummarizeUnknownUser(t *testing.T) {
	svc, _, _ := newFixture(t)
	if _, err := svc.Summarize(context.Background(), 404); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestAdjustBalanceFloor(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, 1, ""); err != nil {
		t.Fatalf("create account: %v", err)
	}

	if _, err := svc.AdjustBalance(ctx, 1, money.MustParse("-5.00")); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("negative balance err = %v, want invalid request", err)
	}
	acct, err := svc.AdjustBalance(ctx, 1, money.MustParse("250.00"))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got := acct.Balance.String(); got != "250.00" {
		t.Fatalf("balance = %s", got)
	}
}

func TestSetCardActive(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, 1, ""); err != nil {
		t.Fatalf("create account: %v", err)
	}
	acct, err := svc.SetCardActive(ctx, 1, true)
	if err != nil || !acct.CardActive {
		t.Fatalf("activate: %v (%+v)", err, acct)
	}
	acct, err = svc.SetCardActive(ctx, 1, false)
	if err != nil || acct.CardActive {
		t.Fatalf("deactivate: %v (%+v)", err, acct)
	}
}
