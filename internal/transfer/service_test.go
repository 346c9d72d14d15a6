package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/notification"
)

type testNotifier struct {
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	return nil
}

type fixture struct {
	store ledger.Store
	ids   *identity.Service
	svc   *Service
	note  *testNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	ids := identity.NewService(identity.NewMemoryRepository())
	note := &testNotifier{}
	return &fixture{store: store, ids: ids, svc: NewService(store, ids, note), note: note}
}

// newUser registers a user, provisions an account with the given balance
// and optionally activates the legacy card flag so transfers are allowed.
func (f *fixture) newUser(t *testing.T, username, balance string, cardActive bool) identity.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.ids.Register(ctx, identity.Credentials{
		Email:    username + "@example.com",
		Username: username,
		Password: "correct-horse",
		Phone:    "+1" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if err := f.store.CreateAccount(ctx, user.ID, ""); err != nil {
		t.Fatalf("create account %s: %v", username, err)
	}
	ledger.SeedBalance(f.store, user.ID, money.MustParse(balance))
	if cardActive {
		if _, err := f.store.SetCardActive(ctx, user.ID, true); err != nil {
			t.Fatalf("activate %s: %v", username, err)
		}
	}
	return user
}

func TestSendScenarioA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "alice", "100.00", true)
	b := f.newUser(t, "bob", "0.00", false)

	outcome, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverID: &b.ID, Amount: money.MustParse("40.00")})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if outcome.Reference != "TX-000001" {
		t.Fatalf("expected TX-000001, got %s", outcome.Reference)
	}
	if outcome.SenderBalance.String() != "60.00" || outcome.ReceiverBalance.String() != "40.00" {
		t.Fatalf("unexpected balances: %+v", outcome.TransferResult)
	}
	if f.note.last.Kind != notification.KindTransfer || f.note.last.Destination != b.ID {
		t.Fatalf("expected receiver notification, got %+v", f.note.last)
	}
}

func TestSendByUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "alice", "100.00", true)
	f.newUser(t, "bob", "0.00", false)

	name := "bob"
	if _, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverUsername: &name, Amount: money.MustParse("1.00")}); err != nil {
		t.Fatalf("send by username: %v", err)
	}

	ghost := "ghost"
	if _, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverUsername: &ghost, Amount: money.MustParse("1.00")}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown receiver: expected ErrNotFound, got %v", err)
	}
}

func TestSendRequiresActiveCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "alice", "100.00", false)
	b := f.newUser(t, "bob", "0.00", false)

	_, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverID: &b.ID, Amount: money.MustParse("1.00")})
	if !errors.Is(err, ledger.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without a card, got %v", err)
	}

	// An active card satisfies the gate even with card_active false.
	if _, err := f.store.CreateCard(ctx, ledger.Card{UserID: a.ID, Type: ledger.CardVirtual, Status: ledger.CardActive}); err != nil {
		t.Fatalf("create card: %v", err)
	}
	if _, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverID: &b.ID, Amount: money.MustParse("1.00")}); err != nil {
		t.Fatalf("send with active card: %v", err)
	}
}

func TestSendSelfAndBadAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "alice", "100.00", true)

	if _, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverID: &a.ID, Amount: money.MustParse("1.00")}); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("self send: expected ErrInvalidRequest, got %v", err)
	}
	b := f.newUser(t, "bob", "0.00", false)
	if _, err := f.svc.Send(ctx, SendInput{SenderID: a.ID, ReceiverID: &b.ID, Amount: money.Zero}); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("zero amount: expected ErrInvalidRequest, got %v", err)
	}
}

func TestSendRetryIsMerged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newUser(t, "alice", "100.00", true)
	b := f.newUser(t, "bob", "0.00", false)

	note := "lunch"
	input := SendInput{SenderID: a.ID, ReceiverID: &b.ID, Amount: money.MustParse("40.00"), Note: &note}

	first, err := f.svc.Send(ctx, input)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := f.svc.Send(ctx, input)
	if err != nil {
		t.Fatalf("retry should not fail: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Fatalf("expected retry to be flagged as already processed")
	}
	if second.Reference != first.Reference {
		t.Fatalf("retry reference %s differs from %s", second.Reference, first.Reference)
	}

	acct, _ := f.store.Account(ctx, a.ID)
	if acct.Balance.String() != "60.00" {
		t.Fatalf("retry debited again: %s", acct.Balance)
	}
}

func TestTopUpScenarioB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.newUser(t, "carol", "0.00", false)

	card, err := f.store.CreateCard(ctx, ledger.Card{UserID: u.ID, Type: ledger.CardVirtual, Status: ledger.CardActive})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	ledger.SeedCardBalance(f.store, card.ID, money.MustParse("50.00"))

	outcome, err := f.svc.TopUp(ctx, TopUpInput{UserID: u.ID, CardID: card.ID, Amount: money.MustParse("30.00")})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}
	if outcome.Reference != "TP-000001" {
		t.Fatalf("expected TP-000001, got %s", outcome.Reference)
	}
	if outcome.CardBalance.String() != "20.00" || outcome.AccountBalance.String() != "30.00" {
		t.Fatalf("unexpected balances: %+v", outcome.TopUpResult)
	}
}

func TestTopUpRetryIsMerged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.newUser(t, "carol", "0.00", false)

	card, _ := f.store.CreateCard(ctx, ledger.Card{UserID: u.ID, Type: ledger.CardVirtual, Status: ledger.CardActive})
	ledger.SeedCardBalance(f.store, card.ID, money.MustParse("50.00"))

	input := TopUpInput{UserID: u.ID, CardID: card.ID, Amount: money.MustParse("30.00")}
	first, err := f.svc.TopUp(ctx, input)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.TopUp(ctx, input)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !second.AlreadyProcessed || second.Reference != first.Reference {
		t.Fatalf("expected merged retry, got %+v", second)
	}

	got, _ := f.store.Card(ctx, u.ID, card.ID)
	if got.Balance.String() != "20.00" {
		t.Fatalf("retry debited the card again: %s", got.Balance)
	}
}

func TestHistoryDirectionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.newUser(t, "alice", "0.00", false)

	if _, err := f.svc.History(ctx, u.ID, "sideways", 10, 0); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad direction, got %v", err)
	}
}
