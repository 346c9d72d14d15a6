package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harborbank/harbor/internal/money"
)

func newStoreWithAccounts(t *testing.T, balances map[int64]string) Store {
	t.Helper()
	s := NewInMemory()
	ctx := context.Background()
	for userID, bal := range balances {
		if err := s.CreateAccount(ctx, userID, ""); err != nil {
			t.Fatalf("create account %d: %v", userID, err)
		}
		SeedBalance(s, userID, money.MustParse(bal))
	}
	return s
}

func TestTransferConservation(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()

	res, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("40.00")})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if res.SenderBalance.String() != "60.00" || res.ReceiverBalance.String() != "40.00" {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if res.Reference != "TX-000001" {
		t.Fatalf("expected reference TX-000001, got %s", res.Reference)
	}

	txs, err := s.Transactions(ctx, 1, TxFilter{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(txs))
	}
	if txs[0].SenderID == nil || *txs[0].SenderID != 1 || txs[0].ReceiverID != 2 {
		t.Fatalf("unexpected transaction row: %+v", txs[0])
	}
}

func TestTransferInsufficientFundsLeavesBalancesUnchanged(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "10.00", 2: "5.00"})
	ctx := context.Background()

	_, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("10.01")})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	sender, _ := s.Account(ctx, 1)
	receiver, _ := s.Account(ctx, 2)
	if sender.Balance.String() != "10.00" || receiver.Balance.String() != "5.00" {
		t.Fatalf("balances changed on failed transfer: %s / %s", sender.Balance, receiver.Balance)
	}
	if txs, _ := s.Transactions(ctx, 1, TxFilter{}); len(txs) != 0 {
		t.Fatalf("failed transfer must not log a transaction, got %d", len(txs))
	}
}

func TestTransferRejectsSelfAndNonPositive(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()

	if _, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 1, Amount: money.MustParse("1.00")}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("self transfer: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.Zero}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("zero amount: expected ErrInvalidRequest, got %v", err)
	}
}

func TestDuplicateGuardMergesRetry(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()
	note := "rent"
	params := TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("40.00"), Note: &note}

	first, err := s.Transfer(ctx, params)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	second, err := s.Transfer(ctx, params)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if second.Reference != first.Reference || second.TransactionID != first.TransactionID {
		t.Fatalf("retry returned a different reference: %s vs %s", second.Reference, first.Reference)
	}

	sender, _ := s.Account(ctx, 1)
	if sender.Balance.String() != "60.00" {
		t.Fatalf("retry must not debit again, balance %s", sender.Balance)
	}
	if txs, _ := s.Transactions(ctx, 1, TxFilter{}); len(txs) != 1 {
		t.Fatalf("expected exactly one transaction after retry, got %d", len(txs))
	}
}

func TestDuplicateGuardIsNoteAware(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()
	note := "rent"

	if _, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("10.00"), Note: &note}); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Same actors and amount but nil note is a distinct operation.
	if _, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("10.00")}); err != nil {
		t.Fatalf("nil-note transfer should not match: %v", err)
	}
}

func TestDuplicateGuardExpires(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	SetClock(s, func() time.Time { return current })

	params := TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("10.00")}
	if _, err := s.Transfer(ctx, params); err != nil {
		t.Fatalf("first: %v", err)
	}

	current = current.Add(6 * time.Second)
	if _, err := s.Transfer(ctx, params); err != nil {
		t.Fatalf("transfer outside window should apply: %v", err)
	}

	sender, _ := s.Account(ctx, 1)
	if sender.Balance.String() != "80.00" {
		t.Fatalf("expected 80.00 after two distinct transfers, got %s", sender.Balance)
	}
}

func TestTopUp(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{7: "0.00"})
	ctx := context.Background()

	card, err := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	SeedCardBalance(s, card.ID, money.MustParse("50.00"))

	res, err := s.TopUp(ctx, TopUpParams{UserID: 7, CardID: card.ID, Amount: money.MustParse("30.00")})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}
	if res.CardBalance.String() != "20.00" || res.AccountBalance.String() != "30.00" {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if res.Reference != "TP-000001" {
		t.Fatalf("expected reference TP-000001, got %s", res.Reference)
	}

	txs, _ := s.Transactions(ctx, 7, TxFilter{})
	if len(txs) != 1 || txs[0].SenderID != nil || txs[0].Type != TxReceived {
		t.Fatalf("unexpected top-up transaction: %+v", txs)
	}
}

func TestTopUpRequiresActiveOwnedCard(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{7: "0.00", 8: "0.00"})
	ctx := context.Background()

	card, _ := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive})
	SeedCardBalance(s, card.ID, money.MustParse("50.00"))

	if _, err := s.TopUp(ctx, TopUpParams{UserID: 8, CardID: card.ID, Amount: money.MustParse("10.00")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign card: expected ErrNotFound, got %v", err)
	}

	if _, err := s.UpdateCardStatus(ctx, 7, card.ID, CardFrozen); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := s.TopUp(ctx, TopUpParams{UserID: 7, CardID: card.ID, Amount: money.MustParse("10.00")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("frozen card: expected ErrNotFound, got %v", err)
	}
}

func TestTopUpInsufficientCardBalance(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{7: "0.00"})
	ctx := context.Background()

	card, _ := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive})
	SeedCardBalance(s, card.ID, money.MustParse("5.00"))

	if _, err := s.TopUp(ctx, TopUpParams{UserID: 7, CardID: card.ID, Amount: money.MustParse("5.01")}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	card, _ = s.Card(ctx, 7, card.ID)
	if card.Balance.String() != "5.00" {
		t.Fatalf("card balance changed on failed top-up: %s", card.Balance)
	}
}

func TestCardLiveBoundsAndTerminalCancel(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{7: "0.00"})
	ctx := context.Background()

	virtual, err := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive})
	if err != nil {
		t.Fatalf("first virtual: %v", err)
	}
	if _, err := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second live virtual: expected ErrConflict, got %v", err)
	}
	if _, err := s.CreateCard(ctx, Card{UserID: 7, Type: CardPhysical, Status: CardActive}); err != nil {
		t.Fatalf("physical alongside virtual: %v", err)
	}

	if _, err := s.UpdateCardStatus(ctx, 7, virtual.ID, CardCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := s.UpdateCardStatus(ctx, 7, virtual.ID, CardActive); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("reactivate canceled: expected ErrInvalidRequest, got %v", err)
	}

	// A canceled card frees the slot for a replacement.
	if _, err := s.CreateCard(ctx, Card{UserID: 7, Type: CardVirtual, Status: CardActive}); err != nil {
		t.Fatalf("replacement virtual after cancel: %v", err)
	}
}

func TestAdjustBalanceFloor(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "50.00"})
	ctx := context.Background()

	if _, err := s.AdjustBalance(ctx, 1, money.MustParse("-0.01")); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("negative override: expected ErrInvalidRequest, got %v", err)
	}
	acct, err := s.AdjustBalance(ctx, 1, money.MustParse("0.00"))
	if err != nil {
		t.Fatalf("zero override: %v", err)
	}
	if acct.Balance.String() != "0.00" {
		t.Fatalf("expected 0.00, got %s", acct.Balance)
	}
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "500.00", 2: "500.00"})
	ctx := context.Background()
	SetDuplicateWindow(s, time.Nanosecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Reciprocal directions exercise the lock path both ways.
			if i%2 == 0 {
				_, _ = s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("1.00")})
			} else {
				_, _ = s.Transfer(ctx, TransferParams{SenderID: 2, ReceiverID: 1, Amount: money.MustParse("1.00")})
			}
		}(i)
	}
	wg.Wait()

	a, _ := s.Account(ctx, 1)
	b, _ := s.Account(ctx, 2)
	total := a.Balance.Add(b.Balance)
	if total.String() != "1000.00" {
		t.Fatalf("funds not conserved under concurrency: %s", total)
	}
	if a.Balance.IsNegative() || b.Balance.IsNegative() {
		t.Fatalf("negative balance under concurrency: %s / %s", a.Balance, b.Balance)
	}
}

func TestTransactionsFilterAndPagination(t *testing.T) {
	s := newStoreWithAccounts(t, map[int64]string{1: "100.00", 2: "0.00"})
	ctx := context.Background()

	// Distinct notes keep the duplicate guard out of the way.
	for _, note := range []string{"one", "two", "three"} {
		note := note
		if _, err := s.Transfer(ctx, TransferParams{SenderID: 1, ReceiverID: 2, Amount: money.MustParse("1.00"), Note: &note}); err != nil {
			t.Fatalf("transfer %q: %v", note, err)
		}
	}

	sent := TxSent
	txs, err := s.Transactions(ctx, 1, TxFilter{Direction: &sent})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 sent transactions, got %d", len(txs))
	}
	if txs[0].ID < txs[1].ID {
		t.Fatalf("expected newest first")
	}

	page, err := s.Transactions(ctx, 1, TxFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 transaction on second page, got %d", len(page))
	}

	received := TxReceived
	if txs, _ := s.Transactions(ctx, 2, TxFilter{Direction: &received}); len(txs) != 0 {
		// Peer receipts are logged as "sent" rows owned by both parties.
		t.Fatalf("expected 0 received-typed rows for receiver, got %d", len(txs))
	}
}
