package ledger

import (
	"time"

	"github.com/harborbank/harbor/internal/money"
)

// SeedBalance is a test helper that sets an account balance directly when
// using the in-memory store.
func SeedBalance(s Store, userID int64, balance money.Amount) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acct := mem.accounts[userID]
		acct.UserID = userID
		acct.Balance = balance
		mem.accounts[userID] = acct
	}
}

// SeedCardBalance is a test helper that sets a card balance directly when
// using the in-memory store.
func SeedCardBalance(s Store, cardID int64, balance money.Amount) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		card := mem.cards[cardID]
		card.Balance = balance
		mem.cards[cardID] = card
	}
}

// SetClock overrides the in-memory store's clock so tests can move time
// across the duplicate window.
func SetClock(s Store, now func() time.Time) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}

// SetDuplicateWindow overrides the in-memory store's duplicate window.
func SetDuplicateWindow(s Store, window time.Duration) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.dupWindow = window
	}
}
