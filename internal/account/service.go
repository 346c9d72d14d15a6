package account

import (
	"context"
	"fmt"

	"github.com/harborbank/harbor/internal/cards"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
)

// Reserver reports how much of a user's balance is reserved by savings
// goals.
type Reserver interface {
	Reserved(ctx context.Context, userID int64) (money.Amount, error)
}

// Service reads and administers accounts.
type Service struct {
	store    ledger.Store
	reserver Reserver
}

// NewService builds an account service.
func NewService(store ledger.Store, reserver Reserver) *Service {
	return &Service{store: store, reserver: reserver}
}

// Summary is the account projection returned to clients. Available is the
// spendable slice of the balance once savings reservations are subtracted,
// floored at zero.
type Summary struct {
	UserID     int64
	Balance    money.Amount
	Available  money.Amount
	Reserved   money.Amount
	CardNumber string
	CardActive bool
}

// Summarize computes the account summary for a user.
func (s *Service) Summarize(ctx context.Context, userID int64) (Summary, error) {
	acct, err := s.store.Account(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	reserved, err := s.reserver.Reserved(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	available := acct.Balance.Sub(reserved)
	if available.IsNegative() {
		available = money.Zero
	}

	return Summary{
		UserID:     acct.UserID,
		Balance:    acct.Balance,
		Available:  available,
		Reserved:   reserved,
		CardNumber: cards.MaskNumber(acct.CardNumber),
		CardActive: acct.CardActive,
	}, nil
}

// SetCardActive flips the account-level card flag.
func (s *Service) SetCardActive(ctx context.Context, userID int64, active bool) (ledger.Account, error) {
	return s.store.SetCardActive(ctx, userID, active)
}

// AdjustBalance is the admin balance override. Business invariants do not
// apply, but the balance can never go negative.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, balance money.Amount) (ledger.Account, error) {
	if balance.IsNegative() {
		return ledger.Account{}, fmt.Errorf("%w: balance cannot be negative", ledger.ErrInvalidRequest)
	}
	return s.store.AdjustBalance(ctx, userID, balance)
}
