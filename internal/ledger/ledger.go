package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborbank/harbor/internal/money"
)

var (
	// ErrNotFound occurs when a referenced account, card or transaction does
	// not exist or does not belong to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest covers malformed amounts, bad enum values and
	// business-rule violations that are the caller's fault.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInsufficientFunds occurs when the debited account or card lacks
	// balance to cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrForbidden indicates an authorization or business gate failed.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyProcessed indicates the duplicate guard matched a recent
	// identical operation. It is not a failure: the prior result is returned
	// alongside it.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrBusy indicates a row lock could not be acquired within the bounded
	// wait.
	ErrBusy = errors.New("resource busy")
)

// DefaultDuplicateWindow bounds how far back the duplicate guard scans for
// a matching transaction.
const DefaultDuplicateWindow = 5 * time.Second

// DefaultLockTimeout bounds how long a store transaction waits on a
// contended row before failing with ErrBusy.
const DefaultLockTimeout = 3 * time.Second

// topUpNote is the fixed note attached to card top-up transactions. It is
// part of the duplicate-guard matching key.
const topUpNote = "Top up via card"

// TxType classifies a transaction from the initiator's perspective.
type TxType string

const (
	TxSent     TxType = "sent"
	TxReceived TxType = "received"
)

// CardType distinguishes the two card products a user may hold.
type CardType string

const (
	CardVirtual  CardType = "virtual"
	CardPhysical CardType = "physical"
)

// ParseCardType validates a card type received at the API boundary.
func ParseCardType(s string) (CardType, error) {
	switch CardType(s) {
	case CardVirtual, CardPhysical:
		return CardType(s), nil
	}
	return "", fmt.Errorf("%w: unknown card type %q", ErrInvalidRequest, s)
}

// CardStatus is the card lifecycle state. Canceled is terminal.
type CardStatus string

const (
	CardActive   CardStatus = "active"
	CardFrozen   CardStatus = "frozen"
	CardCanceled CardStatus = "canceled"
)

// ParseCardStatus validates a card status received at the API boundary.
func ParseCardStatus(s string) (CardStatus, error) {
	switch CardStatus(s) {
	case CardActive, CardFrozen, CardCanceled:
		return CardStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown card status %q", ErrInvalidRequest, s)
}

// Account is a user's single balance-holding entity, created with a zero
// balance at registration.
type Account struct {
	UserID     int64
	Balance    money.Amount
	CardNumber string
	CardActive bool
}

// Card is a payment instrument with its own balance, usable as the funding
// source for account top-ups.
type Card struct {
	ID          int64
	UserID      int64
	Type        CardType
	Status      CardStatus
	Balance     money.Amount
	HolderName  string
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	DesignSlug  string
	Theme       string
	IsPrimary   bool
	CreatedAt   time.Time
}

// Transaction is an immutable, append-only ledger entry. SenderID is nil
// for card top-ups.
type Transaction struct {
	ID         int64
	SenderID   *int64
	ReceiverID int64
	Amount     money.Amount
	Note       *string
	Type       TxType
	CreatedAt  time.Time
}

// Reference renders the human-readable identifier for the transaction.
func (t Transaction) Reference() string {
	if t.Type == TxReceived && t.SenderID == nil {
		return TopUpReference(t.ID)
	}
	return SendReference(t.ID)
}

// SendReference formats a peer transfer reference, e.g. TX-000123.
func SendReference(id int64) string { return fmt.Sprintf("TX-%06d", id) }

// TopUpReference formats a card top-up reference, e.g. TP-000123.
func TopUpReference(id int64) string { return fmt.Sprintf("TP-%06d", id) }

// TransferParams describes an account-to-account movement.
type TransferParams struct {
	SenderID   int64
	ReceiverID int64
	Amount     money.Amount
	Note       *string
}

// TransferResult reports the committed outcome of a transfer. On
// ErrAlreadyProcessed it carries the prior transaction's id and reference.
type TransferResult struct {
	TransactionID   int64
	Reference       string
	SenderBalance   money.Amount
	ReceiverBalance money.Amount
}

// TopUpParams describes a card-to-account movement.
type TopUpParams struct {
	UserID int64
	CardID int64
	Amount money.Amount
}

// TopUpResult reports the committed outcome of a top-up.
type TopUpResult struct {
	TransactionID  int64
	Reference      string
	CardBalance    money.Amount
	AccountBalance money.Amount
}

// TxFilter narrows transaction history queries.
type TxFilter struct {
	Direction *TxType
	Limit     int
	Offset    int
}

// Store is the durable record of account and card balances. Backends own
// atomicity: every balance mutation happens inside a single store
// transaction with the affected rows locked, and commits together with its
// Transaction entry or not at all.
type Store interface {
	CreateAccount(ctx context.Context, userID int64, cardNumber string) error
	Account(ctx context.Context, userID int64) (Account, error)
	SetCardActive(ctx context.Context, userID int64, active bool) (Account, error)
	// AdjustBalance is the admin override. It bypasses business invariants
	// except the non-negativity floor, which is never bypassable.
	AdjustBalance(ctx context.Context, userID int64, balance money.Amount) (Account, error)

	CreateCard(ctx context.Context, card Card) (Card, error)
	Cards(ctx context.Context, userID int64) ([]Card, error)
	Card(ctx context.Context, userID, cardID int64) (Card, error)
	// UpdateCardStatus rejects any change away from canceled.
	UpdateCardStatus(ctx context.Context, userID, cardID int64, status CardStatus) (Card, error)
	CreditCard(ctx context.Context, cardID int64, amount money.Amount) (Card, error)
	HasActiveCard(ctx context.Context, userID int64) (bool, error)

	Transfer(ctx context.Context, p TransferParams) (TransferResult, error)
	TopUp(ctx context.Context, p TopUpParams) (TopUpResult, error)

	Transactions(ctx context.Context, userID int64, f TxFilter) ([]Transaction, error)
}
