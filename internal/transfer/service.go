package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/notification"
)

// Service orchestrates money movement: peer transfers between accounts and
// card top-ups into the caller's account. All validation happens before the
// store mutates anything; the store itself re-checks funds under lock.
type Service struct {
	store    ledger.Store
	ids      *identity.Service
	notifier notification.Notifier
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, ids *identity.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, ids: ids, notifier: notifier}
}

// SendInput captures a peer transfer request. The receiver may be named by
// id or by unique username.
type SendInput struct {
	SenderID         int64
	ReceiverID       *int64
	ReceiverUsername *string
	Amount           money.Amount
	Note             *string
}

// SendOutcome reports a completed or merged transfer.
type SendOutcome struct {
	ledger.TransferResult
	ReceiverID       int64
	AlreadyProcessed bool
}

// Send validates and executes an account-to-account transfer. A retry that
// matches a recent identical transfer is merged: the prior reference is
// returned with AlreadyProcessed set and no second movement happens.
func (s *Service) Send(ctx context.Context, input SendInput) (SendOutcome, error) {
	if !input.Amount.IsPositive() {
		return SendOutcome{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidRequest)
	}

	receiver, err := s.ids.ResolveReceiver(ctx, input.ReceiverID, input.ReceiverUsername)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return SendOutcome{}, fmt.Errorf("%w: receiver", ledger.ErrNotFound)
		}
		return SendOutcome{}, err
	}
	if receiver.ID == input.SenderID {
		return SendOutcome{}, fmt.Errorf("%w: cannot transfer to yourself", ledger.ErrInvalidRequest)
	}

	acct, err := s.store.Account(ctx, input.SenderID)
	if err != nil {
		return SendOutcome{}, err
	}
	if !acct.CardActive {
		hasCard, err := s.store.HasActiveCard(ctx, input.SenderID)
		if err != nil {
			return SendOutcome{}, err
		}
		if !hasCard {
			return SendOutcome{}, fmt.Errorf("%w: you must activate at least one card to transfer funds", ledger.ErrForbidden)
		}
	}

	note := normalizeNote(input.Note)
	res, err := s.store.Transfer(ctx, ledger.TransferParams{
		SenderID:   input.SenderID,
		ReceiverID: receiver.ID,
		Amount:     input.Amount,
		Note:       note,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			return SendOutcome{TransferResult: res, ReceiverID: receiver.ID, AlreadyProcessed: true}, nil
		}
		return SendOutcome{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: receiver.ID,
			Body:        fmt.Sprintf("You received %s (%s)", input.Amount, res.Reference),
		})
	}

	return SendOutcome{TransferResult: res, ReceiverID: receiver.ID}, nil
}

// TopUpInput captures a card top-up request.
type TopUpInput struct {
	UserID int64
	CardID int64
	Amount money.Amount
}

// TopUpOutcome reports a completed or merged top-up.
type TopUpOutcome struct {
	ledger.TopUpResult
	AlreadyProcessed bool
}

// TopUp moves funds from one of the caller's active cards into their
// account.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (TopUpOutcome, error) {
	if !input.Amount.IsPositive() {
		return TopUpOutcome{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidRequest)
	}

	res, err := s.store.TopUp(ctx, ledger.TopUpParams{
		UserID: input.UserID,
		CardID: input.CardID,
		Amount: input.Amount,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			return TopUpOutcome{TopUpResult: res, AlreadyProcessed: true}, nil
		}
		return TopUpOutcome{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTopUp,
			Destination: input.UserID,
			Body:        fmt.Sprintf("Top up of %s completed (%s)", input.Amount, res.Reference),
		})
	}

	return TopUpOutcome{TopUpResult: res}, nil
}

// History returns the caller's transaction log, newest first.
func (s *Service) History(ctx context.Context, userID int64, direction string, limit, offset int) ([]ledger.Transaction, error) {
	filter := ledger.TxFilter{Limit: limit, Offset: offset}
	switch direction {
	case "":
	case string(ledger.TxSent):
		d := ledger.TxSent
		filter.Direction = &d
	case string(ledger.TxReceived):
		d := ledger.TxReceived
		filter.Direction = &d
	default:
		return nil, fmt.Errorf("%w: direction must be sent or received", ledger.ErrInvalidRequest)
	}
	return s.store.Transactions(ctx, userID, filter)
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
