package cards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
)

// validityYears is how long a newly issued card stays valid.
const validityYears = 4

// Service issues and manages cards. Card rows live in the ledger store so
// top-ups can lock card and account in one transaction.
type Service struct {
	store ledger.Store
	ids   *identity.Service
	now   func() time.Time
}

// NewService builds a card service.
func NewService(store ledger.Store, ids *identity.Service) *Service {
	return &Service{store: store, ids: ids, now: time.Now}
}

// OrderInput captures a card order. Design and theme are cosmetic and
// optional.
type OrderInput struct {
	Type       string
	DesignSlug string
	Theme      string
}

// IssuedCard is the order result. CVV is shown once and never stored.
type IssuedCard struct {
	Card ledger.Card
	CVV  string
}

// Order issues a new card for the user. At most one non-canceled card of
// each type may exist, enforced by the store. The first live card becomes
// primary.
func (s *Service) Order(ctx context.Context, userID int64, input OrderInput) (IssuedCard, error) {
	cardType, err := ledger.ParseCardType(input.Type)
	if err != nil {
		return IssuedCard{}, err
	}

	user, err := s.ids.Get(ctx, userID)
	if err != nil {
		return IssuedCard{}, err
	}

	number, err := GenerateNumber()
	if err != nil {
		return IssuedCard{}, err
	}
	cvv, err := generateCVV()
	if err != nil {
		return IssuedCard{}, err
	}

	existing, err := s.store.Cards(ctx, userID)
	if err != nil {
		return IssuedCard{}, err
	}
	primary := true
	for _, c := range existing {
		if c.Status != ledger.CardCanceled {
			primary = false
			break
		}
	}

	expiry := s.now().UTC().AddDate(validityYears, 0, 0)
	card, err := s.store.CreateCard(ctx, ledger.Card{
		UserID:      userID,
		Type:        cardType,
		Status:      ledger.CardActive,
		Balance:     money.Zero,
		HolderName:  user.FullName(),
		Number:      number,
		ExpiryMonth: int(expiry.Month()),
		ExpiryYear:  expiry.Year(),
		DesignSlug:  input.DesignSlug,
		Theme:       input.Theme,
		IsPrimary:   primary,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return IssuedCard{}, fmt.Errorf("%w: you already have a %s card", ledger.ErrConflict, cardType)
		}
		return IssuedCard{}, err
	}
	return IssuedCard{Card: card, CVV: cvv}, nil
}

// List returns the user's cards, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]ledger.Card, error) {
	return s.store.Cards(ctx, userID)
}

// Get returns one of the user's cards.
func (s *Service) Get(ctx context.Context, userID, cardID int64) (ledger.Card, error) {
	return s.store.Card(ctx, userID, cardID)
}

// UpdateStatus moves a card between active and frozen, or cancels it.
// Canceled is terminal.
func (s *Service) UpdateStatus(ctx context.Context, userID, cardID int64, status string) (ledger.Card, error) {
	parsed, err := ledger.ParseCardStatus(status)
	if err != nil {
		return ledger.Card{}, err
	}
	card, err := s.store.UpdateCardStatus(ctx, userID, cardID, parsed)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidRequest) {
			return ledger.Card{}, fmt.Errorf("%w: a canceled card cannot change status", ledger.ErrInvalidRequest)
		}
		return ledger.Card{}, err
	}
	return card, nil
}

// Credit adds funds to a card balance. Admin-only: cards are the funding
// source for account top-ups, so this is how demo money enters the system.
func (s *Service) Credit(ctx context.Context, cardID int64, amount money.Amount) (ledger.Card, error) {
	if !amount.IsPositive() {
		return ledger.Card{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidRequest)
	}
	return s.store.CreditCard(ctx, cardID, amount)
}
