package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harborbank/harbor/internal/money"
)

type inMemoryStore struct {
	mu           sync.Mutex
	accounts     map[int64]Account
	cards        map[int64]Card
	transactions []Transaction

	nextCardID int64
	nextTxID   int64

	dupWindow time.Duration
	now       func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests. A single mutex serializes operations, so lock ordering concerns do
// not apply to this backend.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts:   make(map[int64]Account),
		cards:      make(map[int64]Card),
		nextCardID: 1,
		nextTxID:   1,
		dupWindow:  DefaultDuplicateWindow,
		now:        time.Now,
	}
}

func (s *inMemoryStore) CreateAccount(_ context.Context, userID int64, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[userID]; exists {
		return ErrConflict
	}
	s.accounts[userID] = Account{UserID: userID, Balance: money.Zero, CardNumber: cardNumber}
	return nil
}

func (s *inMemoryStore) Account(_ context.Context, userID int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(userID)
}

func (s *inMemoryStore) account(userID int64) (Account, error) {
	acct, ok := s.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (s *inMemoryStore) SetCardActive(_ context.Context, userID int64, active bool) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.account(userID)
	if err != nil {
		return Account{}, err
	}
	acct.CardActive = active
	s.accounts[userID] = acct
	return acct, nil
}

func (s *inMemoryStore) AdjustBalance(_ context.Context, userID int64, balance money.Amount) (Account, error) {
	if balance.IsNegative() {
		return Account{}, ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.account(userID)
	if err != nil {
		return Account{}, err
	}
	acct.Balance = balance
	s.accounts[userID] = acct
	return acct, nil
}

func (s *inMemoryStore) CreateCard(_ context.Context, card Card) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.account(card.UserID); err != nil {
		return Card{}, err
	}
	for _, existing := range s.cards {
		if existing.UserID == card.UserID && existing.Type == card.Type && existing.Status != CardCanceled {
			return Card{}, ErrConflict
		}
	}
	card.ID = s.nextCardID
	s.nextCardID++
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.now().UTC()
	}
	s.cards[card.ID] = card
	return card, nil
}

func (s *inMemoryStore) Cards(_ context.Context, userID int64) ([]Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Card
	for _, card := range s.cards {
		if card.UserID == userID {
			out = append(out, card)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *inMemoryStore) Card(_ context.Context, userID, cardID int64) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.card(userID, cardID)
}

func (s *inMemoryStore) card(userID, cardID int64) (Card, error) {
	card, ok := s.cards[cardID]
	if !ok || card.UserID != userID {
		return Card{}, ErrNotFound
	}
	return card, nil
}

func (s *inMemoryStore) UpdateCardStatus(_ context.Context, userID, cardID int64, status CardStatus) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, err := s.card(userID, cardID)
	if err != nil {
		return Card{}, err
	}
	if card.Status == CardCanceled {
		return Card{}, ErrInvalidRequest
	}
	if card.Status == status {
		return card, nil
	}
	card.Status = status
	s.cards[cardID] = card
	return card, nil
}

func (s *inMemoryStore) CreditCard(_ context.Context, cardID int64, amount money.Amount) (Card, error) {
	if !amount.IsPositive() {
		return Card{}, ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok {
		return Card{}, ErrNotFound
	}
	card.Balance = card.Balance.Add(amount)
	s.cards[cardID] = card
	return card, nil
}

func (s *inMemoryStore) HasActiveCard(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.UserID == userID && card.Status == CardActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *inMemoryStore) Transfer(_ context.Context, p TransferParams) (TransferResult, error) {
	if !p.Amount.IsPositive() {
		return TransferResult{}, ErrInvalidRequest
	}
	if p.SenderID == p.ReceiverID {
		return TransferResult{}, ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, err := s.account(p.SenderID)
	if err != nil {
		return TransferResult{}, err
	}
	receiver, err := s.account(p.ReceiverID)
	if err != nil {
		return TransferResult{}, err
	}

	if dup := s.recentDuplicate(&p.SenderID, p.ReceiverID, p.Amount, TxSent, p.Note); dup != nil {
		return TransferResult{
			TransactionID:   dup.ID,
			Reference:       SendReference(dup.ID),
			SenderBalance:   sender.Balance,
			ReceiverBalance: receiver.Balance,
		}, ErrAlreadyProcessed
	}

	if sender.Balance.LessThan(p.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	sender.Balance = sender.Balance.Sub(p.Amount)
	receiver.Balance = receiver.Balance.Add(p.Amount)
	s.accounts[p.SenderID] = sender
	s.accounts[p.ReceiverID] = receiver

	tx := s.appendTransaction(&p.SenderID, p.ReceiverID, p.Amount, TxSent, p.Note)

	return TransferResult{
		TransactionID:   tx.ID,
		Reference:       SendReference(tx.ID),
		SenderBalance:   sender.Balance,
		ReceiverBalance: receiver.Balance,
	}, nil
}

func (s *inMemoryStore) TopUp(_ context.Context, p TopUpParams) (TopUpResult, error) {
	if !p.Amount.IsPositive() {
		return TopUpResult{}, ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.card(p.UserID, p.CardID)
	if err != nil {
		return TopUpResult{}, err
	}
	if card.Status != CardActive {
		return TopUpResult{}, ErrNotFound
	}
	acct, err := s.account(p.UserID)
	if err != nil {
		return TopUpResult{}, err
	}

	note := topUpNote
	if dup := s.recentDuplicate(nil, p.UserID, p.Amount, TxReceived, &note); dup != nil {
		return TopUpResult{
			TransactionID:  dup.ID,
			Reference:      TopUpReference(dup.ID),
			CardBalance:    card.Balance,
			AccountBalance: acct.Balance,
		}, ErrAlreadyProcessed
	}

	if card.Balance.LessThan(p.Amount) {
		return TopUpResult{}, ErrInsufficientFunds
	}

	card.Balance = card.Balance.Sub(p.Amount)
	acct.Balance = acct.Balance.Add(p.Amount)
	s.cards[p.CardID] = card
	s.accounts[p.UserID] = acct

	tx := s.appendTransaction(nil, p.UserID, p.Amount, TxReceived, &note)

	return TopUpResult{
		TransactionID:  tx.ID,
		Reference:      TopUpReference(tx.ID),
		CardBalance:    card.Balance,
		AccountBalance: acct.Balance,
	}, nil
}

func (s *inMemoryStore) Transactions(_ context.Context, userID int64, f TxFilter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		mine := tx.ReceiverID == userID || (tx.SenderID != nil && *tx.SenderID == userID)
		if !mine {
			continue
		}
		if f.Direction != nil && tx.Type != *f.Direction {
			continue
		}
		matched = append(matched, tx)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// recentDuplicate scans newest-first for a transaction matching every field
// within the duplicate window. Matching is exact and null-aware.
func (s *inMemoryStore) recentDuplicate(senderID *int64, receiverID int64, amount money.Amount, txType TxType, note *string) *Transaction {
	cutoff := s.now().UTC().Add(-s.dupWindow)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.CreatedAt.Before(cutoff) {
			return nil
		}
		if tx.Type != txType || !tx.Amount.Equal(amount) || tx.ReceiverID != receiverID {
			continue
		}
		if !ptrEqual(tx.SenderID, senderID) || !strPtrEqual(tx.Note, note) {
			continue
		}
		return &tx
	}
	return nil
}

func (s *inMemoryStore) appendTransaction(senderID *int64, receiverID int64, amount money.Amount, txType TxType, note *string) Transaction {
	tx := Transaction{
		ID:         s.nextTxID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Note:       note,
		Type:       txType,
		CreatedAt:  s.now().UTC(),
	}
	s.nextTxID++
	s.transactions = append(s.transactions, tx)
	return tx
}

func ptrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
