package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/harbor/internal/money"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// Options tune the Postgres store's duplicate guard and lock wait bounds.
type Options struct {
	DuplicateWindow time.Duration
	LockTimeout     time.Duration
}

// PostgresStore persists accounts, cards and transactions in PostgreSQL.
// All money movement happens inside a single transaction with the affected
// rows locked via SELECT ... FOR UPDATE. Account rows are always locked in
// ascending user id order so concurrent reciprocal transfers cannot
// deadlock.
type PostgresStore struct {
	db          *pgxpool.Pool
	dupWindow   time.Duration
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, opts Options) *PostgresStore {
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = DefaultDuplicateWindow
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &PostgresStore{db: db, dupWindow: opts.DuplicateWindow, lockTimeout: opts.LockTimeout}
}

// begin opens a transaction with a bounded lock wait.
func (s *PostgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

// mapPgError converts lock-wait timeouts and unique violations to their
// sentinel kinds.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrBusy, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, userID int64, cardNumber string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (user_id, balance, card_number, card_active)
        VALUES ($1, 0, $2, FALSE)`, userID, cardNumber)
	return mapPgError(err)
}

func (s *PostgresStore) Account(ctx context.Context, userID int64) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT user_id, balance, COALESCE(card_number, ''), card_active
        FROM accounts WHERE user_id = $1`, userID)
	return scanAccount(row)
}

func (s *PostgresStore) SetCardActive(ctx context.Context, userID int64, active bool) (Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE accounts SET card_active = $2 WHERE user_id = $1
        RETURNING user_id, balance, COALESCE(card_number, ''), card_active`, userID, active)
	return scanAccount(row)
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, userID int64, balance money.Amount) (Account, error) {
	if balance.IsNegative() {
		return Account{}, fmt.Errorf("%w: balance cannot be negative", ErrInvalidRequest)
	}
	row := s.db.QueryRow(ctx, `UPDATE accounts SET balance = $2 WHERE user_id = $1
        RETURNING user_id, balance, COALESCE(card_number, ''), card_active`, userID, balance)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	if err := row.Scan(&acct.UserID, &acct.Balance, &acct.CardNumber, &acct.CardActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, mapPgError(err)
	}
	return acct, nil
}

const cardColumns = `id, user_id, card_type, status, balance, holder_name, card_number,
    expiry_month, expiry_year, design_slug, theme, is_primary, created_at`

func (s *PostgresStore) CreateCard(ctx context.Context, card Card) (Card, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO cards
        (user_id, card_type, status, balance, holder_name, card_number,
         expiry_month, expiry_year, design_slug, theme, is_primary)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+cardColumns,
		card.UserID, card.Type, card.Status, card.Balance, card.HolderName, card.Number,
		card.ExpiryMonth, card.ExpiryYear, card.DesignSlug, card.Theme, card.IsPrimary)
	return scanCard(row)
}

func (s *PostgresStore) Cards(ctx context.Context, userID int64) ([]Card, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cardColumns+` FROM cards
        WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Card(ctx context.Context, userID, cardID int64) (Card, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards
        WHERE id = $1 AND user_id = $2`, cardID, userID)
	return scanCard(row)
}

func (s *PostgresStore) UpdateCardStatus(ctx context.Context, userID, cardID int64, status CardStatus) (Card, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return Card{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards
        WHERE id = $1 AND user_id = $2 FOR UPDATE`, cardID, userID)
	card, err := scanCard(row)
	if err != nil {
		return Card{}, err
	}

	if card.Status == CardCanceled {
		return Card{}, fmt.Errorf("%w: canceled cards cannot be updated", ErrInvalidRequest)
	}
	if card.Status == status {
		return card, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE cards SET status = $2 WHERE id = $1`, cardID, status); err != nil {
		return Card{}, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Card{}, mapPgError(err)
	}
	card.Status = status
	return card, nil
}

func (s *PostgresStore) CreditCard(ctx context.Context, cardID int64, amount money.Amount) (Card, error) {
	if !amount.IsPositive() {
		return Card{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	row := s.db.QueryRow(ctx, `UPDATE cards SET balance = balance + $2 WHERE id = $1
        RETURNING `+cardColumns, cardID, amount)
	return scanCard(row)
}

func (s *PostgresStore) HasActiveCard(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM cards WHERE user_id = $1 AND status = 'active')`, userID).Scan(&exists)
	return exists, mapPgError(err)
}

func scanCard(row pgx.Row) (Card, error) {
	var card Card
	err := row.Scan(&card.ID, &card.UserID, &card.Type, &card.Status, &card.Balance,
		&card.HolderName, &card.Number, &card.ExpiryMonth, &card.ExpiryYear,
		&card.DesignSlug, &card.Theme, &card.IsPrimary, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, mapPgError(err)
	}
	return card, nil
}

func (s *PostgresStore) Transfer(ctx context.Context, p TransferParams) (TransferResult, error) {
	if !p.Amount.IsPositive() {
		return TransferResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if p.SenderID == p.ReceiverID {
		return TransferResult{}, fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidRequest)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock order is canonical: lower user id first, independent of transfer
	// direction.
	first, second := p.SenderID, p.ReceiverID
	if second < first {
		first, second = second, first
	}
	balances := make(map[int64]money.Amount, 2)
	for _, id := range []int64{first, second} {
		bal, err := lockAccount(ctx, tx, id)
		if err != nil {
			return TransferResult{}, err
		}
		balances[id] = bal
	}

	if dup, err := s.recentDuplicate(ctx, tx, &p.SenderID, p.ReceiverID, p.Amount, TxSent, p.Note); err != nil {
		return TransferResult{}, err
	} else if dup != 0 {
		return TransferResult{
			TransactionID:   dup,
			Reference:       SendReference(dup),
			SenderBalance:   balances[p.SenderID],
			ReceiverBalance: balances[p.ReceiverID],
		}, ErrAlreadyProcessed
	}

	if balances[p.SenderID].LessThan(p.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	senderBalance := balances[p.SenderID].Sub(p.Amount)
	receiverBalance := balances[p.ReceiverID].Add(p.Amount)
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE user_id = $1`, p.SenderID, senderBalance); err != nil {
		return TransferResult{}, mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE user_id = $1`, p.ReceiverID, receiverBalance); err != nil {
		return TransferResult{}, mapPgError(err)
	}

	var txID int64
	if err := tx.QueryRow(ctx, `INSERT INTO transactions (sender_id, receiver_id, amount, note, tx_type)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.SenderID, p.ReceiverID, p.Amount, p.Note, TxSent).Scan(&txID); err != nil {
		return TransferResult{}, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, mapPgError(err)
	}

	return TransferResult{
		TransactionID:   txID,
		Reference:       SendReference(txID),
		SenderBalance:   senderBalance,
		ReceiverBalance: receiverBalance,
	}, nil
}

func (s *PostgresStore) TopUp(ctx context.Context, p TopUpParams) (TopUpResult, error) {
	if !p.Amount.IsPositive() {
		return TopUpResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return TopUpResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var cardBalance money.Amount
	err = tx.QueryRow(ctx, `SELECT balance FROM cards
        WHERE id = $1 AND user_id = $2 AND status = 'active' FOR UPDATE`,
		p.CardID, p.UserID).Scan(&cardBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TopUpResult{}, fmt.Errorf("%w: card is not available or not active", ErrNotFound)
		}
		return TopUpResult{}, mapPgError(err)
	}

	acctBalance, err := lockAccount(ctx, tx, p.UserID)
	if err != nil {
		return TopUpResult{}, err
	}

	note := topUpNote
	if dup, err := s.recentDuplicate(ctx, tx, nil, p.UserID, p.Amount, TxReceived, &note); err != nil {
		return TopUpResult{}, err
	} else if dup != 0 {
		return TopUpResult{
			TransactionID:  dup,
			Reference:      TopUpReference(dup),
			CardBalance:    cardBalance,
			AccountBalance: acctBalance,
		}, ErrAlreadyProcessed
	}

	if cardBalance.LessThan(p.Amount) {
		return TopUpResult{}, ErrInsufficientFunds
	}

	cardBalance = cardBalance.Sub(p.Amount)
	acctBalance = acctBalance.Add(p.Amount)
	if _, err := tx.Exec(ctx, `UPDATE cards SET balance = $2 WHERE id = $1`, p.CardID, cardBalance); err != nil {
		return TopUpResult{}, mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE user_id = $1`, p.UserID, acctBalance); err != nil {
		return TopUpResult{}, mapPgError(err)
	}

	var txID int64
	if err := tx.QueryRow(ctx, `INSERT INTO transactions (sender_id, receiver_id, amount, note, tx_type)
        VALUES (NULL, $1, $2, $3, $4) RETURNING id`,
		p.UserID, p.Amount, note, TxReceived).Scan(&txID); err != nil {
		return TopUpResult{}, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TopUpResult{}, mapPgError(err)
	}

	return TopUpResult{
		TransactionID:  txID,
		Reference:      TopUpReference(txID),
		CardBalance:    cardBalance,
		AccountBalance: acctBalance,
	}, nil
}

func (s *PostgresStore) Transactions(ctx context.Context, userID int64, f TxFilter) ([]Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, sender_id, receiver_id, amount, note, tx_type, created_at
        FROM transactions WHERE (sender_id = $1 OR receiver_id = $1)`
	args := []any{userID}
	if f.Direction != nil {
		query += ` AND tx_type = $2`
		args = append(args, *f.Direction)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Note, &t.Type, &t.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// recentDuplicate searches for the most recent transaction matching every
// field within the duplicate window. NULL fields match with IS NOT DISTINCT
// FROM. Returns 0 when no duplicate exists.
func (s *PostgresStore) recentDuplicate(ctx context.Context, tx pgx.Tx, senderID *int64, receiverID int64, amount money.Amount, txType TxType, note *string) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.dupWindow)
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM transactions
        WHERE tx_type = $1
          AND amount = $2
          AND sender_id IS NOT DISTINCT FROM $3
          AND receiver_id = $4
          AND note IS NOT DISTINCT FROM $5
          AND created_at >= $6
        ORDER BY created_at DESC, id DESC LIMIT 1`,
		txType, amount, senderID, receiverID, note, cutoff).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, mapPgError(err)
	}
	return id, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, userID int64) (money.Amount, error) {
	var balance money.Amount
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return money.Zero, fmt.Errorf("%w: account for user %d", ErrNotFound, userID)
		}
		return money.Zero, mapPgError(err)
	}
	return balance, nil
}
