package savings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
)

// Repository persists savings goals. Implementations own the reservation
// invariant: any write that raises a goal's current amount verifies, with
// the account state pinned, that the user's summed reservations stay
// within the account balance and that the goal stays within its target.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Goal, error)
	Get(ctx context.Context, userID, goalID int64) (Goal, error)
	Create(ctx context.Context, goal Goal) (Goal, error)
	Update(ctx context.Context, goal Goal) (Goal, error)
	Delete(ctx context.Context, userID, goalID int64) error
	// AdjustCurrent applies a deposit (positive delta) or withdrawal
	// (negative delta) atomically.
	AdjustCurrent(ctx context.Context, userID, goalID int64, delta money.Amount) (Goal, error)
	// Total sums the user's reservations for the available-balance
	// projection.
	Total(ctx context.Context, userID int64) (money.Amount, error)
}

// PostgresRepository stores goals in PostgreSQL. The owning account row is
// locked FOR UPDATE before any invariant check, so a concurrent transfer
// cannot invalidate the check between read and write.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const goalColumns = `id, user_id, name, target_amount, current_amount, created_at, updated_at`

func (r *PostgresRepository) List(ctx context.Context, userID int64) ([]Goal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+goalColumns+` FROM savings_goals
        WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, goal)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, goalID int64) (Goal, error) {
	row := r.db.QueryRow(ctx, `SELECT `+goalColumns+` FROM savings_goals
        WHERE id = $1 AND user_id = $2`, goalID, userID)
	return scanGoal(row)
}

func (r *PostgresRepository) Create(ctx context.Context, goal Goal) (Goal, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Goal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := checkReservation(ctx, tx, goal.UserID, goal.CurrentAmount, 0); err != nil {
		return Goal{}, err
	}

	row := tx.QueryRow(ctx, `INSERT INTO savings_goals (user_id, name, target_amount, current_amount)
        VALUES ($1, $2, $3, $4) RETURNING `+goalColumns,
		goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount)
	created, err := scanGoal(row)
	if err != nil {
		return Goal{}, err
	}
	return created, tx.Commit(ctx)
}

func (r *PostgresRepository) Update(ctx context.Context, goal Goal) (Goal, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Goal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := lockGoal(ctx, tx, goal.UserID, goal.ID)
	if err != nil {
		return Goal{}, err
	}

	if !goal.CurrentAmount.Equal(current.CurrentAmount) {
		if err := checkReservation(ctx, tx, goal.UserID, goal.CurrentAmount, goal.ID); err != nil {
			return Goal{}, err
		}
	}
	if goal.TargetAmount.LessThan(goal.CurrentAmount) {
		return Goal{}, fmt.Errorf("%w: saved amount exceeds the goal target", ledger.ErrInvalidRequest)
	}

	row := tx.QueryRow(ctx, `UPDATE savings_goals
        SET name = $3, target_amount = $4, current_amount = $5, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 RETURNING `+goalColumns,
		goal.ID, goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount)
	updated, err := scanGoal(row)
	if err != nil {
		return Goal{}, err
	}
	return updated, tx.Commit(ctx)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, goalID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM savings_goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: goal", ledger.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) AdjustCurrent(ctx context.Context, userID, goalID int64, delta money.Amount) (Goal, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Goal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	goal, err := lockGoal(ctx, tx, userID, goalID)
	if err != nil {
		return Goal{}, err
	}

	newCurrent := goal.CurrentAmount.Add(delta)
	if newCurrent.IsNegative() {
		return Goal{}, fmt.Errorf("%w: cannot withdraw more than is saved in this goal", ledger.ErrInvalidRequest)
	}
	if delta.IsPositive() {
		if goal.TargetAmount.LessThan(newCurrent) {
			return Goal{}, fmt.Errorf("%w: amount exceeds this goal's target", ledger.ErrInvalidRequest)
		}
		if err := checkReservation(ctx, tx, userID, newCurrent, goalID); err != nil {
			return Goal{}, err
		}
	}

	row := tx.QueryRow(ctx, `UPDATE savings_goals
        SET current_amount = $3, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 RETURNING `+goalColumns,
		goalID, userID, newCurrent)
	updated, err := scanGoal(row)
	if err != nil {
		return Goal{}, err
	}
	return updated, tx.Commit(ctx)
}

func (r *PostgresRepository) Total(ctx context.Context, userID int64) (money.Amount, error) {
	var total money.Amount
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(current_amount), 0)
        FROM savings_goals WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// checkReservation verifies that the user's summed reservations, with the
// modified goal counted at proposedCurrent, stay within the account
// balance. The account row is locked first. excludeGoalID 0 means a new
// goal.
func checkReservation(ctx context.Context, tx pgx.Tx, userID int64, proposedCurrent money.Amount, excludeGoalID int64) error {
	var balance money.Amount
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account", ledger.ErrNotFound)
		}
		return err
	}

	var others money.Amount
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(current_amount), 0) FROM savings_goals
        WHERE user_id = $1 AND id <> $2`, userID, excludeGoalID).Scan(&others)
	if err != nil {
		return err
	}

	if balance.LessThan(others.Add(proposedCurrent)) {
		return fmt.Errorf("%w: total saved across all goals cannot exceed your account balance", ledger.ErrInvalidRequest)
	}
	return nil
}

func lockGoal(ctx context.Context, tx pgx.Tx, userID, goalID int64) (Goal, error) {
	row := tx.QueryRow(ctx, `SELECT `+goalColumns+` FROM savings_goals
        WHERE id = $1 AND user_id = $2 FOR UPDATE`, goalID, userID)
	return scanGoal(row)
}

func scanGoal(row pgx.Row) (Goal, error) {
	var g Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Goal{}, fmt.Errorf("%w: goal", ledger.ErrNotFound)
		}
		return Goal{}, err
	}
	return g, nil
}
