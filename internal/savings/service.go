package savings

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
)

// Service exposes savings goal operations, all scoped to the owning user.
type Service struct {
	repo Repository
}

// NewService builds a savings service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's goals, oldest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Goal, error) {
	return s.repo.List(ctx, userID)
}

// CreateInput captures data required to create a goal.
type CreateInput struct {
	Name          string
	TargetAmount  money.Amount
	CurrentAmount money.Amount
}

// Create validates and persists a new goal. The starting reservation must
// fit within both the target and the account balance.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (Goal, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Goal{}, fmt.Errorf("%w: goal name is required", ledger.ErrInvalidRequest)
	}
	if !input.TargetAmount.IsPositive() || input.CurrentAmount.IsNegative() {
		return Goal{}, fmt.Errorf("%w: invalid goal amounts", ledger.ErrInvalidRequest)
	}
	if input.TargetAmount.LessThan(input.CurrentAmount) {
		return Goal{}, fmt.Errorf("%w: saved amount exceeds the goal target", ledger.ErrInvalidRequest)
	}

	return s.repo.Create(ctx, Goal{
		UserID:        userID,
		Name:          name,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: input.CurrentAmount,
	})
}

// UpdateInput carries the optional fields of a goal update.
type UpdateInput struct {
	Name          *string
	TargetAmount  *money.Amount
	CurrentAmount *money.Amount
}

// Update applies a partial update. A changed reservation re-runs the
// balance-sum check against the rest of the user's goals.
func (s *Service) Update(ctx context.Context, userID, goalID int64, input UpdateInput) (Goal, error) {
	goal, err := s.repo.Get(ctx, userID, goalID)
	if err != nil {
		return Goal{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return Goal{}, fmt.Errorf("%w: goal name is required", ledger.ErrInvalidRequest)
		}
		goal.Name = name
	}
	if input.TargetAmount != nil {
		if !input.TargetAmount.IsPositive() {
			return Goal{}, fmt.Errorf("%w: target must be positive", ledger.ErrInvalidRequest)
		}
		goal.TargetAmount = *input.TargetAmount
	}
	if input.CurrentAmount != nil {
		if input.CurrentAmount.IsNegative() {
			return Goal{}, fmt.Errorf("%w: invalid current amount", ledger.ErrInvalidRequest)
		}
		goal.CurrentAmount = *input.CurrentAmount
	}

	return s.repo.Update(ctx, goal)
}

// Delete removes a goal, releasing its reservation.
func (s *Service) Delete(ctx context.Context, userID, goalID int64) error {
	return s.repo.Delete(ctx, userID, goalID)
}

// Deposit raises the goal's reservation. No Transaction is logged: the
// funds never leave the account.
func (s *Service) Deposit(ctx context.Context, userID, goalID int64, amount money.Amount) (Goal, error) {
	if !amount.IsPositive() {
		return Goal{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidRequest)
	}
	return s.repo.AdjustCurrent(ctx, userID, goalID, amount)
}

// Withdraw lowers the goal's reservation. Withdrawals only shrink the
// reserved sum, so the balance invariant cannot be violated.
func (s *Service) Withdraw(ctx context.Context, userID, goalID int64, amount money.Amount) (Goal, error) {
	if !amount.IsPositive() {
		return Goal{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidRequest)
	}
	return s.repo.AdjustCurrent(ctx, userID, goalID, amount.Neg())
}

// Reserved returns the user's total reservation across goals.
func (s *Service) Reserved(ctx context.Context, userID int64) (money.Amount, error) {
	return s.repo.Total(ctx, userID)
}
