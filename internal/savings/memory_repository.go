package savings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
)

type memoryRepository struct {
	mu     sync.Mutex
	goals  map[int64]Goal
	nextID int64
	// balances resolves account balances for the reservation check.
	balances ledger.Store
}

// NewMemoryRepository constructs an in-memory repository for tests. The
// provided store supplies account balances for the reservation invariant.
func NewMemoryRepository(balances ledger.Store) Repository {
	return &memoryRepository{goals: make(map[int64]Goal), nextID: 1, balances: balances}
}

func (r *memoryRepository) List(_ context.Context, userID int64) ([]Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Goal
	for _, goal := range r.goals {
		if goal.UserID == userID {
			out = append(out, goal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Get(_ context.Context, userID, goalID int64) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(userID, goalID)
}

func (r *memoryRepository) get(userID, goalID int64) (Goal, error) {
	goal, ok := r.goals[goalID]
	if !ok || goal.UserID != userID {
		return Goal{}, fmt.Errorf("%w: goal", ledger.ErrNotFound)
	}
	return goal, nil
}

func (r *memoryRepository) Create(ctx context.Context, goal Goal) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReservation(ctx, goal.UserID, goal.CurrentAmount, 0); err != nil {
		return Goal{}, err
	}

	goal.ID = r.nextID
	r.nextID++
	goal.CreatedAt = time.Now().UTC()
	goal.UpdatedAt = goal.CreatedAt
	r.goals[goal.ID] = goal
	return goal, nil
}

func (r *memoryRepository) Update(ctx context.Context, goal Goal) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.get(goal.UserID, goal.ID)
	if err != nil {
		return Goal{}, err
	}
	if !goal.CurrentAmount.Equal(existing.CurrentAmount) {
		if err := r.checkReservation(ctx, goal.UserID, goal.CurrentAmount, goal.ID); err != nil {
			return Goal{}, err
		}
	}
	if goal.TargetAmount.LessThan(goal.CurrentAmount) {
		return Goal{}, fmt.Errorf("%w: saved amount exceeds the goal target", ledger.ErrInvalidRequest)
	}

	goal.CreatedAt = existing.CreatedAt
	goal.UpdatedAt = time.Now().UTC()
	r.goals[goal.ID] = goal
	return goal, nil
}

func (r *memoryRepository) Delete(_ context.Context, userID, goalID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.get(userID, goalID); err != nil {
		return err
	}
	delete(r.goals, goalID)
	return nil
}

func (r *memoryRepository) AdjustCurrent(ctx context.Context, userID, goalID int64, delta money.Amount) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	goal, err := r.get(userID, goalID)
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
		if err := r.checkReservation(ctx, userID, newCurrent, goalID); err != nil {
			return Goal{}, err
		}
	}

	goal.CurrentAmount = newCurrent
	goal.UpdatedAt = time.Now().UTC()
	r.goals[goalID] = goal
	return goal, nil
}

func (r *memoryRepository) Total(_ context.Context, userID int64) (money.Amount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total(userID, 0), nil
}

func (r *memoryRepository) total(userID, excludeGoalID int64) money.Amount {
	total := money.Zero
	for _, goal := range r.goals {
		if goal.UserID == userID && goal.ID != excludeGoalID {
			total = total.Add(goal.CurrentAmount)
		}
	}
	return total
}

func (r *memoryRepository) checkReservation(ctx context.Context, userID int64, proposedCurrent money.Amount, excludeGoalID int64) error {
	acct, err := r.balances.Account(ctx, userID)
	if err != nil {
		return err
	}
	if acct.Balance.LessThan(r.total(userID, excludeGoalID).Add(proposedCurrent)) {
		return fmt.Errorf("%w: total saved across all goals cannot exceed your account balance", ledger.ErrInvalidRequest)
	}
	return nil
}
