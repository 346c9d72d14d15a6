package savings

import (
	"time"

	"github.com/harborbank/harbor/internal/money"
)

// Goal reserves part of the owning account's balance toward a target. The
// sum of a user's goal reservations may never exceed the account balance,
// and a goal's current amount may never exceed its target.
type Goal struct {
	ID            int64
	UserID        int64
	Name          string
	TargetAmount  money.Amount
	CurrentAmount money.Amount
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
