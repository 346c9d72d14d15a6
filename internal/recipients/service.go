package recipients

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
)

// Service manages saved payees.
type Service struct {
	repo Repository
	ids  *identity.Service
}

// NewService builds a recipients service.
func NewService(repo Repository, ids *identity.Service) *Service {
	return &Service{repo: repo, ids: ids}
}

// List returns the caller's saved recipients, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Recipient, error) {
	return s.repo.List(ctx, ownerID)
}

// CreateInput identifies the payee by id or unique username.
type CreateInput struct {
	RecipientID       *int64
	RecipientUsername *string
	Nickname          string
}

// Create saves a payee. The payee must be an existing user other than the
// owner; saving the same payee twice is a conflict.
func (s *Service) Create(ctx context.Context, ownerID int64, input CreateInput) (Recipient, error) {
	payee, err := s.ids.ResolveReceiver(ctx, input.RecipientID, input.RecipientUsername)
	if err != nil {
		return Recipient{}, err
	}
	if payee.ID == ownerID {
		return Recipient{}, fmt.Errorf("%w: cannot save yourself as a recipient", ledger.ErrInvalidRequest)
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = payee.Username
	}

	return s.repo.Create(ctx, Recipient{
		OwnerID:     ownerID,
		RecipientID: payee.ID,
		Nickname:    nickname,
	})
}

// Delete removes a saved payee.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.repo.Delete(ctx, ownerID, id)
}
