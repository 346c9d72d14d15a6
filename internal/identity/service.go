package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harborbank/harbor/internal/ledger"
)

// ErrInvalidCredentials indicates a failed login attempt. It deliberately
// does not reveal whether the user exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service manages the identity lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new active user with a bcrypt-hashed password.
// Duplicate email, username or phone surfaces as a conflict.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Email == "" || creds.Username == "" {
		return User{}, fmt.Errorf("%w: email and username are required", ledger.ErrInvalidRequest)
	}
	if len(creds.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ledger.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		Email:        creds.Email,
		Username:     creds.Username,
		PasswordHash: hash,
		FirstName:    creds.FirstName,
		LastName:     creds.LastName,
		Phone:        creds.Phone,
		Country:      creds.Country,
		City:         creds.City,
		Role:         RoleUser,
		IsActive:     true,
	}

	return s.repo.Create(ctx, user)
}

// Authenticate verifies a login (email or username) and password.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, fmt.Errorf("%w: account is deactivated", ledger.ErrForbidden)
	}
	return user, nil
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// ResolveReceiver finds the transfer counterparty by id or unique username.
func (s *Service) ResolveReceiver(ctx context.Context, id *int64, username *string) (User, error) {
	switch {
	case id != nil:
		return s.repo.FindByID(ctx, *id)
	case username != nil && strings.TrimSpace(*username) != "":
		return s.repo.FindByUsername(ctx, strings.TrimSpace(*username))
	}
	return User{}, fmt.Errorf("%w: receiver_id or receiver_username is required", ledger.ErrInvalidRequest)
}
