package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/harborbank/harbor/internal/ledger"
)

func testCreds(username, email, phone string) Credentials {
	return Credentials{
		Email:     email,
		Username:  username,
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     phone,
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, testCreds("ada", "ada@example.com", "+100"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleUser || !user.IsActive {
		t.Fatalf("unexpected new user defaults: %+v", user)
	}

	if _, err := svc.Authenticate(ctx, "ada", "correct-horse"); err != nil {
		t.Fatalf("authenticate by username: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("authenticate by email: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ada", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown login should not leak existence, got %v", err)
	}
}

func TestRegisterConflicts(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, testCreds("ada", "ada@example.com", "+100")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, testCreds("ada", "other@example.com", "+101")); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("duplicate username: expected ErrConflict, got %v", err)
	}
	if _, err := svc.Register(ctx, testCreds("grace", "ada@example.com", "+102")); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("duplicate email: expected ErrConflict, got %v", err)
	}
	if _, err := svc.Register(ctx, testCreds("grace", "grace@example.com", "+100")); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("duplicate phone: expected ErrConflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	short := testCreds("bob", "bob@example.com", "+103")
	short.Password = "short"
	if _, err := svc.Register(ctx, short); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("short password: expected ErrInvalidRequest, got %v", err)
	}
}

func TestResolveReceiver(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, testCreds("ada", "ada@example.com", "+100"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	byID, err := svc.ResolveReceiver(ctx, &user.ID, nil)
	if err != nil || byID.ID != user.ID {
		t.Fatalf("resolve by id: %v", err)
	}

	name := "ada"
	byName, err := svc.ResolveReceiver(ctx, nil, &name)
	if err != nil || byName.ID != user.ID {
		t.Fatalf("resolve by username: %v", err)
	}

	missing := "ghost"
	if _, err := svc.ResolveReceiver(ctx, nil, &missing); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing receiver: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ResolveReceiver(ctx, nil, nil); !errors.Is(err, ledger.ErrInvalidRequest) {
		t.Fatalf("no receiver: expected ErrInvalidRequest, got %v", err)
	}
}
