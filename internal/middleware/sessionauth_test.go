package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/session"
)

func setupAuthApp(t *testing.T) (*fiber.App, session.Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewRedisStore(cache, time.Hour)

	app := fiber.New()
	app.Get("/protected", SessionAuth(sessions), func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(int64)
		return c.JSON(fiber.Map{"user_id": uid})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, sessions, cleanup
}

func TestSessionAuth(t *testing.T) {
	app, sessions, cleanup := setupAuthApp(t)
	defer cleanup()

	token, err := sessions.Create(context.Background(), 42)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionAuthRejectsMissingOrBadToken(t *testing.T) {
	app, _, cleanup := setupAuthApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("no token: expected 401 got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req = httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-session")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad token: expected 401 got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRequireRoles(t *testing.T) {
	app, sessions, cleanup := setupAuthApp(t)
	defer cleanup()

	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{
		Email:    "user@example.com",
		Username: "plainuser",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	app.Get("/admin", SessionAuth(sessions), RequireRoles(repo, identity.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token, err := sessions.Create(ctx, user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("plain user: expected 403 got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
