package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/harborbank/harbor/internal/account"
	"github.com/harborbank/harbor/internal/cards"
	"github.com/harborbank/harbor/internal/config"
	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/middleware"
	"github.com/harborbank/harbor/internal/notification"
	"github.com/harborbank/harbor/internal/recipients"
	"github.com/harborbank/harbor/internal/savings"
	"github.com/harborbank/harbor/internal/session"
	"github.com/harborbank/harbor/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Sessions session.Store
}

// Setup configures middlewares and all application routes. A nil DB falls
// back to in-memory stores, which keeps local development and tests free of
// external services.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, ledger.Options{
			DuplicateWindow: d.Cfg.DuplicateWindow,
			LockTimeout:     d.Cfg.LockTimeout,
		})
	} else {
		store = ledger.NewInMemory()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo)

	var savingsRepo savings.Repository
	if d.DB != nil {
		savingsRepo = savings.NewPostgresRepository(d.DB)
	} else {
		savingsRepo = savings.NewMemoryRepository(store)
	}
	savingsSvc := savings.NewService(savingsRepo)

	var recipientsRepo recipients.Repository
	if d.DB != nil {
		recipientsRepo = recipients.NewPostgresRepository(d.DB)
	} else {
		recipientsRepo = recipients.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	transferSvc := transfer.NewService(store, identitySvc, notifier)
	cardsSvc := cards.NewService(store, identitySvc)
	accountSvc := account.NewService(store, savingsSvc)
	recipientsSvc := recipients.NewService(recipientsRepo, identitySvc)

	authHandler := NewAuthHandler(identitySvc, store, d.Sessions)
	accountHandler := account.NewHandler(accountSvc)
	transferHandler := transfer.NewHandler(transferSvc)
	savingsHandler := savings.NewHandler(savingsSvc)
	cardsHandler := cards.NewHandler(cardsSvc)
	recipientsHandler := recipients.NewHandler(recipientsSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", middleware.LoginRateLimit(d.Cache, 5), authHandler.Login)

	// Protected routes
	protected := api.Group("", middleware.SessionAuth(d.Sessions))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/me", authHandler.Me)

	protected.Get("/accounts/me", accountHandler.Me)
	protected.Patch("/accounts/activate", accountHandler.Activate)

	protected.Post("/transactions/send", transferHandler.Send)
	protected.Post("/transactions/topup", transferHandler.TopUp)
	protected.Get("/transactions", transferHandler.List)

	protected.Get("/savings-goals", savingsHandler.List)
	protected.Post("/savings-goals", savingsHandler.Create)
	protected.Put("/savings-goals/:goalId", savingsHandler.Update)
	protected.Delete("/savings-goals/:goalId", savingsHandler.Delete)
	protected.Post("/savings-goals/:goalId/deposit", savingsHandler.Deposit)
	protected.Post("/savings-goals/:goalId/withdraw", savingsHandler.Withdraw)

	protected.Get("/cards", cardsHandler.List)
	protected.Post("/cards", cardsHandler.Order)
	protected.Patch("/cards/:cardId/status", cardsHandler.UpdateStatus)

	protected.Get("/recipients", recipientsHandler.List)
	protected.Post("/recipients", recipientsHandler.Create)
	protected.Delete("/recipients/:recipientId", recipientsHandler.Delete)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireRoles(identityRepo, identity.RoleAdmin, identity.RoleAccountManager))
	admin.Patch("/accounts/:userId/activate", accountHandler.AdminActivate)
	admin.Post("/accounts/:userId/balance", accountHandler.AdminBalance)
	admin.Post("/cards/:cardId/credit", cardsHandler.AdminCredit)
	admin.Get("/transactions", transferHandler.AdminList)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
