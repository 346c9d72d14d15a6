package account

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/web"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type summaryResponse struct {
	UserID     int64        `json:"user_id"`
	Balance    money.Amount `json:"balance"`
	Available  money.Amount `json:"available_balance"`
	Reserved   money.Amount `json:"reserved_balance"`
	CardNumber string       `json:"card_number"`
	CardActive bool         `json:"card_active"`
}

// Me returns the caller's account summary.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	summary, err := h.service.Summarize(c.UserContext(), uid)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(summaryResponse{
		UserID:     summary.UserID,
		Balance:    summary.Balance,
		Available:  summary.Available,
		Reserved:   summary.Reserved,
		CardNumber: summary.CardNumber,
		CardActive: summary.CardActive,
	})
}

type activateRequest struct {
	Active bool `json:"active"`
}

// Activate flips the caller's account card flag.
func (h *Handler) Activate(c *fiber.Ctx) error {
	var req activateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(int64)

	acct, err := h.service.SetCardActive(c.UserContext(), uid, req.Active)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":     acct.UserID,
		"card_active": acct.CardActive,
	})
}

// AdminActivate flips the card flag for any user. Admin surface.
func (h *Handler) AdminActivate(c *fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}
	var req activateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.service.SetCardActive(c.UserContext(), userID, req.Active)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":     acct.UserID,
		"card_active": acct.CardActive,
	})
}

type balanceRequest struct {
	Balance money.Amount `json:"balance"`
}

// AdminBalance overrides any user's balance. Admin surface.
func (h *Handler) AdminBalance(c *fiber.Ctx) error {
	userID, err := userParam(c)
	if err != nil {
		return err
	}
	var req balanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acct, err := h.service.AdjustBalance(c.UserContext(), userID, req.Balance)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id": acct.UserID,
		"balance": acct.Balance,
	})
}

func userParam(c *fiber.Ctx) (int64, error) {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid user id")
	}
	return userID, nil
}
