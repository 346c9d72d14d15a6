package savings

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/web"
)

// Handler exposes savings goal HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a savings goal handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type goalResponse struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	TargetAmount  money.Amount `json:"target_amount"`
	CurrentAmount money.Amount `json:"current_amount"`
	CreatedAt     string       `json:"created_at"`
}

func toResponse(goal Goal) goalResponse {
	return goalResponse{
		ID:            goal.ID,
		Name:          goal.Name,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: goal.CurrentAmount,
		CreatedAt:     goal.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns the caller's goals.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	goals, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return web.HTTPError(err)
	}
	out := make([]goalResponse, 0, len(goals))
	for _, goal := range goals {
		out = append(out, toResponse(goal))
	}
	return c.Status(http.StatusOK).JSON(out)
}

type createGoalRequest struct {
	Name          string       `json:"name" validate:"required"`
	TargetAmount  money.Amount `json:"target_amount"`
	CurrentAmount money.Amount `json:"current_amount"`
}

// Create persists a new goal for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}
	uid, _ := c.Locals("user_id").(int64)

	goal, err := h.service.Create(c.UserContext(), uid, CreateInput{
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
	})
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(goal))
}

type updateGoalRequest struct {
	Name          *string       `json:"name"`
	TargetAmount  *money.Amount `json:"target_amount"`
	CurrentAmount *money.Amount `json:"current_amount"`
}

// Update applies a partial goal update.
func (h *Handler) Update(c *fiber.Ctx) error {
	goalID, err := goalParam(c)
	if err != nil {
		return err
	}
	var req updateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(int64)

	goal, err := h.service.Update(c.UserContext(), uid, goalID, UpdateInput{
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
	})
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(goal))
}

// Delete removes a goal.
func (h *Handler) Delete(c *fiber.Ctx) error {
	goalID, err := goalParam(c)
	if err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(int64)

	if err := h.service.Delete(c.UserContext(), uid, goalID); err != nil {
		return web.HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type amountChangeRequest struct {
	Amount money.Amount `json:"amount"`
}

// Deposit raises the goal's saved amount.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.adjust(c, false)
}

// Withdraw lowers the goal's saved amount.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.adjust(c, true)
}

func (h *Handler) adjust(c *fiber.Ctx, withdraw bool) error {
	goalID, err := goalParam(c)
	if err != nil {
		return err
	}
	var req amountChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(int64)

	var goal Goal
	if withdraw {
		goal, err = h.service.Withdraw(c.UserContext(), uid, goalID, req.Amount)
	} else {
		goal, err = h.service.Deposit(c.UserContext(), uid, goalID, req.Amount)
	}
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(goal))
}

func goalParam(c *fiber.Ctx) (int64, error) {
	goalID, err := strconv.ParseInt(c.Params("goalId"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid goal id")
	}
	return goalID, nil
}
