package cards

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/web"
)

// Handler exposes card HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a card handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type cardResponse struct {
	ID          int64        `json:"id"`
	Type        string       `json:"card_type"`
	Status      string       `json:"status"`
	Balance     money.Amount `json:"balance"`
	HolderName  string       `json:"holder_name"`
	Number      string       `json:"card_number"`
	ExpiryMonth int          `json:"expiry_month"`
	ExpiryYear  int          `json:"expiry_year"`
	DesignSlug  string       `json:"design_slug,omitempty"`
	Theme       string       `json:"theme,omitempty"`
	IsPrimary   bool         `json:"is_primary"`
	CreatedAt   string       `json:"created_at"`
}

func toResponse(card ledger.Card, masked bool) cardResponse {
	number := card.Number
	if masked {
		number = MaskNumber(number)
	}
	return cardResponse{
		ID:          card.ID,
		Type:        string(card.Type),
		Status:      string(card.Status),
		Balance:     card.Balance,
		HolderName:  card.HolderName,
		Number:      number,
		ExpiryMonth: card.ExpiryMonth,
		ExpiryYear:  card.ExpiryYear,
		DesignSlug:  card.DesignSlug,
		Theme:       card.Theme,
		IsPrimary:   card.IsPrimary,
		CreatedAt:   card.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type orderRequest struct {
	Type       string `json:"card_type" validate:"required"`
	DesignSlug string `json:"design_slug"`
	Theme      string `json:"theme"`
}

type orderResponse struct {
	cardResponse
	CVV string `json:"cvv"`
}

// Order issues a new card. The full number and CVV appear only in this
// response.
func (h *Handler) Order(c *fiber.Ctx) error {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}
	uid, _ := c.Locals("user_id").(int64)

	issued, err := h.service.Order(c.UserContext(), uid, OrderInput{
		Type:       req.Type,
		DesignSlug: req.DesignSlug,
		Theme:      req.Theme,
	})
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(orderResponse{
		cardResponse: toResponse(issued.Card, false),
		CVV:          issued.CVV,
	})
}

// List returns the caller's cards with masked numbers.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	cards, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return web.HTTPError(err)
	}
	out := make([]cardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, toResponse(card, true))
	}
	return c.Status(http.StatusOK).JSON(out)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus changes a card's lifecycle state.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	cardID, err := strconv.ParseInt(c.Params("cardId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid card id")
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}
	uid, _ := c.Locals("user_id").(int64)

	card, err := h.service.UpdateStatus(c.UserContext(), uid, cardID, req.Status)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(card, true))
}

type creditRequest struct {
	Amount money.Amount `json:"amount"`
}

// AdminCredit adds funds to any card. Admin surface.
func (h *Handler) AdminCredit(c *fiber.Ctx) error {
	cardID, err := strconv.ParseInt(c.Params("cardId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid card id")
	}
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	card, err := h.service.Credit(c.UserContext(), cardID, req.Amount)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(card, true))
}
