package recipients

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/web"
)

// Handler exposes saved-recipient HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a recipients handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type recipientResponse struct {
	ID          int64  `json:"id"`
	RecipientID int64  `json:"recipient_id"`
	Nickname    string `json:"nickname"`
	CreatedAt   string `json:"created_at"`
}

func toResponse(rec Recipient) recipientResponse {
	return recipientResponse{
		ID:          rec.ID,
		RecipientID: rec.RecipientID,
		Nickname:    rec.Nickname,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns the caller's saved recipients.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	recs, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return web.HTTPError(err)
	}
	out := make([]recipientResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toResponse(rec))
	}
	return c.Status(http.StatusOK).JSON(out)
}

type createRequest struct {
	RecipientID       *int64  `json:"recipient_id"`
	RecipientUsername *string `json:"recipient_username"`
	Nickname          string  `json:"nickname"`
}

// Create saves a payee for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(int64)

	rec, err := h.service.Create(c.UserContext(), uid, CreateInput{
		RecipientID:       req.RecipientID,
		RecipientUsername: req.RecipientUsername,
		Nickname:          req.Nickname,
	})
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rec))
}

// Delete removes a saved payee.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("recipientId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid recipient id")
	}
	uid, _ := c.Locals("user_id").(int64)

	if err := h.service.Delete(c.UserContext(), uid, id); err != nil {
		return web.HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
