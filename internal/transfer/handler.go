package transfer

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/money"
	"github.com/harborbank/harbor/internal/web"
)

// Handler exposes transfer HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	ReceiverID       *int64       `json:"receiver_id"`
	ReceiverUsername *string      `json:"receiver_username"`
	Amount           money.Amount `json:"amount"`
	Note             *string      `json:"note"`
}

type topUpRequest struct {
	CardID int64        `json:"card_id" validate:"required"`
	Amount money.Amount `json:"amount"`
}

// Send processes an account-to-account transfer for the authenticated user.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(int64)

	outcome, err := h.service.Send(c.UserContext(), SendInput{
		SenderID:         uid,
		ReceiverID:       req.ReceiverID,
		ReceiverUsername: req.ReceiverUsername,
		Amount:           req.Amount,
		Note:             req.Note,
	})
	if err != nil {
		return web.HTTPError(err)
	}

	message := "Transfer completed"
	status := http.StatusCreated
	if outcome.AlreadyProcessed {
		message = "Transfer already processed"
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message":        message,
		"reference":      outcome.Reference,
		"transaction_id": outcome.TransactionID,
	})
}

// TopUp processes a card top-up for the authenticated user.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}
	uid, _ := c.Locals("user_id").(int64)

	outcome, err := h.service.TopUp(c.UserContext(), TopUpInput{
		UserID: uid,
		CardID: req.CardID,
		Amount: req.Amount,
	})
	if err != nil {
		return web.HTTPError(err)
	}

	message := "Top up completed"
	status := http.StatusCreated
	if outcome.AlreadyProcessed {
		message = "Top up already processed"
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message":        message,
		"reference":      outcome.Reference,
		"transaction_id": outcome.TransactionID,
	})
}

type transactionResponse struct {
	ID         int64        `json:"id"`
	SenderID   *int64       `json:"sender_id"`
	ReceiverID int64        `json:"receiver_id"`
	Amount     money.Amount `json:"amount"`
	Note       *string      `json:"note"`
	TxType     string       `json:"tx_type"`
	Reference  string       `json:"reference"`
	Timestamp  string       `json:"timestamp"`
}

// List returns the authenticated user's transaction history.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	return h.listFor(c, uid)
}

// AdminList returns any user's transaction history. Role gating happens in
// the route middleware.
func (h *Handler) AdminList(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "user_id is required")
	}
	return h.listFor(c, userID)
}

func (h *Handler) listFor(c *fiber.Ctx, userID int64) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	txs, err := h.service.History(c.UserContext(), userID, c.Query("direction"), limit, offset)
	if err != nil {
		return web.HTTPError(err)
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:         tx.ID,
			SenderID:   tx.SenderID,
			ReceiverID: tx.ReceiverID,
			Amount:     tx.Amount,
			Note:       tx.Note,
			TxType:     string(tx.Type),
			Reference:  tx.Reference(),
			Timestamp:  tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}
