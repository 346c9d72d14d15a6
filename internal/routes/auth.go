package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/cards"
	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/ledger"
	"github.com/harborbank/harbor/internal/session"
	"github.com/harborbank/harbor/internal/web"
)

// AuthHandler wires registration, login and session teardown.
type AuthHandler struct {
	ids      *identity.Service
	store    ledger.Store
	sessions session.Store
}

// NewAuthHandler builds the auth handler.
func NewAuthHandler(ids *identity.Service, store ledger.Store, sessions session.Store) *AuthHandler {
	return &AuthHandler{ids: ids, store: store, sessions: sessions}
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
	City      string `json:"city,omitempty"`
	Role      string `json:"role"`
}

func toUserResponse(user identity.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Country:   user.Country,
		City:      user.City,
		Role:      string(user.Role),
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	City      string `json:"city"`
}

// Register creates the user, provisions a zero-balance account and opens a
// session.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}

	user, err := h.ids.Register(c.UserContext(), identity.Credentials{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Country:   req.Country,
		City:      req.City,
	})
	if err != nil {
		return web.HTTPError(err)
	}

	cardNumber, err := cards.GenerateNumber()
	if err != nil {
		return web.HTTPError(err)
	}
	if err := h.store.CreateAccount(c.UserContext(), user.ID, cardNumber); err != nil {
		return web.HTTPError(err)
	}

	token, err := h.sessions.Create(c.UserContext(), user.ID)
	if err != nil {
		return web.HTTPError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  toUserResponse(user),
	})
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates by email or username and opens a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := web.Validate(req); err != nil {
		return web.HTTPError(err)
	}

	user, err := h.ids.Authenticate(c.UserContext(), req.Login, req.Password)
	if err != nil {
		return web.HTTPError(err)
	}

	token, err := h.sessions.Create(c.UserContext(), user.ID)
	if err != nil {
		return web.HTTPError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token": token,
		"user":  toUserResponse(user),
	})
}

// Logout destroys the caller's session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("session_token").(string)
	if err := h.sessions.Destroy(c.UserContext(), token); err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(int64)
	user, err := h.ids.Get(c.UserContext(), uid)
	if err != nil {
		return web.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toUserResponse(user))
}
