package auth

import (
    "errors"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/yotta-io/tokenledger/internal/account"
)

// Handler exposes account registration and login.
type Handler struct {
    accounts *account.Service
    svc      *Service
}

func NewHandler(accounts *account.Service, svc *Service) *Handler {
    return &Handler{accounts: accounts, svc: svc}
}

type credentialsRequest struct {
    Name   string `json:"name"`
    Secret string `json:"secret"`
}

// Register creates an account.
func (h *Handler) Register(c *fiber.Ctx) error {
    var req credentialsRequest
    if err := c.BodyParser(&req); err != nil {
        return fiber.NewError(http.StatusBadRequest, err.Error())
    }
    acc, err := h.accounts.Register(c.UserContext(), account.Credentials{Name: req.Name, Secret: req.Secret})
    if err != nil {
        switch {
        case errors.Is(err, account.ErrNameTaken):
            return fiber.NewError(http.StatusConflict, err.Error())
        case errors.Is(err, account.ErrInvalidName), errors.Is(err, account.ErrWeakSecret):
            return fiber.NewError(http.StatusBadRequest, err.Error())
        default:
            return fiber.NewError(http.StatusInternalServerError, err.Error())
        }
    }
    return c.Status(http.StatusCreated).JSON(fiber.Map{
        "account_id": acc.ID,
        "name":       acc.Name,
        "created_at": acc.CreatedAt,
    })
}

// Login validates credentials and returns an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
    var req credentialsRequest
    if err := c.BodyParser(&req); err != nil {
        return fiber.NewError(http.StatusBadRequest, err.Error())
    }
    acc, err := h.accounts.Authenticate(c.UserContext(), account.Credentials{Name: req.Name, Secret: req.Secret})
    if err != nil {
        return fiber.NewError(http.StatusUnauthorized, err.Error())
    }
    token, err := h.svc.Login(acc)
    if err != nil {
        return fiber.NewError(http.StatusInternalServerError, err.Error())
    }
    return c.Status(http.StatusOK).JSON(fiber.Map{
        "account":      acc.Name,
        "access_token": token.AccessToken,
        "expires_in":   token.ExpiresIn,
    })
}
