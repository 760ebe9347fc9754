package routes

import (
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/yotta-io/tokenledger/internal/account"
    "github.com/yotta-io/tokenledger/internal/auth"
    "github.com/yotta-io/tokenledger/internal/middleware"
)

// RegisterAuthRoutes wires account registration and login.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
    r.Post("/accounts", h.Register)
    group := r.Group("/auth")
    if rateLimiter != nil {
        group.Post("/login", rateLimiter, h.Login)
    } else {
        group.Post("/login", h.Login)
    }
}

// RegisterProfileRoute exposes the authenticated account.
func RegisterProfileRoute(r fiber.Router, accounts *account.Service) {
    r.Get("/me", func(c *fiber.Ctx) error {
        name := middleware.Actor(c)
        if name == "" {
            return c.SendStatus(http.StatusUnauthorized)
        }
        acc, err := accounts.Get(c.UserContext(), name)
        if err != nil {
            return fiber.NewError(http.StatusUnauthorized, "account not found")
        }
        return c.JSON(fiber.Map{
            "account_id": acc.ID,
            "name":       acc.Name,
            "created_at": acc.CreatedAt,
            "last_login": acc.LastLogin,
        })
    })
}
