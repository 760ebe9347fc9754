package middleware

import (
    "context"
    "net/http"
    "strings"

    "github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// TokenVerifier resolves a bearer token to the account it was issued to.
type TokenVerifier interface {
    Verify(ctx context.Context, token string) (string, error)
}

// JWTAuth returns a middleware that validates bearer access tokens and stores
// the acting account on the request.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
    return func(c *fiber.Ctx) error {
        authz := c.Get(fiber.HeaderAuthorization)
        if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
            return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
        }
        tokenStr := strings.TrimSpace(authz[len("Bearer "):])
        actor, err := verifier.Verify(c.UserContext(), tokenStr)
        if err != nil {
            return fiber.NewError(http.StatusUnauthorized, "invalid token")
        }
        c.Locals(actorKey, actor)
        return c.Next()
    }
}

// Actor returns the authenticated account of the request, or "" when the
// route is public.
func Actor(c *fiber.Ctx) string {
    actor, _ := c.Locals(actorKey).(string)
    return actor
}
