package middleware

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

const loginWindow = time.Minute

// LoginRateLimit limits login attempts per account name, falling back to the
// client IP when the body carries no name. Rejections carry Retry-After with
// the seconds left in the window. Without Redis it is a no-op.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
    if maxPerMin <= 0 {
        maxPerMin = 5
    }
    return func(c *fiber.Ctx) error {
        if cache == nil {
            return c.Next() // no-op without Redis
        }
        var req struct{ Name string `json:"name"` }
        _ = c.BodyParser(&req)
        subject := strings.TrimSpace(req.Name)
        if subject == "" {
            subject = c.IP()
        }
        key := "rl:login:" + strings.ToLower(subject)
        cnt, err := cache.Incr(c.UserContext(), key).Result()
        if err == nil && cnt == 1 {
            cache.Expire(c.UserContext(), key, loginWindow)
        }
        if err != nil {
            return c.Next() // fail-open on cache errors
        }
        if cnt > int64(maxPerMin) {
            retry := loginWindow
            if ttl, err := cache.TTL(c.UserContext(), key).Result(); err == nil && ttl > 0 {
                retry = ttl
            }
            c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second)/time.Second)))
            return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
        }
        return c.Next()
    }
}

