package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

// RateLimit caps requests per client IP in fixed one-minute windows using Redis.
// It is a no-op without Redis or with a non-positive limit.
func RateLimit(cache *redis.Client, scope string, maxPerMin int) fiber.Handler {
    return func(c *fiber.Ctx) error {
        if cache == nil || maxPerMin <= 0 {
            return c.Next()
        }
        window := time.Now().UTC().Unix() / 60
        key := "rl:" + scope + ":" + c.IP() + ":" + strconv.FormatInt(window, 10)
        cnt, err := cache.Incr(c.UserContext(), key).Result()
        if err != nil {
            return c.Next() // fail-open on cache errors
        }
        if cnt == 1 {
            cache.Expire(c.UserContext(), key, time.Minute)
        }

        remaining := int64(maxPerMin) - cnt
        if remaining < 0 {
            remaining = 0
        }
        c.Set("X-RateLimit-Limit", strconv.Itoa(maxPerMin))
        c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
        if cnt > int64(maxPerMin) {
            c.Set(fiber.HeaderRetryAfter, "60")
            return fiber.NewError(http.StatusTooManyRequests, "Too many requests, try again later")
        }
        return c.Next()
    }
}
