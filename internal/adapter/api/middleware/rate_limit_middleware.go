package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"pasarlive/internal/infrastructure/ratelimit"
	"pasarlive/pkg/errors"
)

// RateLimit throttles API calls per authenticated user, or per client IP when
// the request carries no user yet.
func RateLimit(limiter *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := c.Get(userIDKey).(string)
			if !ok || key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, wait := limiter.Allow(key, ratelimit.ActionHTTP)
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				return errors.TooManyRequests("Rate limit exceeded")
			}
			return next(c)
		}
	}
}
