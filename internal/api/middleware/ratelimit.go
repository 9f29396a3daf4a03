// Package middleware holds HTTP middlewares for the API surface.
package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/twilio-labs/bulk-sms-tool/internal/config"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

const limitExceededMessage = "Too many SMS requests from this IP, please try again later."

// fixed-window counter: first hit in a window creates the key with a TTL,
// later hits only increment it.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local current = redis.call('INCR', key)
if current == 1 then
  redis.call('PEXPIRE', key, window)
end
return current
`)

// RateLimiter caps requests per client IP using Redis counters.
type RateLimiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	logger *logger.Logger
}

// NewRateLimiter constructs the per-IP limiter.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, log *logger.Logger) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg, logger: log}
}

// Handle is the fiber middleware. Redis outages fail open: the core must
// keep serving even when the limiter backend is gone.
func (rl *RateLimiter) Handle(ctx *fiber.Ctx) error {
	if !rl.cfg.Enabled || rl.client == nil {
		return ctx.Next()
	}

	key := fmt.Sprintf("%s:%s", rl.cfg.KeyPrefix, ctx.IP())
	count, err := rateLimitScript.Run(ctx.Context(), rl.client, []string{key}, rl.cfg.Window.Milliseconds()).Int64()
	if err != nil {
		rl.logger.Warn("rate limiter: redis unavailable, allowing request", zap.Error(err))
		return ctx.Next()
	}

	if count > int64(rl.cfg.MaxRequests) {
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": limitExceededMessage,
		})
	}
	return ctx.Next()
}
