package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/ratelimit"
	"go.uber.org/zap"
)

// CorrelationID propagates X-Request-ID into the request context, minting one
// when the caller did not send it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := requestCorrelationID(c)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		c.Locals("requestid", correlationID)
		c.Set(fiber.HeaderXRequestID, correlationID)
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		return c.Next()
	}
}

// ActorIdentity resolves the caller from X-Actor-ID and X-Actor-Role. The
// headers are set by the authenticating gateway in front of the API.
func ActorIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(headerActorID))
		if id == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+headerActorID+" header")
		}
		if len(id) > domain.MaxActorIDLength {
			return fiber.NewError(fiber.StatusUnauthorized,
				fmt.Sprintf("%s header exceeds %d characters", headerActorID, domain.MaxActorIDLength))
		}
		role, err := domain.ParseRole(c.Get(headerActorRole))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.SetUserContext(observability.WithActor(c.UserContext(), domain.Actor{ID: id, Role: role}))
		return c.Next()
	}
}

// RateLimit throttles requests per actor. Limiter failures let the request
// through.
func RateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		key := actorFrom(c).ID
		if key == "" {
			key = c.IP()
		}

		allowed, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			observability.WithContextLogger(logger, c.UserContext()).Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
