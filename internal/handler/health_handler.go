package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerStatus reports whether the event broker connection is usable.
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies are the optional backends checked by /readyz. Nil entries are
// not configured and are skipped.
type Dependencies struct {
	DB     *sql.DB
	Redis  *redis.Client
	Broker BrokerStatus
}

func RegisterHealthRoutes(app fiber.Router, deps Dependencies) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(deps))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(deps Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		ready := true
		record := func(name string, healthy bool) {
			if healthy {
				checks[name] = "ok"
				return
			}
			checks[name] = "down"
			ready = false
		}

		if deps.DB != nil {
			record("postgres", deps.DB.PingContext(ctx) == nil)
		}
		if deps.Redis != nil {
			record("redis", deps.Redis.Ping(ctx).Err() == nil)
		}
		if deps.Broker != nil {
			record("rabbitmq", deps.Broker.IsConnected())
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
