package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	backendDisabled    = "disabled"
	backendOK          = "ok"
	backendUnreachable = "unreachable"
)

type backend struct {
	name string
	ping func(context.Context) error // nil when the backend is not configured
}

func backends(d Deps) []backend {
	out := []backend{{name: "postgres"}, {name: "redis"}}
	if d.DB != nil {
		out[0].ping = d.DB.Ping
	}
	if d.Cache != nil {
		out[1].ping = func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }
	}
	return out
}

// RegisterHealthRoutes adds the liveness and readiness endpoints. Readiness
// fails with 503 when a configured backend does not answer.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": backendOK})
	})

	checks := backends(d)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := fiber.Map{}
		for _, b := range checks {
			switch {
			case b.ping == nil:
				results[b.name] = backendDisabled
			case b.ping(ctx) != nil:
				results[b.name] = backendUnreachable
				status = http.StatusServiceUnavailable
			default:
				results[b.name] = backendOK
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    results,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
