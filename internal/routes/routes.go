package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/faith-connect/faith_connect/internal/config"
	"github.com/faith-connect/faith_connect/internal/identity"
	"github.com/faith-connect/faith_connect/internal/infra"
	"github.com/faith-connect/faith_connect/internal/middleware"
	"github.com/faith-connect/faith_connect/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.ServerConfig
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var identityRepo identity.Repository
	if d.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := infra.EnsureSchema(ctx, d.DB, identity.Schema...); err != nil {
			return err
		}
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	tokens := identity.NewTokens(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, d.Cfg.RefreshTokenTTL)
	identitySvc := identity.NewService(identityRepo, tokens, d.Notifier, d.Cfg.OTPTTL, d.Logger)
	identityHandler := identity.NewHandler(identitySvc)

	api := app.Group(d.Cfg.BasePath)
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, identityHandler, AuthMiddleware{
		RateLimit:   middleware.OTPRateLimit(d.Cache, d.Cfg.OTPPerMinute, d.Logger),
		RequireUser: middleware.JWTAuth(tokens, identitySvc),
	})
	return nil
}
