package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fixoo-edu/fixoo_api/internal/auth"
	"github.com/fixoo-edu/fixoo_api/internal/config"
	"github.com/fixoo-edu/fixoo_api/internal/device"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/kv"
	"github.com/fixoo-edu/fixoo_api/internal/middleware"
	"github.com/fixoo-edu/fixoo_api/internal/notification"
	"github.com/fixoo-edu/fixoo_api/internal/profile"
	"github.com/fixoo-edu/fixoo_api/internal/users"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Notifier overrides the provider notifiers built from Cfg.
	Notifier notification.Notifier
	// OTPOptions are passed to the verification service.
	OTPOptions []verification.Option
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required for one-time codes")
	}
	if d.DB == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	store := kv.New(d.Cache)
	app.Use(middleware.Idempotency(store, d.Cfg.IdempotencyTTL, d.Logger))

	// Services and handlers
	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	notifier := d.Notifier
	var breakers map[string]*notification.Guard
	if notifier == nil {
		notifier, breakers = newNotifier(d.Cfg, d.Logger)
	}
	RegisterHealthRoutes(app, d, breakers)

	otpSvc := verification.NewService(store, identity.NewDirectory(identityRepo), notifier, verification.Config{
		AppName:         d.Cfg.AppName,
		CodeTTL:         d.Cfg.OTP.TTL,
		ConfirmationTTL: d.Cfg.OTP.ConfirmationTTL,
		CodeLength:      d.Cfg.OTP.Length,
		MaxAttempts:     d.Cfg.OTP.MaxAttempts,
	}, d.Logger, d.OTPOptions...)

	identitySvc := identity.NewService(identityRepo, otpSvc, d.Cfg.Security.BcryptCost, d.Logger)
	tokens := auth.NewTokenIssuer(d.Cfg)
	authSvc := auth.NewService(tokens, identityRepo, d.Logger)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	loginLimit := middleware.RateLimit(store, "login", d.Cfg.Security.LoginPerMinute,
		"too many login attempts, try again later", d.Logger)
	sendLimit := middleware.RateLimit(store, "otp", d.Cfg.Security.OTPSendPerMinute,
		"too many code requests, try again later", d.Logger)

	RegisterAuthRoutes(api,
		identity.NewHandler(identitySvc),
		auth.NewHandler(identitySvc, authSvc, d.Cfg.RefreshTokenTTL, !d.Cfg.IsDev()),
		loginLimit)
	RegisterVerificationRoutes(api, verification.NewHandler(otpSvc), sendLimit)

	// Protected routes
	jwtmw := middleware.JWTAuth(tokens, identityRepo)
	usersHandler := users.NewHandler(users.NewService(identitySvc, d.Logger))
	RegisterPublicUserRoutes(api, usersHandler)

	protected := api.Group("", jwtmw)
	RegisterDeviceRoutes(protected, device.NewHandler(device.NewService(identityRepo, d.Logger)))
	RegisterProfileRoutes(protected, profile.NewHandler(profile.NewService(identitySvc)))
	RegisterUserRoutes(protected, usersHandler)

	return nil
}
