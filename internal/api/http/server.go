package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/router"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
	"github.com/Alijeyrad/karsaz_backend/pkg/observability"
)

const (
	defaultRequestTimeout = 30 * time.Second
	idleTimeoutFactor     = 4
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	app := fiber.New(appConfig(p.Cfg.Server))

	if p.OTel != nil {
		app.Use(observability.HTTPMiddleware())
	}
	configureGlobalMiddleware(app, p.Cfg, p.Redis)
	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("http: listener stopped", "addr", addr, "error", err)
				}
			}()
			slog.Info("http: listening", "addr", addr, "env", p.Cfg.Server.Environment)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func appConfig(s config.ServerConfig) fiber.Config {
	timeout := defaultRequestTimeout
	if s.TimeoutSeconds > 0 {
		timeout = time.Duration(s.TimeoutSeconds) * time.Second
	}
	return fiber.Config{
		AppName:      "karsaz",
		ErrorHandler: errorHandler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  timeout * idleTimeoutFactor,
	}
}

// errorHandler renders errors that escape the handlers (middleware
// rejections, panics, unknown routes) in the API envelope.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		rid, _ := middleware.RequestIDFromFiber(c)
		slog.ErrorContext(c.Context(), "unhandled error", "request_id", rid, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"success": false, "message": msg})
}

func helmetConfig(h config.HeadersConfig) helmet.Config {
	return helmet.Config{
		XSSProtection:             h.XSSProtection,
		ContentTypeNosniff:        h.ContentTypeNosniff,
		XFrameOptions:             h.XFrameOptions,
		ReferrerPolicy:            h.ReferrerPolicy,
		CrossOriginEmbedderPolicy: h.CrossOriginEmbedderPolicy,
		CrossOriginOpenerPolicy:   h.CrossOriginOpenerPolicy,
		CrossOriginResourcePolicy: h.CrossOriginResourcePolicy,
		OriginAgentCluster:        h.OriginAgentCluster,
		XDNSPrefetchControl:       h.XDNSPrefetchControl,
		XDownloadOptions:          h.XDownloadOptions,
		XPermittedCrossDomain:     h.XPermittedCrossDomain,
	}
}

func corsConfig(c config.CORSConfig) cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAgeSeconds,
	}
}

// configureGlobalMiddleware installs, in order: request id, panic recovery,
// security headers and CORS (production only), the shared rate limiter and
// the access log.
func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.Server.Environment == constants.EnvProduction {
		app.Use(helmet.New(helmetConfig(cfg.Server.Headers)))
		if cfg.Server.CORS.Enabled {
			app.Use(cors.New(corsConfig(cfg.Server.CORS)))
		}
	}
	if rpm := cfg.Server.RateLimit.RequestsPerMinute; rpm > 0 {
		app.Use(middleware.NewLimiterWithRedis(rdb, rpm, time.Minute))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${locals:request_id}] ${method} ${url} ${status} ${latency}\n",
	}))
}
