package router

import (
	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/karsaz_backend/internal/service/appointment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/auth"
	"github.com/Alijeyrad/karsaz_backend/internal/service/catalog"
	"github.com/Alijeyrad/karsaz_backend/internal/service/job"
	"github.com/Alijeyrad/karsaz_backend/internal/service/notification"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/internal/service/user"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg             *config.Config
	Redis           *redis.Client
	Auth            authorize.IAuthorization
	AuthSvc         auth.Service
	UserSvc         user.Service
	CatalogSvc      catalog.Service
	PricingSvc      pricing.Service
	AppointmentSvc  appointment.Service
	PaymentSvc      payment.Service
	JobSvc          job.Service
	NotificationSvc notification.Service
	Webhooks        handler.EventParser
	PasetoMgr       *pasetotoken.Manager
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, r.p.Redis)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.AuthSvc)
	userH := handler.NewUserHandler(r.p.UserSvc)
	catalogH := handler.NewCatalogHandler(r.p.CatalogSvc)
	appointmentH := handler.NewAppointmentHandler(r.p.AppointmentSvc, r.p.PricingSvc)
	paymentH := handler.NewPaymentHandler(r.p.PaymentSvc)
	webhookH := handler.NewWebhookHandler(r.p.Webhooks, r.p.PaymentSvc)
	jobH := handler.NewJobHandler(r.p.JobSvc)
	adminH := handler.NewAdminHandler(r.p.PricingSvc)
	notificationH := handler.NewNotificationHandler(r.p.NotificationSvc)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerAuthRoutes(api, authH, authRequired)
	r.registerUserRoutes(api, userH, authRequired)
	r.registerCatalogRoutes(api, catalogH, authRequired, requirePerm)
	r.registerAppointmentRoutes(api, appointmentH, authRequired, requirePerm)
	r.registerPaymentRoutes(api, paymentH, webhookH, authRequired, requirePerm)
	r.registerJobRoutes(api, jobH, authRequired, requirePerm)
	r.registerAdminRoutes(api, adminH, authRequired, requirePerm)
	r.registerNotificationRoutes(api, notificationH, authRequired)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return !r.p.Cfg.Authorization.HealthCheckEnabled || authorize.IsPolicyHealthy()
		},
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
