package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/appointment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/auth"
	"github.com/Alijeyrad/karsaz_backend/internal/service/catalog"
	"github.com/Alijeyrad/karsaz_backend/internal/service/job"
	"github.com/Alijeyrad/karsaz_backend/internal/service/notification"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/internal/service/user"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
	"github.com/Alijeyrad/karsaz_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
	redispkg "github.com/Alijeyrad/karsaz_backend/pkg/redis"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
	"github.com/Alijeyrad/karsaz_backend/pkg/util/password"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideUserService,
		ProvideAuthService,
		ProvidePricingService,
		ProvidePaymentService,
		ProvideAppointmentService,
		ProvideJobService,
		ProvideCatalogService,
		ProvideNotificationService,
		ProvideWebhookParser,
		ProvidePasetoManager,
	),
)

func ProvideUserService(db *repo.Client, key EncryptionKey) user.Service {
	return user.New(db, key)
}

func ProvideAuthService(
	db *repo.Client,
	rdb *redis.Client,
	paseto *pasetotoken.Manager,
	authz authorize.IAuthorization,
	cfg *config.Config,
) auth.Service {
	return auth.New(db, rdb, paseto, authz, password.FromConfig(cfg.Password))
}

func ProvidePricingService(db *repo.Client, rdb *redis.Client, cfg *config.Config) pricing.Service {
	return pricing.New(db, rdb, cfg.Pricing)
}

func ProvidePaymentService(
	db *repo.Client,
	proc *stripepay.Client,
	locker *redispkg.Locker,
	pub *events.Publisher,
	metrics *observability.EscrowMetrics,
	key EncryptionKey,
) payment.Service {
	return payment.New(db, proc, locker, pub, metrics, key)
}

func ProvideAppointmentService(
	db *repo.Client,
	quotes pricing.Service,
	payments payment.Service,
	pub *events.Publisher,
) appointment.Service {
	return appointment.New(db, quotes, payments, pub)
}

func ProvideJobService(
	db *repo.Client,
	quotes pricing.Service,
	payments payment.Service,
	pub *events.Publisher,
) job.Service {
	return job.New(db, quotes, payments, pub)
}

func ProvideCatalogService(db *repo.Client) catalog.Service {
	return catalog.New(db)
}

func ProvideNotificationService(db *repo.Client) notification.Service {
	return notification.New(db)
}

func ProvideWebhookParser(proc *stripepay.Client) handler.EventParser {
	return proc
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}
