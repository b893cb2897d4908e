package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
	"github.com/Alijeyrad/karsaz_backend/pkg/database"
	"github.com/Alijeyrad/karsaz_backend/pkg/email"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
	"github.com/Alijeyrad/karsaz_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/karsaz_backend/pkg/redis"
	"github.com/Alijeyrad/karsaz_backend/pkg/sms"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
)

// EncryptionKey is the decoded AES-256 key for payout account ids.
type EncryptionKey []byte

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideRepoClient),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideLocker),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideEscrowMetrics),
	fx.Provide(ProvideStripeClient),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvidePublisher),
	fx.Provide(ProvideEncryptionKey),
)

func ProvideRepoClient(lc fx.Lifecycle, cfg *config.Config) (*repo.Client, error) {
	db, err := database.NewGorm(cfg.Database)
	if err != nil {
		return nil, err
	}
	client := repo.NewClient(db)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !database.ShouldAutoMigrate(cfg.Database.Migrations, cfg.Server.Environment) {
				return nil
			}
			slog.Info("applying database migrations at startup")
			return client.RunMigrations(ctx)
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return client.Close()
		},
	})
	return client, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.New(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideLocker(rdb *redis.Client) *redispkg.Locker {
	return redispkg.NewLocker(rdb)
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	auth, cleanup, err := authorize.Setup(cfg.Authorization, database.DSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

func ProvideStripeClient(cfg *config.Config) *stripepay.Client {
	c := stripepay.NewFromCentral(cfg.Stripe)
	if cfg.Stripe.SecretKey == "" {
		slog.Warn("stripe secret key not set; payment calls will fail")
	}
	return c
}

// ProvideNatsClient returns a nil connection when NATS is disabled; the
// publisher and workers treat nil as "events off".
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if !cfg.Nats.Enabled {
		slog.Info("NATS disabled; lifecycle events will not be published")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name(cfg.Observability.ServiceName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvidePublisher(nc *nats.Conn) *events.Publisher {
	return events.NewPublisher(nc)
}

func ProvideEncryptionKey(cfg *config.Config) (EncryptionKey, error) {
	key, err := crypto.KeyFromHex(cfg.Authentication.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return EncryptionKey(key), nil
}

func ProvideEscrowMetrics() *observability.EscrowMetrics {
	return observability.NewEscrowMetrics()
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.Init(context.Background(), cfg.Observability, cfg.Server.Environment)
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
