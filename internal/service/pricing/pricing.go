package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
)

const cacheKeyLatest = constants.RedisTaxConfigKey

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*repo.User, error)
	LatestTaxConfig(ctx context.Context) (*repo.TaxConfig, error)
	CreateTaxConfig(ctx context.Context, tc *repo.TaxConfig) error
}

// Cache is the subset of the redis client the config snapshot needs.
type Cache interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Quote prices duration hours with professionalID's hourly rate under
	// the latest fee config.
	Quote(ctx context.Context, professionalID uuid.UUID, duration decimal.Decimal) (*Quote, error)

	CurrentConfig(ctx context.Context) (FeeConfig, error)
	// SetConfig appends a new config row. Only admins may call it; existing
	// appointments keep the snapshot they were priced with.
	SetConfig(ctx context.Context, act actor.Actor, cfg FeeConfig) (*repo.TaxConfig, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type pricingService struct {
	store    Store
	cache    Cache
	ttl      time.Duration
	defaults FeeConfig
}

// New builds the service. A nil cache reads the store on every quote.
func New(store Store, cache Cache, cfg config.PricingConfig) Service {
	defaults := DefaultFeeConfig()
	if p := cfg.DefaultTaxPercentage; p != nil {
		defaults.TaxPercentage = decimal.NewFromFloat(*p)
	}
	if p := cfg.DefaultPlatformFeePercentage; p != nil {
		defaults.PlatformFeePercentage = decimal.NewFromFloat(*p)
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &pricingService{store: store, cache: cache, ttl: ttl, defaults: defaults}
}

func (s *pricingService) Quote(ctx context.Context, professionalID uuid.UUID, duration decimal.Decimal) (*Quote, error) {
	if err := ValidateDuration(duration); err != nil {
		return nil, err
	}

	pro, err := s.store.GetUser(ctx, professionalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("get professional: %w", err)
	}
	if pro.Role != repo.RoleProfessional {
		return nil, ErrProfessionalNotFound
	}
	if !pro.HourlyRate.Valid || !pro.HourlyRate.Decimal.IsPositive() {
		return nil, ErrRateNotSet
	}

	cfg, err := s.CurrentConfig(ctx)
	if err != nil {
		return nil, err
	}

	q, err := Calculate(pro.HourlyRate.Decimal, duration, cfg)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *pricingService) CurrentConfig(ctx context.Context) (FeeConfig, error) {
	if cfg, ok := s.cached(ctx); ok {
		return cfg, nil
	}

	cfg := s.defaults
	tc, err := s.store.LatestTaxConfig(ctx)
	switch {
	case err == nil:
		cfg = FeeConfig{TaxPercentage: tc.TaxPercentage, PlatformFeePercentage: tc.PlatformFeePercentage}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return FeeConfig{}, fmt.Errorf("load tax config: %w", err)
	}

	s.remember(ctx, cfg)
	return cfg, nil
}

func (s *pricingService) SetConfig(ctx context.Context, act actor.Actor, cfg FeeConfig) (*repo.TaxConfig, error) {
	if !act.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tc := &repo.TaxConfig{
		ID:                    uuid.Must(uuid.NewV7()),
		TaxPercentage:         cfg.TaxPercentage,
		PlatformFeePercentage: cfg.PlatformFeePercentage,
		CreatedAt:             time.Now().UTC(),
	}
	if act.UserID != uuid.Nil {
		by := act.UserID
		tc.CreatedBy = &by
	}
	if err := s.store.CreateTaxConfig(ctx, tc); err != nil {
		return nil, fmt.Errorf("create tax config: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKeyLatest).Err(); err != nil {
			slog.Warn("pricing: cache invalidation failed", "error", err)
		}
	}
	slog.Info("pricing: tax config updated",
		"tax_percentage", tc.TaxPercentage.String(),
		"platform_fee_percentage", tc.PlatformFeePercentage.String(),
		"request_id", act.RequestID,
	)
	return tc, nil
}

// ---------------------------------------------------------------------------
// Cache helpers
// ---------------------------------------------------------------------------

func (s *pricingService) cached(ctx context.Context) (FeeConfig, bool) {
	if s.cache == nil {
		return FeeConfig{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKeyLatest).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("pricing: cache read failed", "error", err)
		}
		return FeeConfig{}, false
	}
	var cfg FeeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return FeeConfig{}, false
	}
	return cfg, true
}

func (s *pricingService) remember(ctx context.Context, cfg FeeConfig) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyLatest, raw, s.ttl).Err(); err != nil {
		slog.Warn("pricing: cache write failed", "error", err)
	}
}
