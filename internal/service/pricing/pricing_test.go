package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
)

// memCache satisfies Cache with go-redis result constructors.
type memCache struct {
	values map[string]string
	gets   int
}

func newMemCache() *memCache { return &memCache{values: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) *goredis.StringCmd {
	c.gets++
	v, ok := c.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		c.values[key] = string(v)
	case string:
		c.values[key] = v
	}
	return goredis.NewStatusResult("OK", nil)
}

func (c *memCache) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

type PricingSuite struct {
	suite.Suite
	ctx   context.Context
	store *repotest.Store
	cache *memCache
	svc   Service
	pro   repo.User
	admin actor.Actor
}

func TestPricingSuite(t *testing.T) {
	suite.Run(t, new(PricingSuite))
}

func (s *PricingSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repotest.New()
	s.cache = newMemCache()
	s.svc = New(s.store, s.cache, config.PricingConfig{DefaultTaxPercentage: percent(8), DefaultPlatformFeePercentage: percent(10)})

	s.pro = repo.User{
		ID:         uuid.New(),
		Email:      "pro@example.com",
		Role:       repo.RoleProfessional,
		HourlyRate: decimal.NewNullDecimal(decimal.NewFromInt(20)),
	}
	s.store.PutUser(s.pro)
	s.admin = actor.Actor{UserID: uuid.New(), Role: repo.RoleAdmin}
}

func (s *PricingSuite) TestQuoteWithDefaults() {
	q, err := s.svc.Quote(s.ctx, s.pro.ID, decimal.NewFromInt(2))
	s.Require().NoError(err)
	s.Equal("47.20", q.TotalPrice.StringFixed(2))
	s.Equal("36.00", q.ProfessionalEarnings.StringFixed(2))
	s.True(q.TaxPercentage.Equal(decimal.NewFromInt(8)))
}

func (s *PricingSuite) TestQuoteErrors() {
	client := repo.User{ID: uuid.New(), Role: repo.RoleClient}
	s.store.PutUser(client)
	noRate := repo.User{ID: uuid.New(), Role: repo.RoleProfessional}
	s.store.PutUser(noRate)

	_, err := s.svc.Quote(s.ctx, uuid.New(), decimal.NewFromInt(1))
	s.ErrorIs(err, ErrProfessionalNotFound)

	_, err = s.svc.Quote(s.ctx, client.ID, decimal.NewFromInt(1))
	s.ErrorIs(err, ErrProfessionalNotFound)

	_, err = s.svc.Quote(s.ctx, noRate.ID, decimal.NewFromInt(1))
	s.ErrorIs(err, ErrRateNotSet)

	_, err = s.svc.Quote(s.ctx, s.pro.ID, decimal.Zero)
	s.ErrorIs(err, ErrInvalidDuration)
}

func (s *PricingSuite) TestConfigIsCachedAndInvalidated() {
	_, err := s.svc.CurrentConfig(s.ctx)
	s.Require().NoError(err)
	s.Contains(s.cache.values, cacheKeyLatest)

	_, err = s.svc.SetConfig(s.ctx, s.admin, FeeConfig{
		TaxPercentage:         decimal.NewFromInt(5),
		PlatformFeePercentage: decimal.NewFromInt(15),
	})
	s.Require().NoError(err)
	s.NotContains(s.cache.values, cacheKeyLatest, "admin write must drop the cached snapshot")

	cfg, err := s.svc.CurrentConfig(s.ctx)
	s.Require().NoError(err)
	s.True(cfg.TaxPercentage.Equal(decimal.NewFromInt(5)))
	s.True(cfg.PlatformFeePercentage.Equal(decimal.NewFromInt(15)))

	q, err := s.svc.Quote(s.ctx, s.pro.ID, decimal.NewFromInt(2))
	s.Require().NoError(err)
	s.Equal("48.00", q.TotalPrice.StringFixed(2))
	s.Equal("34.00", q.ProfessionalEarnings.StringFixed(2))
}

func (s *PricingSuite) TestSetConfigRequiresAdmin() {
	_, err := s.svc.SetConfig(s.ctx, actor.Actor{UserID: s.pro.ID, Role: repo.RoleProfessional}, DefaultFeeConfig())
	s.ErrorIs(err, ErrForbidden)

	_, err = s.svc.SetConfig(s.ctx, s.admin, FeeConfig{
		TaxPercentage:         decimal.NewFromInt(101),
		PlatformFeePercentage: decimal.NewFromInt(10),
	})
	s.ErrorIs(err, ErrInvalidPercentage)
}

func TestQuoteWithoutCache(t *testing.T) {
	store := repotest.New()
	pro := repo.User{ID: uuid.New(), Role: repo.RoleProfessional, HourlyRate: decimal.NewNullDecimal(decimal.NewFromInt(20))}
	store.PutUser(pro)

	svc := New(store, nil, config.PricingConfig{})
	q, err := svc.Quote(context.Background(), pro.ID, decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "47.20", q.TotalPrice.StringFixed(2))
}

func percent(v float64) *float64 { return &v }

func TestQuoteWithZeroDefaults(t *testing.T) {
	store := repotest.New()
	pro := repo.User{ID: uuid.New(), Role: repo.RoleProfessional, HourlyRate: decimal.NewNullDecimal(decimal.NewFromInt(20))}
	store.PutUser(pro)

	svc := New(store, nil, config.PricingConfig{DefaultTaxPercentage: percent(0), DefaultPlatformFeePercentage: percent(0)})
	q, err := svc.Quote(context.Background(), pro.ID, decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "40.00", q.TotalPrice.StringFixed(2))
	assert.True(t, q.TaxAmount.IsZero())
	assert.True(t, q.PlatformFee.IsZero())
	assert.Equal(t, "40.00", q.ProfessionalEarnings.StringFixed(2))
}
