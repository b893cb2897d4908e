// Package redis connects to Redis and provides the distributed locks that
// serialize payment state changes and the auto-complete sweep.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/karsaz_backend/config"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultDialTimeout  = 5 * time.Second
	defaultIOTimeout    = 3 * time.Second
)

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func orDefault(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

// Options maps the redis section of the central config onto client options.
func Options(cfg config.RedisConfig) (*goredis.Options, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	return &goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     orDefault(cfg.PoolSize, defaultPoolSize),
		MinIdleConns: orDefault(cfg.MinIdleConns, defaultMinIdleConns),
		DialTimeout:  seconds(cfg.DialTimeoutSeconds, defaultDialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeoutSeconds, defaultIOTimeout),
		WriteTimeout: seconds(cfg.WriteTimeoutSeconds, defaultIOTimeout),
	}, nil
}

// New connects and pings. The client is closed again when the ping fails.
func New(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
