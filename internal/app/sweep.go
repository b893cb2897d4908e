package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/service/appointment"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
	redispkg "github.com/Alijeyrad/karsaz_backend/pkg/redis"
)

const (
	defaultSweepInterval   = 15 * time.Minute
	sweepRunTimeoutDivisor = 2
)

// SweepModule periodically completes Confirmed appointments whose end time
// has passed. Only one replica runs a given tick.
var SweepModule = fx.Module("sweep",
	fx.Invoke(RegisterSweep),
)

type completer interface {
	AutoComplete(ctx context.Context, now time.Time) (int, error)
}

type tryLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type SweepParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Svc    appointment.Service
	Locker *redispkg.Locker
}

func sweepInterval(cfg config.SweepConfig) time.Duration {
	if cfg.IntervalMinutes <= 0 {
		return defaultSweepInterval
	}
	return time.Duration(cfg.IntervalMinutes) * time.Minute
}

func RegisterSweep(p SweepParams) {
	if !p.Cfg.Sweep.Enabled {
		slog.Info("sweep: disabled")
		return
	}
	interval := sweepInterval(p.Cfg.Sweep)

	var cancel context.CancelFunc
	done := make(chan struct{})

	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case now := <-ticker.C:
						runCtx, stop := context.WithTimeout(ctx, interval/sweepRunTimeoutDivisor)
						_, _ = RunSweep(runCtx, p.Svc, p.Locker, now, interval)
						stop()
					}
				}
			}()
			slog.Info("sweep: started", "interval", interval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// RunSweep performs one auto-complete pass. A lock held by another replica
// is not an error; the pass is skipped and reports zero.
func RunSweep(ctx context.Context, svc completer, locker tryLocker, now time.Time, ttl time.Duration) (n int, err error) {
	unlock, err := locker.TryLock(ctx, constants.RedisSweepLockKey, ttl)
	if err != nil {
		if errors.Is(err, redispkg.ErrLockHeld) {
			slog.Debug("sweep: lock held elsewhere, skipping")
			return 0, nil
		}
		slog.Warn("sweep: acquire lock failed", "err", err)
		return 0, err
	}
	defer unlock()

	n, err = svc.AutoComplete(ctx, now)
	if err != nil {
		slog.Error("sweep: auto-complete failed", "err", err)
		return n, err
	}
	if n > 0 {
		slog.Info("sweep: appointments completed", "count", n)
	}
	return n, nil
}
