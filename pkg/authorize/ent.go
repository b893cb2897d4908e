package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"

	"github.com/Alijeyrad/karsaz_backend/config"
)

// PolicyChannel is the LISTEN/NOTIFY channel replicas use to announce
// policy edits.
const PolicyChannel = "karsaz_policy_update"

// policyStale is set when a watcher-triggered reload fails and cleared by
// the next successful one.
var policyStale atomic.Bool

// IsPolicyHealthy reports whether the last policy reload succeeded.
func IsPolicyHealthy() bool { return !policyStale.Load() }

type CleanupFunc func(ctx context.Context)

// NewEnforcer opens the casbin policy store in Postgres through the ent
// adapter. With sync enabled a Postgres watcher reloads the policy whenever
// another replica saves a change.
func NewEnforcer(modelPath, dsn string, sync bool) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	adapter, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin adapter: %w", err)
	}
	m, err := LoadModel(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin model: %w", err)
	}
	e, err := casbin.NewDistributedEnforcer(m, adapter)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	if !sync {
		return e, func(context.Context) {}, nil
	}

	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
		Channel: PolicyChannel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("casbin watcher: %w", err)
	}
	err = w.SetUpdateCallback(func(msg string) {
		if err := e.LoadPolicy(); err != nil {
			slog.Error("casbin: policy reload failed", "err", err)
			policyStale.Store(true)
			return
		}
		slog.Debug("casbin: policy reloaded", "notice", msg)
		policyStale.Store(false)
	})
	if err == nil {
		err = e.SetWatcher(w)
	}
	if err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("casbin watcher: %w", err)
	}

	return e, func(context.Context) {
		w.Close()
		e.StopAutoLoadPolicy()
		slog.Debug("casbin: watcher closed")
	}, nil
}

// Setup builds the enforcer for the casbin database and wraps it according
// to the authorization section of the config.
func Setup(cfg config.AuthorizationConfig, dsn string) (IAuthorization, CleanupFunc, error) {
	e, cleanup, err := NewEnforcer(cfg.CasbinModelPath, dsn, cfg.PolicySyncEnabled)
	if err != nil {
		return nil, nil, err
	}
	a, err := NewAuthorization(e, SuperAdminBypass(cfg.SuperadminBypass))
	if err != nil {
		cleanup(context.Background())
		return nil, nil, err
	}
	if cfg.EnableAudit {
		a = NewAuditedAuthorization(a, slog.Default())
	}
	return a, cleanup, nil
}
