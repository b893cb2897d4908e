package authorize

import (
	"context"
	"log/slog"
	"time"
)

// AuditedAuthorization logs every decision and every policy change through
// the context-aware slog API, so entries carry the request id and user of
// the call that caused them.
type AuditedAuthorization struct {
	inner  IAuthorization
	logger *slog.Logger
}

func NewAuditedAuthorization(inner IAuthorization, logger *slog.Logger) IAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedAuthorization{inner: inner, logger: logger}
}

// decisionLevel keeps routine grants out of info logs.
func decisionLevel(allowed bool, err error) slog.Level {
	switch {
	case err != nil:
		return slog.LevelError
	case !allowed:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

func (a *AuditedAuthorization) Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	start := time.Now()
	allowed, err := a.inner.Enforce(ctx, subject, domain, object, action)

	attrs := []slog.Attr{
		slog.String("subject", string(subject)),
		slog.String("domain", string(domain)),
		slog.String("resource", string(object)),
		slog.String("action", string(action)),
		slog.Bool("allowed", allowed),
		slog.Duration("took", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("err", err))
	}
	a.logger.LogAttrs(ctx, decisionLevel(allowed, err), "authz decision", attrs...)
	return allowed, err
}

func (a *AuditedAuthorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	return mustEnforce(ctx, a, subject, domain, object, action)
}

func (a *AuditedAuthorization) change(ctx context.Context, op string, changed bool, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("op", op), slog.Bool("changed", changed))
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.Any("err", err))
	}
	a.logger.LogAttrs(ctx, level, "authz policy change", attrs...)
}

func grouping(subject GroupSubject, role Role, domain Domain) []slog.Attr {
	return []slog.Attr{
		slog.String("subject", string(subject)),
		slog.String("role", string(role)),
		slog.String("domain", string(domain)),
	}
}

func permission(role Role, domain Domain, object Resource, action Action, effect PolicyEffect) []slog.Attr {
	return []slog.Attr{
		slog.String("role", string(role)),
		slog.String("domain", string(domain)),
		slog.String("resource", string(object)),
		slog.String("action", string(action)),
		slog.String("effect", string(effect)),
	}
}

func (a *AuditedAuthorization) AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	ok, err := a.inner.AddRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "add_role", ok, err, grouping(subject, role, domain)...)
	return ok, err
}

func (a *AuditedAuthorization) RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	ok, err := a.inner.RemoveRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "remove_role", ok, err, grouping(subject, role, domain)...)
	return ok, err
}

func (a *AuditedAuthorization) GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	return a.inner.GetRolesForUserInDomain(ctx, subject, domain)
}

func (a *AuditedAuthorization) AddPermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	ok, err := a.inner.AddPermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "add_permission", ok, err, permission(role, domain, object, action, effect)...)
	return ok, err
}

func (a *AuditedAuthorization) RemovePermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	ok, err := a.inner.RemovePermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "remove_permission", ok, err, permission(role, domain, object, action, effect)...)
	return ok, err
}
