package authorize

import (
	"context"
	"errors"
	"fmt"

	casbin "github.com/casbin/casbin/v2"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidArgs = errors.New("invalid authorization arguments")
)

// IAuthorization is the RBAC surface the services and middleware use.
// Policies are rows of (role, domain, resource, action, effect); role
// assignments are rows of (subject, role, domain).
type IAuthorization interface {
	Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error)
	// MustEnforce returns ErrForbidden instead of false.
	MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error

	AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error)

	AddPermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error)
	RemovePermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error)
}

type Option func(*Authorization)

// SuperAdminBypass short-circuits Enforce for holders of the sys SuperAdmin
// role. It is on by default.
func SuperAdminBypass(enabled bool) Option {
	return func(a *Authorization) { a.bypass = enabled }
}

// Authorization checks arguments against the known constants before handing
// them to casbin.
type Authorization struct {
	enforcer *casbin.DistributedEnforcer
	bypass   bool
}

// NewAuthorization loads the current policy into e and wraps it.
func NewAuthorization(e *casbin.DistributedEnforcer, opts ...Option) (IAuthorization, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: enforcer is nil", ErrInvalidArgs)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	a := &Authorization{enforcer: e, bypass: true}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Argument checks
// ---------------------------------------------------------------------------

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgs}, args...)...)
}

func checkDomain(d Domain) error {
	if d == "" || !IsValidDomain(d) {
		return invalid("invalid domain: %q", d)
	}
	return nil
}

func checkResource(r Resource) error {
	if _, ok := KnownResources[r]; !ok && r != WildcardResource {
		return invalid("unknown resource: %q", r)
	}
	return nil
}

func checkAction(a Action) error {
	if _, ok := KnownActions[a]; !ok && a != WildcardAction {
		return invalid("unknown action: %q", a)
	}
	return nil
}

func checkRole(r Role) error {
	if _, ok := KnownRoles[r]; !ok && r != WildcardRole {
		return invalid("unknown role: %q", r)
	}
	return nil
}

func checkEffect(e PolicyEffect) error {
	if e != EffectAllow && e != EffectDeny {
		return invalid("invalid effect: %q", e)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Decisions
// ---------------------------------------------------------------------------

func (a *Authorization) Enforce(_ context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	if subject == "" {
		return false, invalid("subject is empty")
	}
	if err := errors.Join(checkDomain(domain), checkResource(object), checkAction(action)); err != nil {
		return false, err
	}

	if a.bypass && a.enforcer.HasGroupingPolicy(string(subject), string(RoleSysSuperAdmin), string(DomainSys)) {
		return true, nil
	}
	return a.enforcer.Enforce(string(subject), string(domain), string(object), string(action))
}

func (a *Authorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	return mustEnforce(ctx, a, subject, domain, object, action)
}

func mustEnforce(ctx context.Context, a IAuthorization, subject GroupSubject, domain Domain, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, subject, domain, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// ---------------------------------------------------------------------------
// Role assignments
// ---------------------------------------------------------------------------

func (a *Authorization) AddRoleForUserInDomain(_ context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" || role == "" {
		return false, invalid("empty subject/role")
	}
	if err := errors.Join(checkRole(role), checkDomain(domain)); err != nil {
		return false, err
	}
	return a.enforcer.AddGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) RemoveRoleForUserInDomain(_ context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" || role == "" {
		return false, invalid("empty subject/role")
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.RemoveGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) GetRolesForUserInDomain(_ context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	if subject == "" {
		return nil, invalid("subject is empty")
	}
	if err := checkDomain(domain); err != nil {
		return nil, err
	}
	names := a.enforcer.GetRolesForUserInDomain(string(subject), string(domain))
	roles := make([]Role, len(names))
	for i, n := range names {
		roles[i] = Role(n)
	}
	return roles, nil
}

// ---------------------------------------------------------------------------
// Permissions
// ---------------------------------------------------------------------------

func (a *Authorization) AddPermission(_ context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	if role == "" || object == "" || action == "" || effect == "" {
		return false, invalid("empty permission fields")
	}
	err := errors.Join(checkRole(role), checkDomain(domain), checkResource(object), checkAction(action), checkEffect(effect))
	if err != nil {
		return false, err
	}
	return a.enforcer.AddPolicy(string(role), string(domain), string(object), string(action), string(effect))
}

func (a *Authorization) RemovePermission(_ context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	if role == "" || object == "" || action == "" || effect == "" {
		return false, invalid("empty permission fields")
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.RemovePolicy(string(role), string(domain), string(object), string(action), string(effect))
}
