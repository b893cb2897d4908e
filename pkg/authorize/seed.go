package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline permission set for the marketplace roles.
// Ownership (own appointment, own payment) is checked by the services; these
// rows only decide which role may attempt an action at all.
func DefaultPolicies() []PermissionPolicy {
	sysPolicies := []PermissionPolicy{
		// SuperAdmin: god mode
		{RoleSysSuperAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		// Admin: escrow operations and user management, no RBAC edits
		{RoleSysAdmin, DomainSys, ResourceUser, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceService, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceAppointment, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceJob, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceJobApplication, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourcePayment, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceDispute, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceTaxConfig, ActionManage, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceSystem, ActionExecute, EffectAllow},
		{RoleSysAdmin, DomainSys, ResourceAudit, ActionRead, EffectAllow},
	}

	professionalPolicies := []PermissionPolicy{
		{RoleSysProfessional, DomainSys, ResourceService, ActionCreate, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceService, ActionList, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceAppointment, ActionRead, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceAppointment, ActionList, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceAppointment, ActionUpdate, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceJob, ActionRead, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceJob, ActionList, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceJobApplication, ActionCreate, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourcePayment, ActionRead, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourcePayment, ActionList, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceDispute, ActionCreate, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceDispute, ActionRead, EffectAllow},
		{RoleSysProfessional, DomainSys, ResourceTaxConfig, ActionRead, EffectAllow},
	}

	clientPolicies := []PermissionPolicy{
		{RoleSysClient, DomainSys, ResourceService, ActionList, EffectAllow},
		{RoleSysClient, DomainSys, ResourceAppointment, ActionCreate, EffectAllow},
		{RoleSysClient, DomainSys, ResourceAppointment, ActionRead, EffectAllow},
		{RoleSysClient, DomainSys, ResourceAppointment, ActionList, EffectAllow},
		{RoleSysClient, DomainSys, ResourceAppointment, ActionUpdate, EffectAllow},
		{RoleSysClient, DomainSys, ResourceJob, ActionCreate, EffectAllow},
		{RoleSysClient, DomainSys, ResourceJob, ActionRead, EffectAllow},
		{RoleSysClient, DomainSys, ResourceJob, ActionList, EffectAllow},
		{RoleSysClient, DomainSys, ResourceJob, ActionUpdate, EffectAllow},
		{RoleSysClient, DomainSys, ResourcePayment, ActionCreate, EffectAllow},
		{RoleSysClient, DomainSys, ResourcePayment, ActionRead, EffectAllow},
		{RoleSysClient, DomainSys, ResourcePayment, ActionList, EffectAllow},
		{RoleSysClient, DomainSys, ResourcePayment, ActionApprove, EffectAllow},
		{RoleSysClient, DomainSys, ResourcePayment, ActionUpdate, EffectAllow},
		{RoleSysClient, DomainSys, ResourceDispute, ActionCreate, EffectAllow},
		{RoleSysClient, DomainSys, ResourceDispute, ActionRead, EffectAllow},
		{RoleSysClient, DomainSys, ResourceTaxConfig, ActionRead, EffectAllow},
	}

	// User-level policies (domain: user:*)
	userPolicies := []PermissionPolicy{
		{RoleUserSelf, WildcardDomain, ResourceUser, ActionManage, EffectAllow},
		{RoleUserSelf, WildcardDomain, ResourceAuthSession, ActionManage, EffectAllow},
		{RoleUserSelf, WildcardDomain, ResourceNotification, ActionManage, EffectAllow},
	}

	out := make([]PermissionPolicy, 0, len(sysPolicies)+len(professionalPolicies)+len(clientPolicies)+len(userPolicies))
	out = append(out, sysPolicies...)
	out = append(out, professionalPolicies...)
	out = append(out, clientPolicies...)
	out = append(out, userPolicies...)
	return out
}

// SeedDefaultPolicies sets up the baseline RBAC policies for the system.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	all := DefaultPolicies()
	for _, p := range all {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(all))
	return nil
}

// AssignUserSelfRole assigns the user:self role in the user's private domain.
func AssignUserSelfRole(ctx context.Context, auth IAuthorization, userID string) error {
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), RoleUserSelf, UserDomain(userID))
	return err
}

// AssignAccountRole grants the sys role matching a users.role value plus the
// user:self role. Call this when creating a user.
func AssignAccountRole(ctx context.Context, auth IAuthorization, userID, accountRole string) error {
	role, ok := AccountRoleToRBACRole[accountRole]
	if !ok {
		return fmt.Errorf("%w: unknown account role %q", ErrInvalidArgs, accountRole)
	}
	if err := AssignSystemRole(ctx, auth, userID, role); err != nil {
		return err
	}
	return AssignUserSelfRole(ctx, auth, userID)
}

// AssignSystemRole assigns a system-level role to a user.
func AssignSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	switch role {
	case RoleSysClient, RoleSysProfessional, RoleSysAdmin, RoleSysSuperAdmin:
	default:
		return ErrInvalidArgs
	}

	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}

// RemoveSystemRole removes a system-level role from a user.
func RemoveSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	_, err := auth.RemoveRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}
