package authorize

import (
	"fmt"
	"regexp"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	// Power actions
	ActionManage  Action = "manage"  // CRUD + list
	ActionExecute Action = "execute" // run, trigger, sweep, etc.

	// Escrow actions
	ActionApprove Action = "approve"
	ActionRelease Action = "release"
	ActionRefund  Action = "refund"
	ActionResolve Action = "resolve"

	// RBAC-specific actions
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionManage: {}, ActionExecute: {},
	ActionApprove: {}, ActionRelease: {}, ActionRefund: {}, ActionResolve: {},
	ActionGrant: {}, ActionRevoke: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	// Identity / auth
	ResourceUser        Resource = "user"
	ResourceAuthSession Resource = "auth_session"

	// Marketplace
	ResourceService        Resource = "service"
	ResourceAppointment    Resource = "appointment"
	ResourceJob            Resource = "job"
	ResourceJobApplication Resource = "job_application"

	// Escrow
	ResourcePayment   Resource = "payment"
	ResourceDispute   Resource = "dispute"
	ResourceTaxConfig Resource = "tax_config"

	// Communication
	ResourceNotification Resource = "notification"

	// System / platform admin
	ResourceSystem Resource = "system"
	ResourceAudit  Resource = "audit"
	ResourceRBAC   Resource = "rbac"
)

var KnownResources = map[Resource]struct{}{
	ResourceUser: {}, ResourceAuthSession: {},
	ResourceService: {}, ResourceAppointment: {}, ResourceJob: {}, ResourceJobApplication: {},
	ResourcePayment: {}, ResourceDispute: {}, ResourceTaxConfig: {},
	ResourceNotification: {},
	ResourceSystem: {}, ResourceAudit: {}, ResourceRBAC: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// These are the "policy subjects" we assign to users via grouping policies.

const (
	WildcardRole Role = "*"

	// Platform roles (domain = sys)
	RoleSysSuperAdmin   Role = "role:sys:superadmin"
	RoleSysAdmin        Role = "role:sys:admin"
	RoleSysProfessional Role = "role:sys:professional"
	RoleSysClient       Role = "role:sys:client"

	// Private user scope (domain = user:<uuid>)
	RoleUserSelf Role = "role:user:self"
)

var KnownRoles = map[Role]struct{}{
	RoleSysSuperAdmin:   {},
	RoleSysAdmin:        {},
	RoleSysProfessional: {},
	RoleSysClient:       {},
	RoleUserSelf:        {},
}

var RoleDisplayNames = map[Role]string{
	RoleSysSuperAdmin:   "Super Admin",
	RoleSysAdmin:        "Admin",
	RoleSysProfessional: "Professional",
	RoleSysClient:       "Client",
	RoleUserSelf:        "Self",
}

// Account role strings as stored in users.role.
const (
	AccountRoleClient       = "Client"
	AccountRoleProfessional = "Professional"
	AccountRoleAdmin        = "Admin"
	AccountRoleSuperAdmin   = "SuperAdmin"
)

// AccountRoleToRBACRole maps users.role values to Casbin roles in the sys domain.
var AccountRoleToRBACRole = map[string]Role{
	AccountRoleClient:       RoleSysClient,
	AccountRoleProfessional: RoleSysProfessional,
	AccountRoleAdmin:        RoleSysAdmin,
	AccountRoleSuperAdmin:   RoleSysSuperAdmin,
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"
)

const (
	DomainPrefixUser Domain = "user:"
)

const (
	WildcardDomain Domain = "*"
)

var (
	reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

func UserDomain(userID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixUser, userID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}

	s := string(d)
	if len(s) > len(DomainPrefixUser) && s[:len(DomainPrefixUser)] == string(DomainPrefixUser) {
		return reUUID.MatchString(s[len(DomainPrefixUser):])
	}
	return false
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// PolicySubject is the p.sub in Casbin: either a role (preferred) or a user/service id.
type PolicySubject string

// GroupSubject is the g.sub in Casbin: a concrete principal id (user_id or service_id).
type GroupSubject string

// Grouping rows: g, user_id, role, domain
type GroupingPolicy struct {
	Subject GroupSubject
	Role    Role
	Domain  Domain
}

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
