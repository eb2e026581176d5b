package permission

import "context"

// Role levels are totally ordered; a lower value means more privilege.
const (
	RolePlatformOwner = 1
	RoleAdmin         = 2
	RoleStaff         = 3
	RoleMember        = 4
)

type Resource string

const (
	ResourceMembers  Resource = "members"
	ResourceBilling  Resource = "billing"
	ResourceStore    Resource = "store"
	ResourceTickets  Resource = "tickets"
	ResourceTasks    Resource = "tasks"
	ResourceSessions Resource = "sessions"
	ResourceCMS      Resource = "cms"
	ResourceUsers    Resource = "users"
	ResourceTenants  Resource = "tenants"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Permission is one {resource, action} pair. Grants are additive; there is
// no subtractive grant, only the per-operation override marker.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Set is a lookup-friendly permission collection.
type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s Set) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Store reads role and grant records for a principal. Implemented by the
// user/role database; the resolver itself performs no I/O.
type Store interface {
	GetPrincipalRole(ctx context.Context, userID int64) (int, error)
	GetUserGrants(ctx context.Context, userID int64) ([]Permission, error)
}

func crud(r Resource) []Permission {
	return []Permission{
		{r, ActionRead}, {r, ActionCreate}, {r, ActionUpdate}, {r, ActionDelete},
	}
}

// roleBundles are the default permission bundles implied by each role.
// Explicit per-user grants are unioned on top.
var roleBundles = map[int][]Permission{
	RolePlatformOwner: allPermissions(),
	RoleAdmin:         allPermissions(),
	RoleStaff: concat(
		crud(ResourceMembers),
		crud(ResourceTickets),
		crud(ResourceTasks),
		crud(ResourceSessions),
		[]Permission{{ResourceStore, ActionRead}, {ResourceCMS, ActionRead}},
	),
	RoleMember: {
		{ResourceStore, ActionRead},
		{ResourceSessions, ActionRead},
		{ResourceCMS, ActionRead},
	},
}

func allPermissions() []Permission {
	resources := []Resource{
		ResourceMembers, ResourceBilling, ResourceStore, ResourceTickets,
		ResourceTasks, ResourceSessions, ResourceCMS, ResourceUsers, ResourceTenants,
	}
	var perms []Permission
	for _, r := range resources {
		perms = append(perms, crud(r)...)
		perms = append(perms, Permission{r, ActionManage})
	}
	return perms
}

func concat(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// RoleBundle returns a copy of the default bundle for the role level.
func RoleBundle(roleLevel int) []Permission {
	bundle := roleBundles[roleLevel]
	out := make([]Permission, len(bundle))
	copy(out, bundle)
	return out
}
