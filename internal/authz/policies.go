package authz

import (
	"github.com/clubops/platform/internal/permission"
	"github.com/clubops/platform/internal/subscription"
)

// Operation identifiers referenced by both the route table and the policy
// registry. One constant per protected endpoint.
const (
	OpAuthLogout       = "auth.logout"
	OpAuthLogoutAll    = "auth.logout_all"
	OpAuthRevokeDevice = "auth.revoke_device"

	OpUsersMe = "users.me"

	OpMembersList         = "members.list"
	OpMembersCreate       = "members.create"
	OpMembersGet          = "members.get"
	OpMembersUpdate       = "members.update"
	OpMembersUpdateStatus = "members.update_status"
)

// DefaultPolicies is the authorization matrix for every protected operation.
// Declared in one place so review means reading one table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		// Session management needs a valid session and nothing else.
		OpAuthLogout: {
			SkipPermissions:   true,
			SkipModuleCheck:   true,
			SkipBusinessCheck: true,
		},
		OpAuthLogoutAll: {
			SkipPermissions:   true,
			SkipModuleCheck:   true,
			SkipBusinessCheck: true,
		},
		OpAuthRevokeDevice: {
			SkipPermissions:   true,
			SkipModuleCheck:   true,
			SkipBusinessCheck: true,
		},

		OpUsersMe: {
			SkipPermissions:   true,
			SkipModuleCheck:   true,
			SkipBusinessCheck: true,
		},

		OpMembersList: {
			Resource:         permission.ResourceMembers,
			Action:           permission.ActionRead,
			RequiredFeatures: []subscription.Feature{subscription.FeatureMembers},
		},
		OpMembersCreate: {
			Resource:         permission.ResourceMembers,
			Action:           permission.ActionCreate,
			RequiredFeatures: []subscription.Feature{subscription.FeatureMembers},
		},
		OpMembersGet: {
			Resource:         permission.ResourceMembers,
			Action:           permission.ActionRead,
			RequiredFeatures: []subscription.Feature{subscription.FeatureMembers},
		},
		OpMembersUpdate: {
			Resource:         permission.ResourceMembers,
			Action:           permission.ActionUpdate,
			RequiredFeatures: []subscription.Feature{subscription.FeatureMembers},
		},
		// Status changes are an admin call even though they ride the same
		// update permission on paper.
		OpMembersUpdateStatus: {
			Resource:         permission.ResourceMembers,
			Action:           permission.ActionUpdate,
			RequiredFeatures: []subscription.Feature{subscription.FeatureMembers},
			Override: &Override{
				Permissions: []permission.Permission{{Resource: permission.ResourceMembers, Action: permission.ActionManage}},
				Roles:       []int{permission.RoleAdmin},
			},
		},
	}
}

// DefaultRegistry builds the registry used by the HTTP server.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultPolicies())
}
