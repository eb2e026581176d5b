package authz

import (
	"fmt"
	"sort"

	"github.com/clubops/platform/internal/permission"
	"github.com/clubops/platform/internal/subscription"
)

// Override replaces — never augments — the permissions and roles that would
// otherwise be inferred from the operation's declared resource/action. It
// exists so a handler whose inferred requirement is misleading can state its
// true one.
type Override struct {
	Permissions []permission.Permission
	Roles       []int
}

// Policy is the declarative authorization metadata for one protected
// operation, the moral equivalent of route attributes.
type Policy struct {
	Resource permission.Resource
	Action   permission.Action

	RequiredRoles    []int
	RequiredFeatures []subscription.Feature

	// SkipPermissions passes the permission stage unconditionally; used for
	// endpoints any authenticated principal may call.
	SkipPermissions bool
	// SkipModuleCheck bypasses subscription gating, for routes with no
	// tenant or universally available resources.
	SkipModuleCheck bool
	// SkipBusinessCheck bypasses tenant scoping; reserved for platform
	// owner/admin cross-tenant operations and tenantless principals.
	SkipBusinessCheck bool

	Override *Override
}

// requirements resolves override precedence: exactly one of the declared
// resource/action or the override applies, and override wins.
func (p Policy) requirements() ([]permission.Permission, []int) {
	if p.Override != nil {
		return p.Override.Permissions, p.Override.Roles
	}
	var perms []permission.Permission
	if p.Resource != "" && p.Action != "" {
		perms = []permission.Permission{{Resource: p.Resource, Action: p.Action}}
	}
	return perms, p.RequiredRoles
}

// Registry maps operation identifiers to policies. Built once at startup so
// the whole authorization matrix is auditable as one table.
type Registry struct {
	policies map[string]Policy
}

func NewRegistry(policies map[string]Policy) *Registry {
	reg := &Registry{policies: make(map[string]Policy, len(policies))}
	for op, p := range policies {
		reg.policies[op] = p
	}
	return reg
}

func (r *Registry) Lookup(operation string) (Policy, error) {
	p, ok := r.policies[operation]
	if !ok {
		return Policy{}, fmt.Errorf("no policy registered for operation %q", operation)
	}
	return p, nil
}

// Operations lists registered operation names, sorted, for audit output.
func (r *Registry) Operations() []string {
	ops := make([]string, 0, len(r.policies))
	for op := range r.policies {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
