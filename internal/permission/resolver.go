package permission

import (
	"context"

	"github.com/clubops/platform/internal"
)

// Resolver computes effective permission sets and evaluates authorization
// decisions. Authorize is stateless given a resolved principal and a loaded
// set; the only I/O lives in Load.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Load fetches the principal's explicit grants and returns the effective
// set (role-default bundle union grants) plus the raw grant set, which
// override-free checks need separately: a role bundle never satisfies an
// explicit-grant branch on its own role floor.
func (r *Resolver) Load(ctx context.Context, p *internal.Principal) (effective Set, grants Set, err error) {
	userGrants, err := r.store.GetUserGrants(ctx, p.UserID)
	if err != nil {
		return nil, nil, err
	}

	grants = NewSet(userGrants...)
	effective = NewSet(RoleBundle(p.RoleLevel)...)
	effective.Add(userGrants...)
	return effective, grants, nil
}

// EffectivePermissions is the role-default bundle union the user's explicit
// grants.
func (r *Resolver) EffectivePermissions(ctx context.Context, p *internal.Principal) (Set, error) {
	effective, _, err := r.Load(ctx, p)
	return effective, err
}

// Authorize grants access iff the principal's role level is numerically at
// or below the smallest permitted role level (lower value = more privilege)
// OR every required {resource, action} pair is in the effective set. The two
// branches are OR-ed: an explicit per-user grant can unlock an action the
// role alone would not allow.
func Authorize(p *internal.Principal, required []Permission, requiredRoles []int, effective Set) bool {
	if roleSatisfied(p.RoleLevel, requiredRoles) {
		return true
	}
	if len(required) == 0 {
		return false
	}
	for _, perm := range required {
		if !effective.Has(perm) {
			return false
		}
	}
	return true
}

func roleSatisfied(roleLevel int, requiredRoles []int) bool {
	if len(requiredRoles) == 0 {
		return false
	}
	floor := requiredRoles[0]
	for _, r := range requiredRoles[1:] {
		if r < floor {
			floor = r
		}
	}
	return roleLevel <= floor
}
