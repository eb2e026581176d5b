package tenant

import (
	"context"

	"github.com/clubops/platform/internal"
)

// OwnerStore resolves the owning tenant of a protected resource. One
// point-read per resource type; the lookup carries the request context so a
// disconnecting caller abandons it.
type OwnerStore interface {
	GetOwningTenant(ctx context.Context, table string, resourceID int64) (*int64, error)
}

// Guard is the last line of defense against a correctly-authenticated,
// correctly-permissioned principal reaching another tenant's data through a
// crafted resource id.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// EnsureTenantScope requires the principal's tenant to equal the resource's
// owning tenant. A nil target means the operation is implicitly scoped to
// the caller's own tenant and passes. The denial is indistinguishable from a
// permission denial on the wire.
func (g *Guard) EnsureTenantScope(p *internal.Principal, targetTenantID *int64) error {
	if targetTenantID == nil {
		return nil
	}
	if p.TenantID == nil || *p.TenantID != *targetTenantID {
		return internal.ErrCrossTenantAccessDenied
	}
	return nil
}
