package authz

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/core/events"
	"github.com/clubops/platform/internal/obs"
	"github.com/clubops/platform/internal/permission"
	"github.com/clubops/platform/internal/subscription"
)

// Pipeline stage names used for audit logs and metrics. Never sent to the
// client.
const (
	StageIdentity    = "identity"
	StagePermission  = "permission"
	StageModule      = "module"
	StageTenantScope = "tenant_scope"
)

// IdentityResolver turns a raw bearer token into a Principal. Pure
// verification, no I/O.
type IdentityResolver interface {
	Resolve(rawToken string) (*internal.Principal, error)
}

// PermissionLoader fetches a principal's effective and explicit permission
// sets.
type PermissionLoader interface {
	Load(ctx context.Context, p *internal.Principal) (effective permission.Set, grants permission.Set, err error)
}

// ModuleGate checks subscription entitlement for required feature modules.
type ModuleGate interface {
	CheckModules(ctx context.Context, tenantID *int64, required []subscription.Feature) error
}

// ScopeGuard enforces tenant isolation.
type ScopeGuard interface {
	EnsureTenantScope(p *internal.Principal, targetTenantID *int64) error
}

// TargetResolver loads the owning tenant of the operation's target resource.
// nil means the operation has no explicit target and is implicitly scoped to
// the caller's own tenant.
type TargetResolver func(ctx context.Context) (*int64, error)

// Pipeline applies the authorization stages in fixed order — identity,
// permission, module entitlement, tenant scope — short-circuiting on the
// first failure. Identity must come first; permission precedes module so an
// unauthorized caller never learns which modules a tenant has purchased;
// tenant scope runs last because the owner lookup is the most expensive
// step.
type Pipeline struct {
	registry    *Registry
	identity    IdentityResolver
	permissions PermissionLoader
	gate        ModuleGate
	guard       ScopeGuard
	bus         *events.EventBus
	logger      *slog.Logger

	lookupTimeout time.Duration
}

func NewPipeline(
	registry *Registry,
	identity IdentityResolver,
	permissions PermissionLoader,
	gate ModuleGate,
	guard ScopeGuard,
	bus *events.EventBus,
	logger *slog.Logger,
	lookupTimeout time.Duration,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if lookupTimeout <= 0 {
		lookupTimeout = internal.DefaultLookupTimeout
	}
	return &Pipeline{
		registry:      registry,
		identity:      identity,
		permissions:   permissions,
		gate:          gate,
		guard:         guard,
		bus:           bus,
		logger:        logger,
		lookupTimeout: lookupTimeout,
	}
}

// Authorize evaluates the full pipeline for one operation and returns the
// resolved principal on success. Every denial is logged with the principal,
// operation, and failing stage; the returned error carries only what the
// caller needs to act on.
func (pl *Pipeline) Authorize(ctx context.Context, rawToken, operation string, target TargetResolver) (*internal.Principal, error) {
	policy, err := pl.registry.Lookup(operation)
	if err != nil {
		return nil, internal.NewInternalError("unknown operation", err)
	}

	principal, err := pl.identity.Resolve(rawToken)
	if err != nil {
		pl.deny(ctx, nil, operation, StageIdentity, err)
		return nil, internal.ErrUnauthenticated
	}

	if err := pl.checkPermission(ctx, principal, policy); err != nil {
		pl.deny(ctx, principal, operation, StagePermission, err)
		return nil, err
	}

	if !policy.SkipModuleCheck {
		moduleCtx, cancel := internal.WithTimeout(ctx, pl.lookupTimeout)
		err := pl.gate.CheckModules(moduleCtx, principal.TenantID, policy.RequiredFeatures)
		cancel()
		if err != nil {
			pl.deny(ctx, principal, operation, StageModule, err)
			return nil, err
		}
	}

	if !policy.SkipBusinessCheck {
		if err := pl.checkTenantScope(ctx, principal, target); err != nil {
			pl.deny(ctx, principal, operation, StageTenantScope, err)
			return nil, err
		}
	}

	obs.RecordCheck(operation, "allow")
	return principal, nil
}

func (pl *Pipeline) checkPermission(ctx context.Context, principal *internal.Principal, policy Policy) error {
	if policy.SkipPermissions {
		return nil
	}

	required, requiredRoles := policy.requirements()

	loadCtx, cancel := internal.WithTimeout(ctx, pl.lookupTimeout)
	effective, _, err := pl.permissions.Load(loadCtx, principal)
	cancel()
	if err != nil {
		return internal.ErrDependencyUnavailable.WithCause(err)
	}

	if !permission.Authorize(principal, required, requiredRoles, effective) {
		return internal.ErrForbidden
	}
	return nil
}

func (pl *Pipeline) checkTenantScope(ctx context.Context, principal *internal.Principal, target TargetResolver) error {
	var targetTenant *int64
	if target != nil {
		lookupCtx, cancel := internal.WithTimeout(ctx, pl.lookupTimeout)
		resolved, err := target(lookupCtx)
		cancel()
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// A missing resource is reported exactly like a scope
				// denial so probing ids reveals nothing.
				return internal.ErrCrossTenantAccessDenied
			}
			return internal.ErrDependencyUnavailable.WithCause(err)
		}
		targetTenant = resolved
	}
	return pl.guard.EnsureTenantScope(principal, targetTenant)
}

func (pl *Pipeline) deny(ctx context.Context, principal *internal.Principal, operation, stage string, err error) {
	var userID int64
	if principal != nil {
		userID = principal.UserID
	}

	pl.logger.WarnContext(ctx, "authorization denied",
		"user_id", userID,
		"operation", operation,
		"stage", stage,
		"error", err)

	obs.RecordCheck(operation, "deny")
	obs.RecordDenial(stage)

	if pl.bus != nil {
		pl.bus.Publish(ctx, events.NewAccessDeniedEvent(userID, operation, stage))
	}
}
