// Package routing decides, once per donation, which credential source pays
// out: a tenant's own gateway wallet or the platform default.
package routing

import (
	"context"
	"time"

	"donorplane/services/event"
	"donorplane/services/tenant"
	"donorplane/services/vault"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Recipient kinds understood by the engine. Anything else routes to the
// platform default as the safe choice.
const (
	RecipientPlatform   = "platform"
	RecipientEvent      = "event"
	RecipientDepartment = "department"
)

// DonationContext describes who a donation is for.
type DonationContext struct {
	RecipientKind string `json:"recipient_kind"`
	EventID       string `json:"event_id,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
}

// Decision carries the chosen credentials. TenantID is nil exactly when the
// platform default was chosen, which downstream uses to pick the matching
// webhook secret.
type Decision struct {
	Config   *vault.ClientConfig
	TenantID *string
}

type Engine struct {
	resolver *vault.Resolver
	tenants  *tenant.Service
	events   *event.Service
	cache    *routeCache
}

type EngineParams struct {
	fx.In
	Resolver *vault.Resolver
	Tenants  *tenant.Service
	Events   *event.Service
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		resolver: p.Resolver,
		tenants:  p.Tenants,
		events:   p.Events,
		cache:    newRouteCache(time.Minute),
	}
}

// Route picks the credential source for one donation.
//
// Tenants named explicitly (department routing, or an event whose creator
// qualifies) must either work or visibly fail: wallet-not-found and
// wallet-inactive propagate. Only the event-creator qualification check
// falls back silently, because events are commonly created by actors with
// no organization tenant at all.
func (e *Engine) Route(ctx context.Context, dc DonationContext) (*Decision, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("recipient_kind", dc.RecipientKind),
	)

	switch dc.RecipientKind {
	case RecipientEvent:
		tenantID, err := e.eventTenant(ctx, dc.EventID)
		if err != nil {
			return nil, err
		}
		if tenantID == nil {
			zapLog.Debug("event has no qualifying organization, using platform credentials",
				zap.String("event_id", dc.EventID))
			return e.platform()
		}

		cfg, err := e.resolver.ResolveTenant(ctx, *tenantID)
		if err != nil {
			zapLog.Warn("event-routed tenant wallet unusable",
				zap.String("event_id", dc.EventID), zap.Stringp("tenant_id", tenantID), zap.Error(err))
			return nil, err
		}
		return &Decision{Config: cfg, TenantID: tenantID}, nil

	case RecipientDepartment:
		cfg, err := e.resolver.ResolveTenant(ctx, dc.TenantID)
		if err != nil {
			zapLog.Warn("department-routed tenant wallet unusable",
				zap.String("tenant_id", dc.TenantID), zap.Error(err))
			return nil, err
		}
		tenantID := dc.TenantID
		return &Decision{Config: cfg, TenantID: &tenantID}, nil

	default:
		return e.platform()
	}
}

func (e *Engine) platform() (*Decision, error) {
	cfg, err := e.resolver.ResolvePlatformDefault()
	if err != nil {
		return nil, err
	}
	return &Decision{Config: cfg}, nil
}

// eventTenant resolves the qualifying organization tenant behind an event,
// or nil when the event is missing or its creator lacks the organization
// role. Lookups are cached briefly and deduplicated under load.
func (e *Engine) eventTenant(ctx context.Context, eventID string) (*string, error) {
	if eventID == "" {
		return nil, nil
	}

	if cached, ok := e.cache.Get(eventID); ok {
		return cached.TenantID, nil
	}

	v, err, _ := e.cache.group.Do(eventID, func() (interface{}, error) {
		ev, err := e.events.GetEvent(ctx, eventID)
		if err != nil {
			return nil, err
		}

		route := &eventRoute{UpdatedAt: time.Now()}
		if ev != nil && ev.CreatedBy != nil {
			// absence and a failed lookup are different outcomes: a missing
			// or unqualified creator falls through to platform, an
			// infrastructure error propagates and is never cached
			creator, err := e.tenants.FindTenant(ctx, *ev.CreatedBy)
			if err != nil {
				return nil, err
			}
			if creator != nil && creator.HasRole(tenant.RoleOrganization) {
				route.TenantID = ev.CreatedBy
			}
		}

		e.cache.Set(eventID, route)
		return route, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*eventRoute).TenantID, nil
}

var Module = fx.Module("routing.module",
	fx.Provide(
		NewEngine,
	),
)
