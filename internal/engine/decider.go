package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/facts"
	"github.com/nidoproject/authz/internal/schema"
	"github.com/nidoproject/authz/pkg/cache"
)

// ErrUndeclaredPermission is returned when a caller asks about an action the
// resource's type never declared. This is a configuration error, distinct
// from an ordinary deny, and is never silently coerced to false.
var ErrUndeclaredPermission = errors.New("permission not declared on resource type")

// Decider is the single entry point for authorization decisions. It
// validates the (action, resource type) pair against the schema registry and
// delegates to the resolver. Denial is the normal false result; errors are
// reserved for configuration and data problems.
type Decider struct {
	registry *schema.Registry
	resolver *Resolver
	cache    cache.Cache   // Optional cache for decisions
	cacheTTL time.Duration // TTL for cached decisions
}

// Decision is the result of a traced decision.
type Decision struct {
	Allowed bool
	// Trace lists the clause heads satisfied on the successful derivation
	// path, innermost first. Empty when the decision is a deny.
	Trace []TraceStep
}

// NewDecider creates a Decider without caching.
func NewDecider(registry *schema.Registry, resolver *Resolver) *Decider {
	return &Decider{
		registry: registry,
		resolver: resolver,
	}
}

// NewDeciderWithCache creates a Decider that caches decisions for ttl.
// Caching trades staleness for speed: a cached allow can outlive the facts
// it was derived from by up to ttl, so hosts whose fact data changes must
// pick a TTL they can tolerate.
func NewDeciderWithCache(registry *schema.Registry, resolver *Resolver, c cache.Cache, ttl time.Duration) *Decider {
	return &Decider{
		registry: registry,
		resolver: resolver,
		cache:    c,
		cacheTTL: ttl,
	}
}

// Allow reports whether the actor may perform the action on the resource.
func (d *Decider) Allow(ctx context.Context, actor facts.Entity, action string, resource facts.Entity) (bool, error) {
	allowed, _, err := d.decide(ctx, actor, action, resource, false)
	return allowed, err
}

// AllowWithTrace is Allow plus the successful derivation path for audit
// logging. Traced decisions bypass the cache.
func (d *Decider) AllowWithTrace(ctx context.Context, actor facts.Entity, action string, resource facts.Entity) (*Decision, error) {
	allowed, steps, err := d.decide(ctx, actor, action, resource, true)
	if err != nil {
		return nil, err
	}
	return &Decision{Allowed: allowed, Trace: steps}, nil
}

func (d *Decider) decide(ctx context.Context, actor facts.Entity, action string, resource facts.Entity, traced bool) (bool, []TraceStep, error) {
	if actor == nil || resource == nil {
		return false, nil, fmt.Errorf("actor and resource are required")
	}

	resourceType, err := d.registry.Lookup(resource.TypeName())
	if err != nil {
		return false, nil, err
	}
	if !resourceType.HasPermission(action) {
		return false, nil, fmt.Errorf("action %q on resource type %q: %w", action, resourceType.Name, ErrUndeclaredPermission)
	}

	useCache := d.cache != nil && !traced
	var cacheKey string
	if useCache {
		cacheKey = d.decisionKey(actor, action, resource)
		if cached, found := d.cache.Get(ctx, cacheKey); found {
			if allowed, ok := cached.(bool); ok {
				return allowed, nil, nil
			}
		}
	}

	var tr *trace
	if traced {
		tr = &trace{}
	}
	allowed, err := d.resolver.resolve(ctx, entities.FamilyPermission, actor, action, resource, make(callStack), tr)
	if err != nil {
		return false, nil, err
	}

	if useCache {
		_ = d.cache.Set(ctx, cacheKey, allowed, d.cacheTTL)
	}

	if tr != nil {
		return allowed, tr.steps, nil
	}
	return allowed, nil, nil
}

// decisionKey hashes the decision coordinates into a fixed-size cache key.
func (d *Decider) decisionKey(actor facts.Entity, action string, resource facts.Entity) string {
	keyData := fmt.Sprintf("%s:%s:%s:%s:%s",
		actor.TypeName(),
		actor.ID(),
		action,
		resource.TypeName(),
		resource.ID(),
	)
	hash := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(hash[:])
}
