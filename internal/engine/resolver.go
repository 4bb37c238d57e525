package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/facts"
	"github.com/nidoproject/authz/internal/rules"
)

// Resolver performs backward-chained, depth-first evaluation of
// has_relation / has_role / has_permission queries against the rule base
// and the fact accessor.
//
// Clauses for the same head are alternatives tried in registration order
// with short-circuit OR; conditions within a body are a conjunction
// evaluated left to right. Membership conditions backtrack over collection
// elements in the collection's own order. A query already in progress on
// the active call path fails closed instead of looping.
//
// A Resolver holds no mutable state across calls and is safe for
// concurrent use.
type Resolver struct {
	rules    *rules.RuleBase
	accessor facts.Accessor
	cel      *CELEngine
}

// NewResolver creates a resolver over a rule base and a fact accessor.
func NewResolver(rb *rules.RuleBase, accessor facts.Accessor) *Resolver {
	return &Resolver{
		rules:    rb,
		accessor: accessor,
		cel:      NewCELEngine(),
	}
}

// Resolve answers a single has_relation/has_role/has_permission query.
// Absence of a satisfying clause is the normal false result, not an error;
// errors are reserved for malformed clauses and fact accessor failures,
// which abort the whole query (fail closed).
func (r *Resolver) Resolve(ctx context.Context, family entities.Family, actor facts.Entity, name string, resource facts.Entity) (bool, error) {
	return r.resolve(ctx, family, actor, name, resource, make(callStack), nil)
}

func (r *Resolver) resolve(
	ctx context.Context,
	family entities.Family,
	actor facts.Entity,
	name string,
	resource facts.Entity,
	stack callStack,
	tr *trace,
) (bool, error) {
	if resource == nil {
		return false, nil
	}

	key := queryKey{family: family, typeName: resource.TypeName(), id: resource.ID(), name: name}
	if _, inProgress := stack[key]; inProgress {
		// Cyclic derivation: this sub-query cannot prove itself.
		return false, nil
	}
	stack[key] = struct{}{}
	defer delete(stack, key)

	for _, clause := range r.rules.ClausesFor(family, resource.TypeName(), name) {
		sub := tr.branch()
		ok, err := r.satisfy(ctx, clause.Body, newBindings(actor, resource), stack, sub)
		if err != nil {
			return false, fmt.Errorf("%s %q on %s:%s: %w", family, name, resource.TypeName(), resource.ID(), err)
		}
		if ok {
			tr.merge(sub)
			tr.record(clause, resource.ID())
			return true, nil
		}
	}
	return false, nil
}

// satisfy attempts the conditions of a clause body left to right. Membership
// recurses into the remainder of the body per candidate binding, so a later
// condition failing for one element does not rule out the next element.
func (r *Resolver) satisfy(ctx context.Context, body []entities.Condition, env bindings, stack callStack, tr *trace) (bool, error) {
	if len(body) == 0 {
		return true, nil
	}
	rest := body[1:]

	switch c := body[0].(type) {
	case *entities.LiteralPermit:
		return r.satisfy(ctx, rest, env, stack, tr)

	case *entities.Membership:
		source, err := env.entity(c.Source)
		if err != nil {
			return false, err
		}
		elements, err := r.accessor.Collection(ctx, source, c.Field)
		if err != nil {
			return false, err
		}
		for _, element := range elements {
			if element == nil {
				continue
			}
			sub := tr.branch()
			ok, err := r.satisfy(ctx, rest, env.with(c.Bind, element), stack, sub)
			if err != nil {
				return false, err
			}
			if ok {
				tr.merge(sub)
				return true, nil
			}
		}
		return false, nil

	case *entities.Reference:
		source, err := env.entity(c.Source)
		if err != nil {
			return false, err
		}
		related, err := r.accessor.Related(ctx, source, c.Field)
		if err != nil {
			return false, err
		}
		if related == nil {
			return false, nil
		}
		return r.satisfy(ctx, rest, env.with(c.Bind, related), stack, tr)

	case *entities.PatternMatch:
		ok, err := r.matchPattern(ctx, c, env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return r.satisfy(ctx, rest, env, stack, tr)

	case *entities.SubQuery:
		subActor, err := env.entity(c.Actor)
		if err != nil {
			return false, err
		}
		subResource, err := env.entity(c.Resource)
		if err != nil {
			return false, err
		}
		ok, err := r.resolve(ctx, c.Family, subActor, c.Name, subResource, stack, tr)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return r.satisfy(ctx, rest, env, stack, tr)

	case *entities.Implication:
		actor, err := env.entity(entities.VarActor)
		if err != nil {
			return false, err
		}
		resource, err := env.entity(entities.VarResource)
		if err != nil {
			return false, err
		}
		ok, err := r.resolve(ctx, c.Family, actor, c.Name, resource, stack, tr)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return r.satisfy(ctx, rest, env, stack, tr)

	case *entities.Expression:
		ok, err := r.evalExpression(ctx, c, env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return r.satisfy(ctx, rest, env, stack, tr)

	default:
		return false, fmt.Errorf("unknown condition type: %T", body[0])
	}
}

// matchPattern checks every field match of a PatternMatch against the
// fact accessor.
func (r *Resolver) matchPattern(ctx context.Context, c *entities.PatternMatch, env bindings) (bool, error) {
	subject, err := env.entity(c.Subject)
	if err != nil {
		return false, err
	}
	for _, fm := range c.Fields {
		switch {
		case fm.Var != "" && fm.Field == "" && fm.VarField == "":
			// Entity identity match: subject must be the bound entity itself.
			other, err := env.entity(fm.Var)
			if err != nil {
				return false, err
			}
			if !facts.Same(subject, other) {
				return false, nil
			}

		case fm.Var != "":
			other, err := env.entity(fm.Var)
			if err != nil {
				return false, err
			}
			want, err := r.accessor.Attribute(ctx, other, fm.VarField)
			if err != nil {
				return false, err
			}
			got, err := r.accessor.Attribute(ctx, subject, fm.Field)
			if err != nil {
				return false, err
			}
			if !valueEqual(got, want) {
				return false, nil
			}

		default:
			got, err := r.accessor.Attribute(ctx, subject, fm.Field)
			if err != nil {
				return false, err
			}
			if !valueEqual(got, fm.Literal) {
				return false, nil
			}
		}
	}
	return true, nil
}

// evalExpression fetches the declared attributes for each binding and hands
// the resulting maps to the CEL engine.
func (r *Resolver) evalExpression(ctx context.Context, c *entities.Expression, env bindings) (bool, error) {
	vars := make(map[string]map[string]any, len(c.Fields))
	for v, fieldNames := range c.Fields {
		e, err := env.entity(v)
		if err != nil {
			return false, err
		}
		attrs := make(map[string]any, len(fieldNames))
		for _, field := range fieldNames {
			value, err := r.accessor.Attribute(ctx, e, field)
			if err != nil {
				return false, err
			}
			attrs[field] = value
		}
		vars[string(v)] = attrs
	}
	return r.cel.Evaluate(c.Expr, vars)
}

// valueEqual compares attribute values with integer and float widths
// normalized, so an int64 read from a database matches an int literal from
// a policy document.
func valueEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeScalar(a), normalizeScalar(b))
}

func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
