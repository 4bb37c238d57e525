package engine

import (
	"fmt"

	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/facts"
)

// bindings is the environment a clause body is evaluated in. Extending a
// binding set copies it, so candidate bindings explored during backtracking
// never leak into sibling branches.
type bindings map[entities.Var]facts.Entity

func newBindings(actor, resource facts.Entity) bindings {
	return bindings{
		entities.VarActor:    actor,
		entities.VarResource: resource,
	}
}

// with returns a copy of the environment with one additional binding.
func (b bindings) with(v entities.Var, e facts.Entity) bindings {
	next := make(bindings, len(b)+1)
	for k, val := range b {
		next[k] = val
	}
	next[v] = e
	return next
}

// entity returns the entity bound to v. Referencing an unbound variable is
// a malformed clause, surfaced as a configuration error.
func (b bindings) entity(v entities.Var) (facts.Entity, error) {
	e, ok := b[v]
	if !ok {
		return nil, fmt.Errorf("clause references unbound variable %q", v)
	}
	return e, nil
}

// queryKey identifies one query on the active call path: which head is
// being derived, for which concrete resource instance.
type queryKey struct {
	family   entities.Family
	typeName string
	id       string
	name     string
}

// callStack is the set of queries currently in progress. Re-entering a key
// already on the stack means the derivation is cyclic; that sub-query fails
// closed while sibling clauses may still succeed.
type callStack map[queryKey]struct{}
