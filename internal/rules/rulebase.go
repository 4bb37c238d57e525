package rules

import (
	"errors"
	"fmt"

	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/schema"
)

// ErrUndeclaredHead is returned when a clause head names a permission, role,
// or relation that its resource type never declared.
var ErrUndeclaredHead = errors.New("clause head not declared on resource type")

type clauseKey struct {
	family   entities.Family
	typeName string
	name     string
}

// RuleBase stores clauses keyed by (family, resource type, head name). For a
// given head, clauses are kept in registration order and combined with OR:
// the query succeeds if any clause succeeds. Duplicate clause bodies are
// legal and merely redundant. Like the schema registry, a RuleBase is built
// once at startup and read-only afterwards.
type RuleBase struct {
	registry *schema.Registry
	clauses  map[clauseKey][]*entities.Clause
}

// NewRuleBase creates an empty rule base validating heads against the
// given registry.
func NewRuleBase(registry *schema.Registry) *RuleBase {
	return &RuleBase{
		registry: registry,
		clauses:  make(map[clauseKey][]*entities.Clause),
	}
}

// AddClause registers a clause. The head type must be registered and the
// head name must be declared on it in the clause's family.
func (rb *RuleBase) AddClause(c *entities.Clause) error {
	if !c.Family.Valid() {
		return fmt.Errorf("clause for %s.%s: unknown family %q", c.TypeName, c.Name, c.Family)
	}
	t, err := rb.registry.Lookup(c.TypeName)
	if err != nil {
		return fmt.Errorf("clause for %s.%s: %w", c.TypeName, c.Name, err)
	}
	if !t.Declares(c.Family, c.Name) {
		return fmt.Errorf("%s %q on resource type %q: %w", c.Family, c.Name, c.TypeName, ErrUndeclaredHead)
	}
	key := clauseKey{family: c.Family, typeName: c.TypeName, name: c.Name}
	rb.clauses[key] = append(rb.clauses[key], c)
	return nil
}

// ClausesFor returns the clauses registered for a head, in registration
// order. An empty result is not an error; it just means no derivation path
// exists via this head.
func (rb *RuleBase) ClausesFor(family entities.Family, typeName, name string) []*entities.Clause {
	return rb.clauses[clauseKey{family: family, typeName: typeName, name: name}]
}

// Len returns the total number of registered clauses.
func (rb *RuleBase) Len() int {
	n := 0
	for _, cs := range rb.clauses {
		n += len(cs)
	}
	return n
}
