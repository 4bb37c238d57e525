package entities

// Clause is one derivation rule: a head naming what is being established
// (a permission, role, or relation on a resource type) and a body of
// conditions that must all hold. Multiple clauses for the same head are
// alternatives: the query succeeds if any one of them succeeds, tried in
// registration order.
type Clause struct {
	Family   Family      // Which rule family the head belongs to
	TypeName string      // Resource type the head is declared on
	Name     string      // Permission/role/relation name being derived
	Body     []Condition // Conjunction of conditions, evaluated left to right
}
