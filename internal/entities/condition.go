package entities

// Var names a binding in a clause body's evaluation environment. Every body
// starts with VarActor and VarResource bound; Membership conditions introduce
// fresh bindings.
type Var string

const (
	VarActor    Var = "actor"
	VarResource Var = "resource"
)

// Condition is one element of a clause body. The set of kinds is closed so
// the resolver can switch exhaustively.
type Condition interface {
	isCondition()
}

// Membership binds Bind to each element of the named collection on the
// entity bound to Source, in the collection's own order, and attempts the
// remainder of the body for each candidate. The first candidate for which
// the remainder succeeds satisfies the condition.
// Example: member in group.custom_members
type Membership struct {
	Bind   Var    // Fresh variable bound to each element
	Source Var    // Binding holding the entity that owns the collection
	Field  string // Collection name passed to the fact accessor
}

func (c *Membership) isCondition() {}

// Reference binds Bind to the single entity referenced by the named
// relation on the entity bound to Source. An empty reference fails the
// condition.
// Example: parent = right.parent_right
type Reference struct {
	Bind   Var
	Source Var
	Field  string
}

func (c *Reference) isCondition() {}

// PatternMatch tests attributes of the entity bound to Subject. All field
// matches must hold.
type PatternMatch struct {
	Subject Var
	Fields  []FieldMatch
}

func (c *PatternMatch) isCondition() {}

// FieldMatch is a single equality test inside a PatternMatch.
//
// When Var is empty, the subject's attribute Field must equal Literal.
// When Var is set and VarField is non-empty, it must equal that binding's
// attribute VarField. When Var is set and both Field and VarField are empty,
// the subject entity itself must be the entity bound to Var (same type and
// identity).
type FieldMatch struct {
	Field    string
	Literal  any
	Var      Var
	VarField string
}

// SubQuery recursively asks has_relation/has_role/has_permission for the
// entities currently bound to Actor and Resource.
// Example: has_role(actor, "manager", group.managed_by)
type SubQuery struct {
	Family   Family
	Actor    Var    // Binding evaluated as the acting entity
	Name     string // Relation/role/permission asked for
	Resource Var    // Binding evaluated as the target resource
}

func (c *SubQuery) isCondition() {}

// Implication grants the head whenever the same actor already holds Name
// (a role or permission, per Family) on the same resource. It is the
// compiled form of an "X if Y" shorthand in a type declaration.
type Implication struct {
	Family Family
	Name   string
}

func (c *Implication) isCondition() {}

// Expression evaluates a CEL expression over attribute maps fetched for the
// named bindings. Fields lists, per binding, the attributes the expression
// reads; each listed attribute is fetched through the fact accessor and
// exposed to CEL as a map variable named after the binding.
// Example: Expr "resource.id != resource.parent_right_id"
type Expression struct {
	Expr   string
	Fields map[Var][]string
}

func (c *Expression) isCondition() {}

// LiteralPermit succeeds unconditionally. Used for public resources where
// any actor may perform the action.
type LiteralPermit struct{}

func (c *LiteralPermit) isCondition() {}
