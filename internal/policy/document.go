package policy

import (
	"fmt"

	"github.com/nidoproject/authz/internal/entities"
)

// Document is the serialized form of a policy: resource type declarations
// plus derivation clauses. It is a direct binding of the engine's structural
// model, not a rule language; all validation happens when the document is
// compiled.
type Document struct {
	ResourceTypes []TypeDecl   `mapstructure:"resource_types"`
	Clauses       []ClauseDecl `mapstructure:"clauses"`
}

// TypeDecl declares one resource type.
type TypeDecl struct {
	Name        string            `mapstructure:"name"`
	Permissions []string          `mapstructure:"permissions"`
	Roles       []string          `mapstructure:"roles"`
	Relations   map[string]string `mapstructure:"relations"`

	// Grants are "X if Y" shorthands: the head permission or role is
	// granted whenever the actor already holds the named role or
	// permission on the same resource.
	Grants []GrantDecl `mapstructure:"grants"`
}

// GrantDecl is one "X if Y" shorthand. Exactly one of Permission/Role names
// the head, and exactly one of IfRole/IfPermission names the prerequisite.
type GrantDecl struct {
	Permission   string `mapstructure:"permission"`
	Role         string `mapstructure:"role"`
	IfRole       string `mapstructure:"if_role"`
	IfPermission string `mapstructure:"if_permission"`
}

func (g *GrantDecl) head() (entities.Family, string, error) {
	switch {
	case g.Permission != "" && g.Role == "":
		return entities.FamilyPermission, g.Permission, nil
	case g.Role != "" && g.Permission == "":
		return entities.FamilyRole, g.Role, nil
	default:
		return "", "", fmt.Errorf("grant must name exactly one of permission or role")
	}
}

func (g *GrantDecl) prerequisite() (entities.Family, string, error) {
	switch {
	case g.IfRole != "" && g.IfPermission == "":
		return entities.FamilyRole, g.IfRole, nil
	case g.IfPermission != "" && g.IfRole == "":
		return entities.FamilyPermission, g.IfPermission, nil
	default:
		return "", "", fmt.Errorf("grant must name exactly one of if_role or if_permission")
	}
}

// ClauseDecl declares one derivation clause.
type ClauseDecl struct {
	Family string          `mapstructure:"family"`
	Type   string          `mapstructure:"type"`
	Name   string          `mapstructure:"name"`
	Body   []ConditionDecl `mapstructure:"body"`
}

// ConditionDecl is a kind-tagged condition. Fields are interpreted per Kind:
//
//	membership: bind, source, field
//	reference:  bind, source, field
//	match:      subject, fields
//	subquery:   family, actor, name, resource
//	implied:    family, name
//	expression: expr, attrs
//	permit:     (no fields)
type ConditionDecl struct {
	Kind string `mapstructure:"kind"`

	Bind   string `mapstructure:"bind"`
	Source string `mapstructure:"source"`
	Field  string `mapstructure:"field"`

	Subject string          `mapstructure:"subject"`
	Fields  []FieldMatchDecl `mapstructure:"fields"`

	Family   string `mapstructure:"family"`
	Actor    string `mapstructure:"actor"`
	Name     string `mapstructure:"name"`
	Resource string `mapstructure:"resource"`

	Expr  string              `mapstructure:"expr"`
	Attrs map[string][]string `mapstructure:"attrs"`
}

// FieldMatchDecl is one equality test inside a match condition. SameAs is a
// shorthand for "the subject entity is the entity bound to this variable".
type FieldMatchDecl struct {
	Field    string `mapstructure:"field"`
	Equals   any    `mapstructure:"equals"`
	Var      string `mapstructure:"var"`
	VarField string `mapstructure:"var_field"`
	SameAs   string `mapstructure:"same_as"`
}

func (c *ConditionDecl) compile() (entities.Condition, error) {
	switch c.Kind {
	case "membership":
		if c.Bind == "" || c.Source == "" || c.Field == "" {
			return nil, fmt.Errorf("membership condition requires bind, source, and field")
		}
		return &entities.Membership{
			Bind:   entities.Var(c.Bind),
			Source: entities.Var(c.Source),
			Field:  c.Field,
		}, nil

	case "reference":
		if c.Bind == "" || c.Source == "" || c.Field == "" {
			return nil, fmt.Errorf("reference condition requires bind, source, and field")
		}
		return &entities.Reference{
			Bind:   entities.Var(c.Bind),
			Source: entities.Var(c.Source),
			Field:  c.Field,
		}, nil

	case "match":
		if c.Subject == "" || len(c.Fields) == 0 {
			return nil, fmt.Errorf("match condition requires subject and at least one field")
		}
		fields := make([]entities.FieldMatch, 0, len(c.Fields))
		for _, f := range c.Fields {
			fm, err := f.compile()
			if err != nil {
				return nil, err
			}
			fields = append(fields, fm)
		}
		return &entities.PatternMatch{
			Subject: entities.Var(c.Subject),
			Fields:  fields,
		}, nil

	case "subquery":
		family := entities.Family(c.Family)
		if !family.Valid() {
			return nil, fmt.Errorf("subquery condition has unknown family %q", c.Family)
		}
		if c.Actor == "" || c.Name == "" || c.Resource == "" {
			return nil, fmt.Errorf("subquery condition requires actor, name, and resource")
		}
		return &entities.SubQuery{
			Family:   family,
			Actor:    entities.Var(c.Actor),
			Name:     c.Name,
			Resource: entities.Var(c.Resource),
		}, nil

	case "implied":
		family := entities.Family(c.Family)
		if !family.Valid() {
			return nil, fmt.Errorf("implied condition has unknown family %q", c.Family)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("implied condition requires a name")
		}
		return &entities.Implication{Family: family, Name: c.Name}, nil

	case "expression":
		if c.Expr == "" {
			return nil, fmt.Errorf("expression condition requires expr")
		}
		attrs := make(map[entities.Var][]string, len(c.Attrs))
		for v, fieldNames := range c.Attrs {
			attrs[entities.Var(v)] = fieldNames
		}
		return &entities.Expression{Expr: c.Expr, Fields: attrs}, nil

	case "permit":
		return &entities.LiteralPermit{}, nil

	default:
		return nil, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func (f *FieldMatchDecl) compile() (entities.FieldMatch, error) {
	switch {
	case f.SameAs != "":
		if f.Field != "" || f.Var != "" || f.VarField != "" || f.Equals != nil {
			return entities.FieldMatch{}, fmt.Errorf("same_as cannot be combined with other match fields")
		}
		return entities.FieldMatch{Var: entities.Var(f.SameAs)}, nil

	case f.Var != "":
		if f.Field == "" || f.VarField == "" {
			return entities.FieldMatch{}, fmt.Errorf("var match requires field and var_field")
		}
		return entities.FieldMatch{
			Field:    f.Field,
			Var:      entities.Var(f.Var),
			VarField: f.VarField,
		}, nil

	case f.Field != "":
		return entities.FieldMatch{Field: f.Field, Literal: f.Equals}, nil

	default:
		return entities.FieldMatch{}, fmt.Errorf("match field requires field, var, or same_as")
	}
}
