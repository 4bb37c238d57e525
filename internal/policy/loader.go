package policy

import (
	"bytes"
	"fmt"

	"github.com/spf13/viper"

	"github.com/nidoproject/authz/internal/engine"
	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/rules"
	"github.com/nidoproject/authz/internal/schema"
)

// Policy is a compiled policy: the schema registry and rule base the engine
// evaluates against. Both are immutable after Compile returns.
type Policy struct {
	Registry *schema.Registry
	Rules    *rules.RuleBase
}

// Load reads a YAML policy document from a file and compiles it.
func Load(path string) (*Policy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return unmarshalAndCompile(v)
}

// Parse compiles a YAML policy document from memory.
func Parse(data []byte) (*Policy, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return unmarshalAndCompile(v)
}

func unmarshalAndCompile(v *viper.Viper) (*Policy, error) {
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy document: %w", err)
	}
	return Compile(&doc)
}

// Compile validates a document and builds the registry and rule base.
// All configuration errors (duplicate types, undeclared heads, malformed
// conditions, invalid CEL expressions) surface here, at startup, rather
// than at decision time.
func Compile(doc *Document) (*Policy, error) {
	registry := schema.NewRegistry()
	for _, decl := range doc.ResourceTypes {
		t := &entities.ResourceType{
			Name:        decl.Name,
			Permissions: decl.Permissions,
			Roles:       decl.Roles,
			Relations:   decl.Relations,
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	ruleBase := rules.NewRuleBase(registry)

	// Grant shorthands lower to a clause whose body is a single implied
	// role/permission check for the same actor and resource.
	for _, decl := range doc.ResourceTypes {
		for _, grant := range decl.Grants {
			headFamily, headName, err := grant.head()
			if err != nil {
				return nil, fmt.Errorf("resource type %q: %w", decl.Name, err)
			}
			preFamily, preName, err := grant.prerequisite()
			if err != nil {
				return nil, fmt.Errorf("resource type %q: %w", decl.Name, err)
			}
			clause := &entities.Clause{
				Family:   headFamily,
				TypeName: decl.Name,
				Name:     headName,
				Body: []entities.Condition{
					&entities.Implication{Family: preFamily, Name: preName},
				},
			}
			if err := ruleBase.AddClause(clause); err != nil {
				return nil, err
			}
		}
	}

	celEngine := engine.NewCELEngine()
	for i, decl := range doc.Clauses {
		family := entities.Family(decl.Family)
		if !family.Valid() {
			return nil, fmt.Errorf("clause %d: unknown family %q", i, decl.Family)
		}
		body := make([]entities.Condition, 0, len(decl.Body))
		for _, cond := range decl.Body {
			compiled, err := cond.compile()
			if err != nil {
				return nil, fmt.Errorf("clause %d (%s %s.%s): %w", i, decl.Family, decl.Type, decl.Name, err)
			}
			if expr, isExpr := compiled.(*entities.Expression); isExpr {
				if err := validateExpression(celEngine, expr); err != nil {
					return nil, fmt.Errorf("clause %d (%s %s.%s): %w", i, decl.Family, decl.Type, decl.Name, err)
				}
			}
			body = append(body, compiled)
		}
		clause := &entities.Clause{
			Family:   family,
			TypeName: decl.Type,
			Name:     decl.Name,
			Body:     body,
		}
		if err := ruleBase.AddClause(clause); err != nil {
			return nil, err
		}
	}

	return &Policy{Registry: registry, Rules: ruleBase}, nil
}

func validateExpression(celEngine *engine.CELEngine, expr *entities.Expression) error {
	varNames := make([]string, 0, len(expr.Fields))
	for v := range expr.Fields {
		varNames = append(varNames, string(v))
	}
	return celEngine.Validate(expr.Expr, varNames)
}
