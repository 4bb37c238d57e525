package engine

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// CELEngine evaluates the CEL expressions carried by Expression conditions.
// Each bound variable a condition declares is exposed to CEL as a map of
// attribute name to value.
type CELEngine struct{}

// NewCELEngine creates a CEL engine.
func NewCELEngine() *CELEngine {
	return &CELEngine{}
}

// env builds a CEL environment declaring one dyn-valued map variable per
// binding name. Variable sets differ per expression, so the environment is
// built from the names actually in scope.
func (e *CELEngine) env(varNames []string) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(varNames))
	for _, name := range varNames {
		opts = append(opts, cel.Variable(name, cel.MapType(cel.StringType, cel.DynType)))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// Evaluate compiles and evaluates an expression against per-variable
// attribute maps. The expression must evaluate to a boolean.
func (e *CELEngine) Evaluate(expression string, vars map[string]map[string]any) (bool, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	env, err := e.env(names)
	if err != nil {
		return false, err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	activation := make(map[string]any, len(vars))
	for name, attrs := range vars {
		if attrs == nil {
			attrs = map[string]any{}
		}
		activation[name] = attrs
	}

	result, _, err := program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not evaluate to boolean, got: %T", result.Value())
	}

	return boolResult, nil
}

// Validate compiles an expression against the given variable names and
// checks that it returns a boolean, without evaluating it. Used when a
// policy document is loaded so malformed expressions fail at startup
// instead of at decision time.
func (e *CELEngine) Validate(expression string, varNames []string) error {
	env, err := e.env(varNames)
	if err != nil {
		return err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("CEL expression must return boolean, got: %s", ast.OutputType())
	}

	return nil
}
