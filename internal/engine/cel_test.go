package engine

import (
	"testing"
)

func TestCELEngine_Evaluate(t *testing.T) {
	engine := NewCELEngine()

	tests := []struct {
		name    string
		expr    string
		vars    map[string]map[string]any
		want    bool
		wantErr bool
	}{
		{
			name: "inequality over two attributes",
			expr: "resource.id != resource.parent_right_id",
			vars: map[string]map[string]any{
				"resource": {"id": "r1", "parent_right_id": "r0"},
			},
			want: true,
		},
		{
			name: "equal attributes fail the inequality",
			expr: "resource.id != resource.parent_right_id",
			vars: map[string]map[string]any{
				"resource": {"id": "r0", "parent_right_id": "r0"},
			},
			want: false,
		},
		{
			name: "two variables in scope",
			expr: "actor.tier == resource.required_tier",
			vars: map[string]map[string]any{
				"actor":    {"tier": "gold"},
				"resource": {"required_tier": "gold"},
			},
			want: true,
		},
		{
			name: "numeric comparison",
			expr: "resource.size < 100",
			vars: map[string]map[string]any{
				"resource": {"size": int64(42)},
			},
			want: true,
		},
		{
			name:    "compile error",
			expr:    "resource.id !=",
			vars:    map[string]map[string]any{"resource": {"id": "r1"}},
			wantErr: true,
		},
		{
			name:    "non-boolean result",
			expr:    "resource.id",
			vars:    map[string]map[string]any{"resource": {"id": "r1"}},
			wantErr: true,
		},
		{
			name:    "undeclared variable",
			expr:    "ghost.id == 'x'",
			vars:    map[string]map[string]any{"resource": {"id": "r1"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(tt.expr, tt.vars)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCELEngine_Validate(t *testing.T) {
	engine := NewCELEngine()

	tests := []struct {
		name     string
		expr     string
		varNames []string
		wantErr  bool
	}{
		{"boolean expression", "resource.id != resource.parent_right_id", []string{"resource"}, false},
		{"syntax error", "resource.id !=", []string{"resource"}, true},
		{"undeclared variable", "actor.id == 'u1'", []string{"resource"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Validate(tt.expr, tt.varNames)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
