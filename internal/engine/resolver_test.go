package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/facts"
	"github.com/nidoproject/authz/internal/rules"
	"github.com/nidoproject/authz/internal/schema"
)

func TestResolver_MembershipRole(t *testing.T) {
	_, rb := newCommunityPolicy()
	f := newCommunityFacts()
	resolver := NewResolver(rb, facts.NewMemoryAccessor())

	tests := []struct {
		name     string
		actor    *facts.Object
		role     string
		resource *facts.Object
		want     bool
	}{
		{"alice is member of sub group", f.alice, "member", f.subGroup, true},
		{"bob is not a member of sub group", f.bob, "member", f.subGroup, false},
		{"carol is member of root group", f.carol, "member", f.rootGroup, true},
		{"carol is manager of sub group via root", f.carol, "manager", f.subGroup, true},
		{"alice is not manager of sub group", f.alice, "manager", f.subGroup, false},
		{"carol is manager of the self-managed root group", f.carol, "manager", f.rootGroup, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), entities.FamilyRole, tt.actor, tt.role, tt.resource)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_RelationTraversal(t *testing.T) {
	// carol holds the root right through the root group, and the sub right
	// through delegation down the parent tree. alice holds only the sub
	// right, directly through her group.
	_, rb := newCommunityPolicy()
	f := newCommunityFacts()
	resolver := NewResolver(rb, facts.NewMemoryAccessor())

	tests := []struct {
		name     string
		actor    *facts.Object
		resource *facts.Object
		want     bool
	}{
		{"carol holds root right directly", f.carol, f.rootRight, true},
		{"carol holds sub right via parent", f.carol, f.subRight, true},
		{"alice holds sub right directly", f.alice, f.subRight, true},
		{"alice does not hold root right", f.alice, f.rootRight, false},
		{"bob holds nothing", f.bob, f.subRight, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), entities.FamilyRole, tt.actor, "delegator", tt.resource)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_MembershipBacktracking(t *testing.T) {
	// The first element of the collection must not block later elements:
	// bob appears before alice in the membership list, but only alice
	// matches the actor.
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "group",
		Roles: []string{"member"},
	})
	rb := rules.NewRuleBase(registry)
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "group",
		Name:     "member",
		Body: []entities.Condition{
			&entities.Membership{Bind: "member", Source: entities.VarResource, Field: "custom_members"},
			&entities.PatternMatch{Subject: "member", Fields: []entities.FieldMatch{{Var: entities.VarActor}}},
		},
	})

	alice := facts.NewObject("user", "alice")
	bob := facts.NewObject("user", "bob")
	group := facts.NewObject("group", "g1").Append("custom_members", bob, alice)

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, alice, "member", group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected membership to backtrack past non-matching elements")
	}
}

func TestResolver_CycleFailsClosed(t *testing.T) {
	// A role defined only in terms of itself terminates and resolves to
	// false instead of looping.
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "team",
		Roles: []string{"lead"},
	})
	rb := rules.NewRuleBase(registry)
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "team",
		Name:     "lead",
		Body: []entities.Condition{
			&entities.Implication{Family: entities.FamilyRole, Name: "lead"},
		},
	})

	actor := facts.NewObject("user", "u1")
	team := facts.NewObject("team", "t1")

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, actor, "lead", team)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("cyclic derivation must fail closed")
	}
}

func TestResolver_CycleAllowsSiblingClause(t *testing.T) {
	// The cyclic clause fails, but a sibling clause for the same head can
	// still succeed.
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "team",
		Roles: []string{"lead"},
	})
	rb := rules.NewRuleBase(registry)
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "team",
		Name:     "lead",
		Body: []entities.Condition{
			&entities.Implication{Family: entities.FamilyRole, Name: "lead"},
		},
	})
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "team",
		Name:     "lead",
		Body:     []entities.Condition{&entities.LiteralPermit{}},
	})

	actor := facts.NewObject("user", "u1")
	team := facts.NewObject("team", "t1")

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, actor, "lead", team)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("sibling clause should succeed despite the cyclic alternative")
	}
}

func TestResolver_SelfManagedGroupTerminates(t *testing.T) {
	// The root group manages itself: deriving manager recurses into the
	// same group's member role, which is a different query key, so the
	// guard lets it through exactly once.
	_, rb := newCommunityPolicy()
	f := newCommunityFacts()
	resolver := NewResolver(rb, facts.NewMemoryAccessor())

	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, f.bob, "manager", f.rootGroup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("bob is not a manager of the root group")
	}
}

func TestResolver_UnknownFieldPropagates(t *testing.T) {
	// A field the fact accessor does not recognize is a hard failure, not
	// a deny: the policy and data model have drifted apart.
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "group",
		Roles: []string{"member"},
	})
	rb := rules.NewRuleBase(registry)
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "group",
		Name:     "member",
		Body: []entities.Condition{
			&entities.Membership{Bind: "m", Source: entities.VarResource, Field: "no_such_collection"},
		},
	})

	actor := facts.NewObject("user", "u1")
	group := facts.NewObject("group", "g1")

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	_, err := resolver.Resolve(context.Background(), entities.FamilyRole, actor, "member", group)
	if !errors.Is(err, facts.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestResolver_NoClausesMeansFalse(t *testing.T) {
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "group",
		Roles: []string{"member"},
	})
	rb := rules.NewRuleBase(registry)

	actor := facts.NewObject("user", "u1")
	group := facts.NewObject("group", "g1")

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, actor, "member", group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("a head with no clauses has no derivation path")
	}
}

func TestResolver_ExpressionGuard(t *testing.T) {
	_, rb := newCommunityPolicy()
	f := newCommunityFacts()
	resolver := NewResolver(rb, facts.NewMemoryAccessor())

	// can_delegate gates the delegate permission.
	got, err := resolver.Resolve(context.Background(), entities.FamilyPermission, f.carol, "delegate", f.rootRight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("carol should be able to delegate the root right")
	}

	got, err = resolver.Resolve(context.Background(), entities.FamilyPermission, f.alice, "delegate", f.subRight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("the sub right has can_delegate false")
	}
}

func TestResolver_PatternMatchLiteralWidths(t *testing.T) {
	// An int64 attribute (as a SQL driver would return) matches an int
	// literal from a policy document.
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:  "doc",
		Roles: []string{"viewer"},
	})
	rb := rules.NewRuleBase(registry)
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "doc",
		Name:     "viewer",
		Body: []entities.Condition{
			&entities.PatternMatch{
				Subject: entities.VarResource,
				Fields:  []entities.FieldMatch{{Field: "version", Literal: 2}},
			},
		},
	})

	actor := facts.NewObject("user", "u1")
	doc := facts.NewObject("doc", "d1").SetAttr("version", int64(2))

	resolver := NewResolver(rb, facts.NewMemoryAccessor())
	got, err := resolver.Resolve(context.Background(), entities.FamilyRole, actor, "viewer", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("int64(2) should match literal 2")
	}
}
