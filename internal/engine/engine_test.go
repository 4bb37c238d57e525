package engine

import (
	"github.com/nidoproject/authz/internal/entities"
	"github.com/nidoproject/authz/internal/facts"
	"github.com/nidoproject/authz/internal/rules"
	"github.com/nidoproject/authz/internal/schema"
)

// newCommunityPolicy builds the group/right policy used across the engine
// tests: group membership via custom_members, managers via the managing
// group, and rights delegated down a parent tree with a self-parent guard.
func newCommunityPolicy() (*schema.Registry, *rules.RuleBase) {
	registry := schema.NewRegistry()
	mustRegister(registry, &entities.ResourceType{Name: "user"})
	mustRegister(registry, &entities.ResourceType{
		Name:        "community",
		Permissions: []string{"query"},
	})
	mustRegister(registry, &entities.ResourceType{
		Name:        "group",
		Permissions: []string{"query", "create", "update", "delete"},
		Roles:       []string{"member", "manager"},
		Relations: map[string]string{
			"managed_by": "group",
			"right":      "right",
		},
	})
	mustRegister(registry, &entities.ResourceType{
		Name:        "right",
		Permissions: []string{"query", "delegate", "revoke"},
		Roles:       []string{"delegator"},
		Relations: map[string]string{
			"parent_right": "right",
		},
	})

	rb := rules.NewRuleBase(registry)

	// community.query is public
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyPermission,
		TypeName: "community",
		Name:     "query",
		Body:     []entities.Condition{&entities.LiteralPermit{}},
	})

	// group.member: actor appears in custom_members
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "group",
		Name:     "member",
		Body: []entities.Condition{
			&entities.Membership{Bind: "member", Source: entities.VarResource, Field: "custom_members"},
			&entities.PatternMatch{Subject: "member", Fields: []entities.FieldMatch{{Var: entities.VarActor}}},
		},
	})

	// group.manager: member of the managing group
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "group",
		Name:     "manager",
		Body: []entities.Condition{
			&entities.Reference{Bind: "managing_group", Source: entities.VarResource, Field: "managed_by"},
			&entities.SubQuery{Family: entities.FamilyRole, Actor: entities.VarActor, Name: "member", Resource: "managing_group"},
		},
	})

	// group.query if group.member; group.update/delete if group.manager
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyPermission,
		TypeName: "group",
		Name:     "query",
		Body:     []entities.Condition{&entities.Implication{Family: entities.FamilyRole, Name: "member"}},
	})
	for _, perm := range []string{"update", "delete"} {
		mustAdd(rb, &entities.Clause{
			Family:   entities.FamilyPermission,
			TypeName: "group",
			Name:     perm,
			Body:     []entities.Condition{&entities.Implication{Family: entities.FamilyRole, Name: "manager"}},
		})
	}

	// right.delegator: member of a group the right is bound to
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "right",
		Name:     "delegator",
		Body: []entities.Condition{
			&entities.Membership{Bind: "holding_group", Source: entities.VarResource, Field: "groups"},
			&entities.SubQuery{Family: entities.FamilyRole, Actor: entities.VarActor, Name: "member", Resource: "holding_group"},
		},
	})

	// right.delegator: inherited from the parent right, excluding roots
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyRole,
		TypeName: "right",
		Name:     "delegator",
		Body: []entities.Condition{
			&entities.Expression{
				Expr:   "resource.id != resource.parent_right_id",
				Fields: map[entities.Var][]string{entities.VarResource: {"id", "parent_right_id"}},
			},
			&entities.Reference{Bind: "parent", Source: entities.VarResource, Field: "parent_right"},
			&entities.SubQuery{Family: entities.FamilyRole, Actor: entities.VarActor, Name: "delegator", Resource: "parent"},
		},
	})

	// right.revoke: hold the parent right; root rights are unrevocable
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyPermission,
		TypeName: "right",
		Name:     "revoke",
		Body: []entities.Condition{
			&entities.Expression{
				Expr:   "resource.id != resource.parent_right_id",
				Fields: map[entities.Var][]string{entities.VarResource: {"id", "parent_right_id"}},
			},
			&entities.Reference{Bind: "parent", Source: entities.VarResource, Field: "parent_right"},
			&entities.SubQuery{Family: entities.FamilyRole, Actor: entities.VarActor, Name: "delegator", Resource: "parent"},
		},
	})

	// right.delegate: the right allows it and the actor holds it
	mustAdd(rb, &entities.Clause{
		Family:   entities.FamilyPermission,
		TypeName: "right",
		Name:     "delegate",
		Body: []entities.Condition{
			&entities.PatternMatch{Subject: entities.VarResource, Fields: []entities.FieldMatch{{Field: "can_delegate", Literal: true}}},
			&entities.Implication{Family: entities.FamilyRole, Name: "delegator"},
		},
	})

	return registry, rb
}

// communityFacts is the fact graph shared by the engine tests.
type communityFacts struct {
	alice, bob, carol   *facts.Object
	rootGroup, subGroup *facts.Object
	rootRight, subRight *facts.Object
	community           *facts.Object
}

// newCommunityFacts wires a small community: carol sits in the root group
// (which manages itself and the sub group), alice is a plain member of the
// sub group. The root right is bound to the root group and is its own
// parent; the sub right hangs off it.
func newCommunityFacts() *communityFacts {
	f := &communityFacts{
		alice:     facts.NewObject("user", "alice"),
		bob:       facts.NewObject("user", "bob"),
		carol:     facts.NewObject("user", "carol"),
		rootGroup: facts.NewObject("group", "root"),
		subGroup:  facts.NewObject("group", "g1"),
		rootRight: facts.NewObject("right", "r0"),
		subRight:  facts.NewObject("right", "r1"),
		community: facts.NewObject("community", "c1"),
	}

	f.rootGroup.SetRef("managed_by", f.rootGroup)
	f.rootGroup.Append("custom_members", f.carol)

	f.subGroup.SetRef("managed_by", f.rootGroup)
	f.subGroup.Append("custom_members", f.alice)

	f.rootRight.SetAttr("id", "r0").
		SetAttr("parent_right_id", "r0").
		SetAttr("can_delegate", true).
		SetRef("parent_right", f.rootRight).
		Append("groups", f.rootGroup)

	f.subRight.SetAttr("id", "r1").
		SetAttr("parent_right_id", "r0").
		SetAttr("can_delegate", false).
		SetRef("parent_right", f.rootRight).
		Append("groups", f.subGroup)

	return f
}

func mustRegister(r *schema.Registry, t *entities.ResourceType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func mustAdd(rb *rules.RuleBase, c *entities.Clause) {
	if err := rb.AddClause(c); err != nil {
		panic(err)
	}
}
