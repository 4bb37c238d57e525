package engine

import (
	"fmt"

	"github.com/nidoproject/authz/internal/entities"
)

// TraceStep records one clause head that was satisfied while deriving a
// decision, together with the concrete resource instance it was satisfied
// for.
type TraceStep struct {
	Family     entities.Family
	TypeName   string
	ResourceID string
	Name       string
}

// String renders the step as has_permission(group:g1, "query") style text
// for audit logs.
func (s TraceStep) String() string {
	return fmt.Sprintf("has_%s(%s:%s, %q)", s.Family, s.TypeName, s.ResourceID, s.Name)
}

// trace accumulates satisfied clause heads. Steps are appended as clauses
// succeed, so sub-derivations appear before the heads that depended on them
// (innermost first). A nil *trace disables recording.
type trace struct {
	steps []TraceStep
}

func (t *trace) record(c *entities.Clause, resourceID string) {
	if t == nil {
		return
	}
	t.steps = append(t.steps, TraceStep{
		Family:     c.Family,
		TypeName:   c.TypeName,
		ResourceID: resourceID,
		Name:       c.Name,
	})
}

// branch returns a buffer for a derivation attempt that may still fail.
// Steps are merged back only when the attempt succeeds, so abandoned
// alternatives leave no steps behind. A nil receiver stays nil, keeping
// recording disabled down the branch.
func (t *trace) branch() *trace {
	if t == nil {
		return nil
	}
	return &trace{}
}

func (t *trace) merge(sub *trace) {
	if t == nil || sub == nil {
		return
	}
	t.steps = append(t.steps, sub.steps...)
}
