package facts

import (
	"context"
	"errors"
)

// ErrUnknownField is returned by an Accessor when the requested attribute,
// reference, or collection name is not part of the host's data model. The
// engine propagates it as a hard failure rather than treating it as a deny,
// because it usually means the policy and the data model have drifted apart.
var ErrUnknownField = errors.New("unknown field")

// Entity is any object the engine can make decisions about: actors and
// resources alike. Identity (TypeName, ID) must be stable for the duration
// of one decision; the resolver uses it for cycle detection and caching.
type Entity interface {
	// TypeName returns the resource type name as registered in the schema
	// (actors use their own type name, e.g. "user").
	TypeName() string

	// ID returns an identifier unique among entities of the same type.
	ID() string
}

// Accessor supplies the engine with concrete data: scalar attributes,
// single related entities, and ordered collections of related entities.
// It is implemented entirely by the host application; the engine treats
// every call as an opaque synchronous lookup and imposes no timeout or
// retry policy of its own.
type Accessor interface {
	// Attribute returns a scalar attribute value of the entity.
	Attribute(ctx context.Context, e Entity, field string) (any, error)

	// Related returns the entity referenced by the named relation, or nil
	// if the reference is empty.
	Related(ctx context.Context, e Entity, field string) (Entity, error)

	// Collection returns the entities in the named collection. Order must
	// be deterministic for identical underlying data, so that decisions
	// are reproducible.
	Collection(ctx context.Context, e Entity, field string) ([]Entity, error)
}

// Same reports whether two entities are the same entity: same type name and
// same identifier. Either side may be nil.
func Same(a, b Entity) bool {
	if a == nil || b == nil {
		return false
	}
	return a.TypeName() == b.TypeName() && a.ID() == b.ID()
}
