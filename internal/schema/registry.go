package schema

import (
	"errors"
	"fmt"

	"github.com/nidoproject/authz/internal/entities"
)

var (
	// ErrDuplicateType is returned when a resource type name is registered twice.
	ErrDuplicateType = errors.New("resource type already registered")

	// ErrInvalidDeclaration is returned when a declaration contains duplicate
	// permission, role, or relation names.
	ErrInvalidDeclaration = errors.New("invalid resource type declaration")

	// ErrUnknownType is returned when looking up a resource type that was
	// never registered.
	ErrUnknownType = errors.New("unknown resource type")
)

// Registry holds the declared resource types. It is populated once at
// startup and read-only afterwards, so concurrent lookups need no locking.
type Registry struct {
	types map[string]*entities.ResourceType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*entities.ResourceType),
	}
}

// Register adds a resource type declaration. Registering the same type name
// twice fails with ErrDuplicateType; duplicate names within the permission,
// role, or relation lists fail with ErrInvalidDeclaration.
func (r *Registry) Register(t *entities.ResourceType) error {
	if t.Name == "" {
		return fmt.Errorf("resource type name is empty: %w", ErrInvalidDeclaration)
	}
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("resource type %q: %w", t.Name, ErrDuplicateType)
	}
	if dup := firstDuplicate(t.Permissions); dup != "" {
		return fmt.Errorf("resource type %q declares permission %q twice: %w", t.Name, dup, ErrInvalidDeclaration)
	}
	if dup := firstDuplicate(t.Roles); dup != "" {
		return fmt.Errorf("resource type %q declares role %q twice: %w", t.Name, dup, ErrInvalidDeclaration)
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the declaration for a type name, or ErrUnknownType.
func (r *Registry) Lookup(name string) (*entities.ResourceType, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("resource type %q: %w", name, ErrUnknownType)
	}
	return t, nil
}

// TypeNames returns the registered type names in no particular order.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

func firstDuplicate(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n
		}
		seen[n] = struct{}{}
	}
	return ""
}
