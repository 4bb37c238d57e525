package facts

import (
	"context"
	"fmt"
)

// Object is an in-memory Entity with attributes, references, and collections
// held directly on the value. It backs MemoryAccessor and is the easiest way
// to supply facts in tests, examples, and hosts that already materialized
// their data.
type Object struct {
	Kind  string
	Ident string
	Attrs map[string]any
	Refs  map[string]Entity
	Lists map[string][]Entity
}

// NewObject creates an Object with empty fact maps.
func NewObject(kind, id string) *Object {
	return &Object{
		Kind:  kind,
		Ident: id,
		Attrs: make(map[string]any),
		Refs:  make(map[string]Entity),
		Lists: make(map[string][]Entity),
	}
}

func (o *Object) TypeName() string { return o.Kind }
func (o *Object) ID() string       { return o.Ident }

// SetAttr sets a scalar attribute and returns the object for chaining.
func (o *Object) SetAttr(field string, value any) *Object {
	o.Attrs[field] = value
	return o
}

// SetRef sets a single-entity reference.
func (o *Object) SetRef(field string, e Entity) *Object {
	o.Refs[field] = e
	return o
}

// Append adds entities to a collection, preserving insertion order.
func (o *Object) Append(field string, es ...Entity) *Object {
	o.Lists[field] = append(o.Lists[field], es...)
	return o
}

// MemoryAccessor reads facts off Object values. Entities that are not
// *Object, or field names absent from the object's maps, yield
// ErrUnknownField.
type MemoryAccessor struct{}

// NewMemoryAccessor creates an accessor over in-memory Objects.
func NewMemoryAccessor() *MemoryAccessor {
	return &MemoryAccessor{}
}

func (a *MemoryAccessor) Attribute(ctx context.Context, e Entity, field string) (any, error) {
	obj, err := asObject(e)
	if err != nil {
		return nil, err
	}
	v, ok := obj.Attrs[field]
	if !ok {
		return nil, fmt.Errorf("attribute %q on %s:%s: %w", field, e.TypeName(), e.ID(), ErrUnknownField)
	}
	return v, nil
}

func (a *MemoryAccessor) Related(ctx context.Context, e Entity, field string) (Entity, error) {
	obj, err := asObject(e)
	if err != nil {
		return nil, err
	}
	ref, ok := obj.Refs[field]
	if !ok {
		return nil, fmt.Errorf("reference %q on %s:%s: %w", field, e.TypeName(), e.ID(), ErrUnknownField)
	}
	return ref, nil
}

func (a *MemoryAccessor) Collection(ctx context.Context, e Entity, field string) ([]Entity, error) {
	obj, err := asObject(e)
	if err != nil {
		return nil, err
	}
	list, ok := obj.Lists[field]
	if !ok {
		return nil, fmt.Errorf("collection %q on %s:%s: %w", field, e.TypeName(), e.ID(), ErrUnknownField)
	}
	return list, nil
}

func asObject(e Entity) (*Object, error) {
	obj, ok := e.(*Object)
	if !ok {
		return nil, fmt.Errorf("entity %s:%s is not an in-memory object: %w", e.TypeName(), e.ID(), ErrUnknownField)
	}
	return obj, nil
}
