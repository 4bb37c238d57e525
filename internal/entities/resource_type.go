package entities

// ResourceType is the declaration for one kind of resource: the permission
// names it supports, the role names an actor can hold on it, and the named
// relations pointing at other resource types. Declarations are immutable
// once registered with the schema registry.
type ResourceType struct {
	Name        string            // Type name (e.g., "group", "right")
	Permissions []string          // Declared permission names
	Roles       []string          // Declared role names
	Relations   map[string]string // Relation name -> target type name
}

// HasPermission returns true if the permission name is declared on the type.
func (t *ResourceType) HasPermission(name string) bool {
	for _, p := range t.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// HasRole returns true if the role name is declared on the type.
func (t *ResourceType) HasRole(name string) bool {
	for _, r := range t.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasRelation returns true if the relation name is declared on the type.
func (t *ResourceType) HasRelation(name string) bool {
	_, ok := t.Relations[name]
	return ok
}

// RelationTarget returns the declared target type name of a relation, or ""
// if the relation is not declared.
func (t *ResourceType) RelationTarget(relation string) string {
	return t.Relations[relation]
}

// Declares returns true if the given name is declared on the type in the
// given family.
func (t *ResourceType) Declares(family Family, name string) bool {
	switch family {
	case FamilyPermission:
		return t.HasPermission(name)
	case FamilyRole:
		return t.HasRole(name)
	case FamilyRelation:
		return t.HasRelation(name)
	}
	return false
}
