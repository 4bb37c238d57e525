package entities

// Family identifies which rule family a clause or query belongs to.
// Queries in one family may issue sub-queries into another (a permission
// derived from a role, a role derived from a relation).
type Family string

const (
	FamilyRelation   Family = "relation"
	FamilyRole       Family = "role"
	FamilyPermission Family = "permission"
)

// Valid reports whether f is one of the three known families.
func (f Family) Valid() bool {
	switch f {
	case FamilyRelation, FamilyRole, FamilyPermission:
		return true
	}
	return false
}
