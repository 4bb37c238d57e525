package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nidoproject/authz/internal/facts"
)

// Record is a lightweight entity handle: a type name and a primary key.
// All of its data lives in the database; the FactStore resolves fields on
// demand.
type Record struct {
	Type string
	Key  string
}

// NewRecord creates an entity handle for a stored row.
func NewRecord(typeName, id string) *Record {
	return &Record{Type: typeName, Key: id}
}

func (r *Record) TypeName() string { return r.Type }
func (r *Record) ID() string       { return r.Key }

// FactStore implements facts.Accessor over the community association
// schema (communities, users, groups, group memberships, rights). Field
// names follow the relational model, so policy documents can reference
// them directly.
type FactStore struct {
	db *sql.DB
}

// NewFactStore creates a fact store over an open database connection.
func NewFactStore(db *sql.DB) *FactStore {
	return &FactStore{db: db}
}

// attributeColumns whitelists the scalar attributes exposed per type.
// Field names map to column names; anything else is ErrUnknownField.
var attributeColumns = map[string]map[string]string{
	"community": {
		"id":   "id",
		"name": "name",
	},
	"user": {
		"id": "id",
	},
	"group": {
		"id":           "id",
		"name":         "name",
		"community_id": "community_id",
	},
	"right": {
		"id":              "id",
		"name":            "name",
		"community_id":    "community_id",
		"parent_right_id": "parent_right_id",
		"can_delegate":    "can_delegate",
		"create_groups":   "create_groups",
	},
}

var tableNames = map[string]string{
	"community": `communities`,
	"user":      `users`,
	"group":     `groups`,
	"right":     `rights`,
}

// Attribute returns a scalar column value of the entity's row.
func (s *FactStore) Attribute(ctx context.Context, e facts.Entity, field string) (any, error) {
	columns, ok := attributeColumns[e.TypeName()]
	if !ok {
		return nil, fmt.Errorf("entity type %q: %w", e.TypeName(), facts.ErrUnknownField)
	}
	column, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("attribute %q on %s: %w", field, e.TypeName(), facts.ErrUnknownField)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, column, tableNames[e.TypeName()])
	var value any
	if err := s.db.QueryRowContext(ctx, query, e.ID()).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s:%s not found", e.TypeName(), e.ID())
		}
		return nil, fmt.Errorf("failed to read attribute %s.%s: %w", e.TypeName(), field, err)
	}
	return value, nil
}

// Related resolves single-entity references. A NULL foreign key yields a
// nil entity, which the engine treats as "no derivation via this path".
func (s *FactStore) Related(ctx context.Context, e facts.Entity, field string) (facts.Entity, error) {
	var query, targetType string

	switch e.TypeName() + "." + field {
	case "group.managed_by":
		query, targetType = `SELECT managing_group_id FROM groups WHERE id = $1`, "group"
	case "group.right":
		query, targetType = `SELECT right_id FROM groups WHERE id = $1`, "right"
	case "group.community":
		query, targetType = `SELECT community_id FROM groups WHERE id = $1`, "community"
	case "right.parent_right":
		query, targetType = `SELECT parent_right_id FROM rights WHERE id = $1`, "right"
	case "right.community":
		query, targetType = `SELECT community_id FROM rights WHERE id = $1`, "community"
	default:
		return nil, fmt.Errorf("reference %q on %s: %w", field, e.TypeName(), facts.ErrUnknownField)
	}

	var ref sql.NullString
	if err := s.db.QueryRowContext(ctx, query, e.ID()).Scan(&ref); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s:%s not found", e.TypeName(), e.ID())
		}
		return nil, fmt.Errorf("failed to read reference %s.%s: %w", e.TypeName(), field, err)
	}
	if !ref.Valid {
		return nil, nil
	}
	return NewRecord(targetType, ref.String), nil
}

// Collection resolves ordered entity collections. Results are ordered by
// primary key so decisions are reproducible for identical data.
func (s *FactStore) Collection(ctx context.Context, e facts.Entity, field string) ([]facts.Entity, error) {
	var query, targetType string

	switch e.TypeName() + "." + field {
	case "group.custom_members":
		query, targetType = `SELECT member_id FROM group_memberships WHERE group_id = $1 ORDER BY member_id`, "user"
	case "group.manages":
		// Root groups manage themselves; the self row is not a managee.
		query, targetType = `SELECT id FROM groups WHERE managing_group_id = $1 AND id <> $1 ORDER BY id`, "group"
	case "user.groups":
		query, targetType = `SELECT group_id FROM group_memberships WHERE member_id = $1 ORDER BY group_id`, "group"
	case "right.groups":
		query, targetType = `SELECT id FROM groups WHERE right_id = $1 ORDER BY id`, "group"
	case "right.child_rights":
		// Root rights are their own parent; the self row is not a child.
		query, targetType = `SELECT id FROM rights WHERE parent_right_id = $1 AND id <> $1 ORDER BY id`, "right"
	case "community.groups":
		query, targetType = `SELECT id FROM groups WHERE community_id = $1 ORDER BY id`, "group"
	case "community.rights":
		query, targetType = `SELECT id FROM rights WHERE community_id = $1 ORDER BY id`, "right"
	default:
		return nil, fmt.Errorf("collection %q on %s: %w", field, e.TypeName(), facts.ErrUnknownField)
	}

	rows, err := s.db.QueryContext(ctx, query, e.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s.%s: %w", e.TypeName(), field, err)
	}
	defer rows.Close()

	var result []facts.Entity
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan collection %s.%s: %w", e.TypeName(), field, err)
		}
		result = append(result, NewRecord(targetType, id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s.%s: %w", e.TypeName(), field, err)
	}
	return result, nil
}
