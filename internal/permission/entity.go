// Package permission keeps role and permission records in sync with declared
// names: idempotent creation, rename by map, bulk delete and role grants.
package permission

import (
	"context"
	"errors"
)

var (
	ErrUnknownKind        = errors.New("permission: unknown entity kind")
	ErrPermissionNotFound = errors.New("permission: permission does not exist")
	ErrEntityNotFound     = errors.New("permission: entity not found")
)

// Kind selects the role or permission store. The two are never interchangeable.
type Kind string

const (
	KindRole       Kind = "role"
	KindPermission Kind = "permission"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindRole || k == KindPermission
}

// Table returns the table holding entities of this kind.
func (k Kind) Table() string {
	if k == KindPermission {
		return "permissions"
	}
	return "roles"
}

// Entity is a named role or permission record.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntityStore persists roles, permissions and role grants.
type EntityStore interface {
	// FindOrCreate returns the entity with the given name, creating it if absent.
	FindOrCreate(ctx context.Context, kind Kind, name string) (Entity, error)
	// DeleteByNames removes all entities whose name is in names.
	DeleteByNames(ctx context.Context, kind Kind, names Names) (int64, error)
	// FindByNames returns the entities whose name is in names.
	FindByNames(ctx context.Context, kind Kind, names Names) ([]Entity, error)
	// Save persists a changed entity name.
	Save(ctx context.Context, kind Kind, entity Entity) error
	// Grant gives role every named permission. Pairs already granted are kept.
	Grant(ctx context.Context, role Entity, permissionNames Names) error
}
