package permission

import (
	"context"
	"fmt"
)

// Synchronizer creates, renames and deletes roles and permissions by name.
// Empty inputs are no-ops and report nil results.
type Synchronizer struct {
	store EntityStore
}

func NewSynchronizer(store EntityStore) *Synchronizer {
	return &Synchronizer{store: store}
}

// CreateEntities finds or creates one entity per name, in input order.
func (s *Synchronizer) CreateEntities(ctx context.Context, kind Kind, names Names) ([]Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	names = NormalizeNames(names)
	if len(names) == 0 {
		return nil, nil
	}

	entities := make([]Entity, 0, len(names))
	for _, name := range names {
		e, err := s.store.FindOrCreate(ctx, kind, name)
		if err != nil {
			return nil, fmt.Errorf("create %s %q: %w", kind, name, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// DeleteEntities removes every entity of kind whose name is listed, in one
// bulk delete. Unknown names are ignored.
func (s *Synchronizer) DeleteEntities(ctx context.Context, kind Kind, names Names) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	names = NormalizeNames(names)
	if len(names) == 0 {
		return nil
	}
	if _, err := s.store.DeleteByNames(ctx, kind, names); err != nil {
		return fmt.Errorf("delete %ss: %w", kind, err)
	}
	return nil
}

// RenameEntities renames every existing entity whose current name is a key of
// m and returns the renamed entities. Keys without a matching entity are skipped.
// Both sides of m are normalized like Names.
func (s *Synchronizer) RenameEntities(ctx context.Context, kind Kind, m RenameMap) ([]Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	m = NormalizeRenameMap(m)
	if len(m) == 0 {
		return nil, nil
	}

	entities, err := s.store.FindByNames(ctx, kind, m.Keys())
	if err != nil {
		return nil, fmt.Errorf("find %ss to rename: %w", kind, err)
	}

	renamed := make([]Entity, 0, len(entities))
	for _, e := range entities {
		newName, ok := m[e.Name]
		if !ok {
			continue
		}
		e.Name = newName
		if err := s.store.Save(ctx, kind, e); err != nil {
			return nil, fmt.Errorf("rename %s to %q: %w", kind, newName, err)
		}
		renamed = append(renamed, e)
	}
	return renamed, nil
}

// AssignPermissionsToRoles grants the named permissions to every existing role
// in roleNames.
func (s *Synchronizer) AssignPermissionsToRoles(ctx context.Context, permissionNames, roleNames Names) error {
	roleNames = NormalizeNames(roleNames)
	permissionNames = NormalizeNames(permissionNames)
	if len(roleNames) == 0 || len(permissionNames) == 0 {
		return nil
	}

	roles, err := s.store.FindByNames(ctx, KindRole, roleNames)
	if err != nil {
		return fmt.Errorf("find roles: %w", err)
	}
	for _, role := range roles {
		if err := s.store.Grant(ctx, role, permissionNames); err != nil {
			return fmt.Errorf("grant permissions to role %q: %w", role.Name, err)
		}
	}
	return nil
}

func (s *Synchronizer) CreateRoles(ctx context.Context, names Names) ([]Entity, error) {
	return s.CreateEntities(ctx, KindRole, names)
}

func (s *Synchronizer) CreatePermissions(ctx context.Context, names Names) ([]Entity, error) {
	return s.CreateEntities(ctx, KindPermission, names)
}

func (s *Synchronizer) DeleteRoles(ctx context.Context, names Names) error {
	return s.DeleteEntities(ctx, KindRole, names)
}

func (s *Synchronizer) DeletePermissions(ctx context.Context, names Names) error {
	return s.DeleteEntities(ctx, KindPermission, names)
}

func (s *Synchronizer) RenameRoles(ctx context.Context, m RenameMap) ([]Entity, error) {
	return s.RenameEntities(ctx, KindRole, m)
}

func (s *Synchronizer) RenamePermissions(ctx context.Context, m RenameMap) ([]Entity, error) {
	return s.RenameEntities(ctx, KindPermission, m)
}
