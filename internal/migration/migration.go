package migration

import (
	"context"
	"fmt"

	"adminkit/internal/permission"
)

// Migration is a declarative role/permission change. Up creates roles and
// permissions, applies the assignment table, then renames. Down un-renames
// and deletes what Up created.
//
// Down does not revoke the grants made by Up.
type Migration struct {
	ID                string                     `yaml:"id"`
	Description       string                     `yaml:"description"`
	CreateRoles       permission.Names           `yaml:"create_roles"`
	CreatePermissions permission.Names           `yaml:"create_permissions"`
	Assign            permission.AssignmentTable `yaml:"assign"`
	RenameRoles       permission.RenameMap       `yaml:"rename_roles"`
	RenamePermissions permission.RenameMap       `yaml:"rename_permissions"`
}

// Up applies the migration.
func (m *Migration) Up(ctx context.Context, s *permission.Synchronizer) error {
	if _, err := s.CreateRoles(ctx, m.CreateRoles); err != nil {
		return fmt.Errorf("create roles: %w", err)
	}
	if _, err := s.CreatePermissions(ctx, m.CreatePermissions); err != nil {
		return fmt.Errorf("create permissions: %w", err)
	}

	if m.Assign.All {
		if err := s.AssignPermissionsToRoles(ctx, m.CreatePermissions, m.CreateRoles); err != nil {
			return fmt.Errorf("assign permissions: %w", err)
		}
	} else {
		for _, g := range m.Assign.Grants {
			if err := s.AssignPermissionsToRoles(ctx, g.Permissions, g.Roles); err != nil {
				return fmt.Errorf("assign permissions: %w", err)
			}
		}
	}

	if _, err := s.RenameRoles(ctx, m.RenameRoles); err != nil {
		return fmt.Errorf("rename roles: %w", err)
	}
	if _, err := s.RenamePermissions(ctx, m.RenamePermissions); err != nil {
		return fmt.Errorf("rename permissions: %w", err)
	}
	return nil
}

// Down reverts the migration.
func (m *Migration) Down(ctx context.Context, s *permission.Synchronizer) error {
	if _, err := s.RenameRoles(ctx, m.RenameRoles.Flip()); err != nil {
		return fmt.Errorf("restore role names: %w", err)
	}
	if _, err := s.RenamePermissions(ctx, m.RenamePermissions.Flip()); err != nil {
		return fmt.Errorf("restore permission names: %w", err)
	}
	if err := s.DeletePermissions(ctx, m.CreatePermissions); err != nil {
		return fmt.Errorf("delete permissions: %w", err)
	}
	if err := s.DeleteRoles(ctx, m.CreateRoles); err != nil {
		return fmt.Errorf("delete roles: %w", err)
	}
	return nil
}
