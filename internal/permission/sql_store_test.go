package permission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminkit/internal/permission"
	"adminkit/internal/store"
	"adminkit/internal/testutil"
)

func newSQLSync(t *testing.T) (*permission.SQLStore, *permission.Synchronizer) {
	t.Helper()
	ps := permission.NewSQLStore(testutil.NewSQLiteStore(t))
	return ps, permission.NewSynchronizer(ps)
}

func TestSQLStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ps, s := newSQLSync(t)

	first, err := s.CreatePermissions(ctx, permission.Names{"posts.edit", "posts.delete"})
	require.NoError(t, err)
	second, err := s.CreatePermissions(ctx, permission.Names{"posts.delete", "posts.edit"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[1])
	assert.Equal(t, first[1], second[0])

	all, err := ps.List(ctx, permission.KindPermission)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLStore_RenameAndDelete(t *testing.T) {
	ctx := context.Background()
	ps, s := newSQLSync(t)

	_, err := s.CreateRoles(ctx, permission.Names{"admin", "editor", "viewer"})
	require.NoError(t, err)

	renamed, err := s.RenameRoles(ctx, permission.RenameMap{"editor": "writer", "ghost": "phantom"})
	require.NoError(t, err)
	require.Len(t, renamed, 1)
	assert.Equal(t, "writer", renamed[0].Name)

	require.NoError(t, s.DeleteRoles(ctx, permission.Names{"viewer", "ghost"}))

	all, err := ps.List(ctx, permission.KindRole)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "admin", all[0].Name)
	assert.Equal(t, "writer", all[1].Name)
}

func TestSQLStore_RenameOntoExistingNameFails(t *testing.T) {
	ctx := context.Background()
	_, s := newSQLSync(t)

	_, err := s.CreateRoles(ctx, permission.Names{"admin", "editor"})
	require.NoError(t, err)

	_, err = s.RenameRoles(ctx, permission.RenameMap{"editor": "admin"})
	assert.ErrorIs(t, err, store.ErrUniqueViolation)
}

func TestSQLStore_GrantOutlivesDeletedEntities(t *testing.T) {
	ctx := context.Background()
	ps, s := newSQLSync(t)

	roles, err := s.CreateRoles(ctx, permission.Name("admin"))
	require.NoError(t, err)
	perms, err := s.CreatePermissions(ctx, permission.Name("posts.edit"))
	require.NoError(t, err)

	require.NoError(t, s.AssignPermissionsToRoles(ctx, permission.Name("posts.edit"), permission.Name("admin")))
	// Granting twice keeps a single row
	require.NoError(t, s.AssignPermissionsToRoles(ctx, permission.Name("posts.edit"), permission.Name("admin")))

	names, err := ps.PermissionNames(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts.edit"}, names)

	require.NoError(t, s.DeletePermissions(ctx, permission.Name("posts.edit")))
	require.NoError(t, s.DeleteRoles(ctx, permission.Name("admin")))

	ids, err := ps.GrantedPermissionIDs(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{perms[0].ID}, ids)
}

func TestSQLStore_GrantUnknownPermission(t *testing.T) {
	ctx := context.Background()
	ps, s := newSQLSync(t)

	roles, err := s.CreateRoles(ctx, permission.Name("admin"))
	require.NoError(t, err)
	_, err = s.CreatePermissions(ctx, permission.Name("posts.edit"))
	require.NoError(t, err)

	err = s.AssignPermissionsToRoles(ctx, permission.Names{"posts.edit", "posts.publish"}, permission.Name("admin"))
	assert.ErrorIs(t, err, permission.ErrPermissionNotFound)

	ids, err := ps.GrantedPermissionIDs(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
