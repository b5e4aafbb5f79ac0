package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEntities_Idempotent(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	first, err := s.CreateRoles(ctx, Names{"admin", "editor"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "admin", first[0].Name)
	assert.Equal(t, "editor", first[1].Name)

	second, err := s.CreateRoles(ctx, Names{"admin", "editor"})
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing entities are returned unmodified")
	assert.Len(t, ms.List(KindRole), 2)
	assert.Empty(t, ms.List(KindPermission), "kinds are never mixed")
}

func TestCreateEntities_EmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	for _, names := range []Names{nil, {}, {""}} {
		got, err := s.CreatePermissions(ctx, names)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Zero(t, ms.Writes())
}

func TestCreateEntities_UnknownKind(t *testing.T) {
	s := NewSynchronizer(NewMemoryStore())
	_, err := s.CreateEntities(context.Background(), Kind("group"), Name("x"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDeleteEntities(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	_, err := s.CreateRoles(ctx, Names{"admin", "editor", "viewer"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRoles(ctx, Names{"editor", "viewer", "ghost"}))
	roles := ms.List(KindRole)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Name)

	writes := ms.Writes()
	require.NoError(t, s.DeleteRoles(ctx, nil))
	assert.Equal(t, writes, ms.Writes())
}

func TestRenameEntities_OnlyExistingMatches(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	created, err := s.CreateRoles(ctx, Names{"admin", "editor"})
	require.NoError(t, err)

	renamed, err := s.RenameRoles(ctx, RenameMap{"editor": "writer", "ghost": "phantom"})
	require.NoError(t, err)
	require.Len(t, renamed, 1)
	assert.Equal(t, created[1].ID, renamed[0].ID)
	assert.Equal(t, "writer", renamed[0].Name)

	names := []string{}
	for _, e := range ms.List(KindRole) {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"admin", "writer"}, names)
}

func TestRenameEntities_NormalizesNames(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	_, err := s.CreateRoles(ctx, Names{"editor ", "viewer"})
	require.NoError(t, err)

	renamed, err := s.RenameRoles(ctx, RenameMap{"editor ": "writer", "viewer": " reader ", "admin": " "})
	require.NoError(t, err)
	require.Len(t, renamed, 2)

	names := []string{}
	for _, e := range ms.List(KindRole) {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"writer", "reader"}, names)

	require.NoError(t, s.DeleteRoles(ctx, Names{"reader"}))
	assert.Len(t, ms.List(KindRole), 1)
}

func TestRenameEntities_EmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	got, err := s.RenamePermissions(ctx, RenameMap{})
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.RenamePermissions(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, ms.Writes())
}

func TestAssignPermissionsToRoles(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	roles, err := s.CreateRoles(ctx, Names{"admin", "editor"})
	require.NoError(t, err)
	perms, err := s.CreatePermissions(ctx, Names{"posts.edit", "posts.delete"})
	require.NoError(t, err)

	require.NoError(t, s.AssignPermissionsToRoles(ctx, Name("posts.edit"), Names{"admin", "editor", "ghost"}))
	require.NoError(t, s.AssignPermissionsToRoles(ctx, Names{"posts.edit", "posts.delete"}, Name("admin")))

	assert.ElementsMatch(t, []string{perms[0].ID, perms[1].ID}, ms.GrantedPermissionIDs(roles[0].ID))
	assert.Equal(t, []string{perms[0].ID}, ms.GrantedPermissionIDs(roles[1].ID))
}

func TestAssignPermissionsToRoles_UnknownPermission(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)

	roles, err := s.CreateRoles(ctx, Name("admin"))
	require.NoError(t, err)

	err = s.AssignPermissionsToRoles(ctx, Name("posts.publish"), Name("admin"))
	assert.ErrorIs(t, err, ErrPermissionNotFound)
	assert.Contains(t, err.Error(), "posts.publish")
	assert.Empty(t, ms.GrantedPermissionIDs(roles[0].ID))
}

func TestAssignPermissionsToRoles_EmptyIsNoop(t *testing.T) {
	ms := NewMemoryStore()
	s := NewSynchronizer(ms)
	require.NoError(t, s.AssignPermissionsToRoles(context.Background(), nil, Name("admin")))
	require.NoError(t, s.AssignPermissionsToRoles(context.Background(), Name("x"), nil))
	assert.Zero(t, ms.Writes())
}
