package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminkit/internal/permission"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_rename.yml", `
description: rename editors
rename_roles:
  editor: writer
`)
	writeFile(t, dir, "001_blog.yaml", `
create_roles: [admin, editor]
create_permissions: posts.edit
assign: true
`)
	writeFile(t, dir, "003_grants.yaml", `
id: custom-id
create_permissions: [posts.view]
assign:
  viewer: posts.view
`)
	writeFile(t, dir, "README.md", "not a migration")

	migs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, migs, 3)

	assert.Equal(t, "001_blog", migs[0].ID)
	assert.Equal(t, permission.Names{"admin", "editor"}, migs[0].CreateRoles)
	assert.Equal(t, permission.Names{"posts.edit"}, migs[0].CreatePermissions)
	assert.True(t, migs[0].Assign.All)

	assert.Equal(t, "002_rename", migs[1].ID)
	assert.Equal(t, "rename editors", migs[1].Description)
	assert.Equal(t, permission.RenameMap{"editor": "writer"}, migs[1].RenameRoles)

	assert.Equal(t, "custom-id", migs[2].ID)
	require.Len(t, migs[2].Assign.Grants, 1)
	assert.Equal(t, permission.Names{"viewer"}, migs[2].Assign.Grants[0].Roles)
	assert.Equal(t, permission.Names{"posts.view"}, migs[2].Assign.Grants[0].Permissions)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "000_placeholder.yaml", "")

	migs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, migs, 1)
	assert.Equal(t, "000_placeholder", migs[0].ID)
}

func TestLoad_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001.yaml", "create_role: [admin]\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ShippedMigrations(t *testing.T) {
	migs, err := Load(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "2024_01_01_000000_blog_roles", migs[0].ID)
	assert.True(t, migs[0].Assign.All)
	assert.Equal(t, permission.RenameMap{"editor": "writer"}, migs[1].RenameRoles)
	assert.Equal(t, permission.Names{"viewer"}, migs[1].CreateRoles)
}
