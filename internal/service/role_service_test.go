package service

import (
	"strconv"
	"testing"

	"marketplace/internal/apperror"
	"marketplace/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.roles.SeedDefaultRolesAndPermissions(f.ctx))

	assert.Equal(t, int64(len(DefaultPermissions)), f.count(t, &model.Permission{}))
	assert.Equal(t, int64(len(DefaultRoles)), f.count(t, &model.Role{}))

	perms, err := f.roles.GetPermissionsByRoleName(f.ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, perms, len(DefaultPermissions))

	perms, err = f.roles.GetPermissionsByRoleName(f.ctx, model.RoleManager)
	require.NoError(t, err)
	assert.Contains(t, perms, model.PermApprovalsReview)
	assert.NotContains(t, perms, model.PermApprovalsBypass)

	_, err = f.roles.GetPermissionsByRoleName(f.ctx, "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSystemRolesAreProtected(t *testing.T) {
	f := newFixture(t)

	roles, err := f.roles.ListRoles(f.ctx)
	require.NoError(t, err)
	var vendorID string
	for _, r := range roles {
		if r.Name == model.RoleVendor {
			vendorID = strconv.FormatUint(uint64(r.ID), 10)
			assert.True(t, r.IsSystem)
		}
	}
	require.NotEmpty(t, vendorID)

	err = f.roles.DeleteRole(f.ctx, vendorID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.roles.UpdateRole(f.ctx, vendorID, UpdateRoleRequest{Name: "supplier"})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.roles.GetRole(f.ctx, "abc")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCustomRoleLifecycle(t *testing.T) {
	f := newFixture(t)

	perms, err := f.roles.ListPermissions(f.ctx)
	require.NoError(t, err)
	var readID uint
	for _, p := range perms {
		if p.Code == model.PermCatalogRead {
			readID = p.ID
		}
	}

	role, err := f.roles.CreateRole(f.ctx, CreateRoleRequest{Name: "auditor", PermissionIDs: []uint{readID}})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)
	assert.False(t, role.IsSystem)

	_, err = f.roles.CreateRole(f.ctx, CreateRoleRequest{Name: "auditor"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	id := strconv.FormatUint(uint64(role.ID), 10)
	codes, err := f.roles.GetPermissionsByRoleName(f.ctx, "auditor")
	require.NoError(t, err)
	assert.Equal(t, []string{model.PermCatalogRead}, codes)

	_, err = f.roles.UpdateRolePermissions(f.ctx, id, UpdateRolePermissionsRequest{PermissionIDs: []uint{readID, 9999}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	cleared, err := f.roles.UpdateRolePermissions(f.ctx, id, UpdateRolePermissionsRequest{PermissionIDs: []uint{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.Permissions)

	require.NoError(t, f.roles.DeleteRole(f.ctx, id))
	_, err = f.roles.GetRole(f.ctx, id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
