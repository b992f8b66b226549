package repository

import (
	"context"

	"marketplace/internal/apperror"
	"marketplace/internal/model"

	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Role, error)
	FindByIDWithPermissions(ctx context.Context, id uint) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	// UpdatePermissions replaces the role's permission set; an empty list
	// clears it.
	UpdatePermissions(ctx context.Context, roleID uint, permissionIDs []uint) error
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	// FindOrCreatePermission matches on Code and refreshes Name and Group.
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Model(role).Select("name", "description").Updates(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Delete(&model.Role{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) FindByID(ctx context.Context, id uint) (*model.Role, error) {
	return r.first(GetDB(ctx, r.db), "id = ?", id)
}

func (r *roleRepository) FindByIDWithPermissions(ctx context.Context, id uint) (*model.Role, error) {
	return r.first(GetDB(ctx, r.db).Preload("Permissions", orderPermissions), "id = ?", id)
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	return r.first(GetDB(ctx, r.db), "name = ?", name)
}

func (r *roleRepository) first(db *gorm.DB, query string, arg interface{}) (*model.Role, error) {
	var role model.Role
	if err := db.Where(query, arg).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Preload("Permissions", orderPermissions).
		Order("is_system desc, name asc").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := orderPermissions(GetDB(ctx, r.db)).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *roleRepository) UpdatePermissions(ctx context.Context, roleID uint, permissionIDs []uint) error {
	db := GetDB(ctx, r.db)
	role, err := r.first(db, "id = ?", roleID)
	if err != nil {
		return err
	}

	if len(permissionIDs) == 0 {
		return db.Model(role).Association("Permissions").Clear()
	}

	var perms []model.Permission
	if err := db.Where("id IN ?", permissionIDs).Find(&perms).Error; err != nil {
		return err
	}
	if len(perms) != len(uniqueIDs(permissionIDs)) {
		return apperror.Validation("unknown permission id in %v", permissionIDs)
	}
	return db.Model(role).Association("Permissions").Replace(perms)
}

// GetPermissionsByRoleName returns gorm.ErrRecordNotFound for an unknown
// role and an empty list for a role without permissions.
func (r *roleRepository) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	db := GetDB(ctx, r.db)
	role, err := r.first(db, "name = ?", roleName)
	if err != nil {
		return nil, err
	}

	codes := []string{}
	err = db.Model(&model.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", role.ID).
		Order("permissions.code asc").
		Pluck("permissions.code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *roleRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).
		Where(model.Permission{Code: perm.Code}).
		Assign(model.Permission{Name: perm.Name, Group: perm.Group}).
		FirstOrCreate(perm).Error
}

func orderPermissions(db *gorm.DB) *gorm.DB {
	return db.Order(`"group" asc, code asc`)
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
