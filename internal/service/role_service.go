package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PermissionIDs []uint `json:"permission_ids"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []uint `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    uint   `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo repository.RoleRepository
	tx   repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, tx repository.TransactionManager) RoleService {
	return &roleService{repo: repo, tx: tx}
}

// DefaultPermissions is every permission code the service checks.
var DefaultPermissions = []model.Permission{
	{Code: model.PermCatalogRead, Name: "View catalog", Group: "catalog"},
	{Code: model.PermCatalogWrite, Name: "Change catalog", Group: "catalog"},
	{Code: model.PermApprovalsRead, Name: "View approval requests", Group: "approvals"},
	{Code: model.PermApprovalsReview, Name: "Approve or reject requests", Group: "approvals"},
	{Code: model.PermApprovalsBypass, Name: "Change catalog without review", Group: "approvals"},
	{Code: model.PermInventoryRead, Name: "View inventory", Group: "inventory"},
	{Code: model.PermInventoryWrite, Name: "Manage inventory", Group: "inventory"},
	{Code: model.PermAuditRead, Name: "View audit log", Group: "audit"},
	{Code: model.PermUsersWrite, Name: "Manage users", Group: "users"},
	{Code: model.PermRolesManage, Name: "Manage roles", Group: "roles"},
}

// DefaultRoles maps each built-in role to its permission codes.
var DefaultRoles = map[string]struct {
	Description string
	PermCodes   []string
}{
	model.RoleAdmin: {
		Description: "Administrator, full access",
		PermCodes: []string{
			model.PermCatalogRead, model.PermCatalogWrite,
			model.PermApprovalsRead, model.PermApprovalsReview, model.PermApprovalsBypass,
			model.PermInventoryRead, model.PermInventoryWrite,
			model.PermAuditRead, model.PermUsersWrite, model.PermRolesManage,
		},
	},
	model.RoleManager: {
		Description: "Reviews catalog change requests",
		PermCodes: []string{
			model.PermCatalogRead, model.PermCatalogWrite,
			model.PermApprovalsRead, model.PermApprovalsReview,
			model.PermInventoryRead, model.PermAuditRead,
		},
	},
	model.RoleVendor: {
		Description: "Vendor, proposes catalog changes and manages own stock",
		PermCodes: []string{
			model.PermCatalogRead, model.PermCatalogWrite,
			model.PermApprovalsRead,
			model.PermInventoryRead, model.PermInventoryWrite,
		},
	},
}

// --- Implementation ---

func parseRoleID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, apperror.Validation("invalid role id %q", id)
	}
	return uint(n), nil
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseRoleID(id)
	if err != nil {
		return nil, err
	}

	role, err := s.repo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return nil, notFoundOr(err, "role %d not found", roleID)
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, apperror.Conflict("role %q already exists", req.Name)
	}

	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if len(req.PermissionIDs) > 0 {
			if err := s.repo.UpdatePermissions(txCtx, role.ID, req.PermissionIDs); err != nil {
				return fmt.Errorf("failed to assign permissions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, strconv.FormatUint(uint64(role.ID), 10))
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := parseRoleID(id)
	if err != nil {
		return nil, err
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, notFoundOr(err, "role %d not found", roleID)
	}
	if role.IsSystem && role.Name != req.Name {
		return nil, apperror.InvalidState("system role %q cannot be renamed", role.Name)
	}

	role.Name = req.Name
	role.Description = req.Description
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := parseRoleID(id)
	if err != nil {
		return err
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return notFoundOr(err, "role %d not found", roleID)
	}
	if role.IsSystem {
		return apperror.InvalidState("cannot delete system role %q", role.Name)
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdatePermissions(txCtx, roleID, nil); err != nil {
			return fmt.Errorf("failed to clear permissions: %w", err)
		}
		if err := s.repo.Delete(txCtx, roleID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return nil
	})
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := parseRoleID(roleID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePermissions(ctx, id, req.PermissionIDs); err != nil {
		return nil, notFoundOr(err, "role %d not found", id)
	}

	return s.GetRole(ctx, roleID)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("role %q not found", roleName)
		}
		return nil, err
	}
	return codes, nil
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles
// if not already present. Built-in roles get their permission set replaced.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		idByCode := make(map[string]uint, len(DefaultPermissions))
		for _, def := range DefaultPermissions {
			p := def
			if err := s.repo.FindOrCreatePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission %q: %w", p.Code, err)
			}
			idByCode[p.Code] = p.ID
		}

		for name, def := range DefaultRoles {
			role, err := s.repo.FindByName(txCtx, name)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = &model.Role{Name: name, Description: def.Description, IsSystem: true}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role %q: %w", name, err)
				}
			} else if err != nil {
				return err
			}

			ids := make([]uint, 0, len(def.PermCodes))
			for _, code := range def.PermCodes {
				ids = append(ids, idByCode[code])
			}
			if err := s.repo.UpdatePermissions(txCtx, role.ID, ids); err != nil {
				return fmt.Errorf("failed to assign permissions to role %q: %w", name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format(time.DateTime),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID,
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
