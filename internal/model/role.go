package model

import (
	"time"
)

// Permission codes checked by middleware and services.
const (
	PermCatalogRead     = "catalog.read"
	PermCatalogWrite    = "catalog.write"
	PermApprovalsRead   = "approvals.read"
	PermApprovalsReview = "approvals.review"
	PermApprovalsBypass = "approvals.bypass"
	PermInventoryRead   = "inventory.read"
	PermInventoryWrite  = "inventory.write"
	PermAuditRead       = "audit.read"
	PermUsersWrite      = "users.write"
	PermRolesManage     = "roles.manage"
)

// Built-in role names
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleVendor  = "vendor"
)

// Role represents a user role with associated permissions
type Role struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"` // built-in roles cannot be deleted
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission represents a single permission that can be assigned to roles
type Permission struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Code  string `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"` // e.g. "inventory.write"
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Group string `gorm:"type:varchar(50);not null;index" json:"group"`
}
