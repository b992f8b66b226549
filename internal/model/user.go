package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User types
const (
	UserTypeAdmin  = "admin"
	UserTypeStaff  = "staff"
	UserTypeVendor = "vendor"
)

// User is an authenticated principal. Vendors own inventory rows; admins and
// staff maintain master data.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	Role      string         `gorm:"type:varchar(50);not null;index" json:"role"` // role name, see Role
	UserType  string         `gorm:"type:varchar(20);not null;default:'staff'" json:"user_type"`
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Actor is the identity performing an operation, as resolved by the auth
// middleware from the access token and the role's permission codes.
type Actor struct {
	ID          uuid.UUID `json:"id"`
	UserType    string    `json:"user_type"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
}

func (a Actor) HasPermission(code string) bool {
	for _, p := range a.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

func (a Actor) IsVendor() bool {
	return a.UserType == UserTypeVendor
}
