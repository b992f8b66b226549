package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// AuditLog tracks who changed which row of which table, with before/after values.
type AuditLog struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Table     string     `gorm:"column:table_name;type:varchar(50);not null;index" json:"table_name"`
	RecordID  string     `gorm:"type:varchar(50);index" json:"record_id"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	OldValues JSONB      `gorm:"type:jsonb" json:"old_values"`
	NewValues JSONB      `gorm:"type:jsonb" json:"new_values"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}
