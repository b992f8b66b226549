package model

import (
	"time"

	"github.com/google/uuid"
)

// Request types
const (
	RequestTypeCreate = "create"
	RequestTypeUpdate = "update"
	RequestTypeDelete = "delete"
)

// Approval statuses. Everything except pending is terminal.
const (
	ApprovalPending   = "pending"
	ApprovalApproved  = "approved"
	ApprovalRejected  = "rejected"
	ApprovalCancelled = "cancelled"
)

// History actions
const (
	HistorySubmitted = "submitted"
	HistoryModified  = "modified"
	HistoryApproved  = "approved"
	HistoryRejected  = "rejected"
	HistoryCancelled = "cancelled"
	HistoryApplied   = "applied"
)

// Notification types
const (
	NotificationNewRequest = "new_request"
	NotificationApproved   = "request_approved"
	NotificationRejected   = "request_rejected"
)

// ApprovalRequest is a proposed create/update/delete of a master data entity
// awaiting review. The change only reaches the entity table once the request
// is approved and applied.
type ApprovalRequest struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RequestType     string     `gorm:"type:varchar(10);not null;index" json:"request_type"`
	EntityType      string     `gorm:"type:varchar(30);not null;index" json:"entity_type"`
	EntityID        *uint      `gorm:"index" json:"entity_id"` // nil until a create is applied
	CurrentData     JSONB      `gorm:"type:jsonb" json:"current_data"`
	ProposedData    JSONB      `gorm:"type:jsonb;not null" json:"proposed_data"`
	FinalData       JSONB      `gorm:"type:jsonb" json:"final_data"`
	ChangeSummary   string     `gorm:"type:text" json:"change_summary"`
	RequestReason   string     `gorm:"type:text" json:"request_reason"`
	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	IsApplied       bool       `gorm:"not null;default:false" json:"is_applied"`
	RequestedBy     uuid.UUID  `gorm:"type:uuid;not null;index" json:"requested_by"`
	Requester       *User      `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	Reviewer        *User      `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewerRemarks string     `gorm:"type:text" json:"reviewer_remarks"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	AppliedBy       *uuid.UUID `gorm:"type:uuid" json:"applied_by"`
	AppliedAt       *time.Time `json:"applied_at"`
	CancelReason    string     `gorm:"type:text" json:"cancel_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	History []ApprovalHistory `gorm:"foreignKey:ApprovalRequestID" json:"history,omitempty"`
}

// ApprovalHistory is one immutable row per lifecycle transition.
type ApprovalHistory struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ApprovalRequestID uint      `gorm:"not null;index" json:"approval_request_id"`
	Action            string    `gorm:"type:varchar(20);not null" json:"action"`
	FromStatus        string    `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus          string    `gorm:"type:varchar(20)" json:"to_status"`
	DataSnapshot      JSONB     `gorm:"type:jsonb" json:"data_snapshot"`
	Remarks           string    `gorm:"type:text" json:"remarks"`
	ActorID           uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`
	CreatedAt         time.Time `json:"created_at"`
}

func (ApprovalHistory) TableName() string {
	return "approval_history"
}

// ApprovalNotification is one row per (request, recipient).
type ApprovalNotification struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ApprovalRequestID uint       `gorm:"not null;index" json:"approval_request_id"`
	RecipientID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type              string     `gorm:"type:varchar(30);not null" json:"type"`
	Title             string     `gorm:"type:varchar(255);not null" json:"title"`
	Message           string     `gorm:"type:text" json:"message"`
	IsRead            bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt            *time.Time `json:"read_at"`
	CreatedAt         time.Time  `json:"created_at"`
}
