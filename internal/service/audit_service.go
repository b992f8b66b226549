package service

import (
	"context"
	"fmt"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditEvent is one structural change to a row.
type AuditEvent struct {
	Table     string
	RecordID  string
	Action    string
	OldValues model.JSONB
	NewValues model.JSONB
	ActorID   *uuid.UUID
}

// Recorder is the audit sink. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, event AuditEvent)
}

type AuditLogResponse struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Table     string      `json:"table_name"`
	RecordID  string      `json:"record_id"`
	Action    string      `json:"action"`
	OldValues model.JSONB `json:"old_values"`
	NewValues model.JSONB `json:"new_values"`
	CreatedAt string      `json:"created_at"`
}

type AuditService interface {
	Recorder
	GetAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, log *zap.Logger) AuditService {
	return &auditService{repo: repo, log: log}
}

// Record writes the event outside any transaction in ctx and logs, rather
// than returns, any failure.
func (s *auditService) Record(ctx context.Context, event AuditEvent) {
	ctx = repository.WithoutTx(ctx)
	entry := &model.AuditLog{
		UserID:    event.ActorID,
		Table:     event.Table,
		RecordID:  event.RecordID,
		Action:    event.Action,
		OldValues: event.OldValues,
		NewValues: event.NewValues,
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		s.log.Error("failed to write audit log",
			zap.String("table", event.Table),
			zap.String("record_id", event.RecordID),
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:        l.ID,
			UserID:    userID,
			Username:  username,
			Table:     l.Table,
			RecordID:  l.RecordID,
			Action:    l.Action,
			OldValues: l.OldValues,
			NewValues: l.NewValues,
			CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
