package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pusher delivers a payload to a user's live connections.
type Pusher interface {
	SendToUser(userID uuid.UUID, payload []byte)
}

type NotificationService interface {
	// NotifyReviewers and NotifyRequester write inside the caller's
	// transaction; their error must abort it.
	NotifyReviewers(ctx context.Context, req *model.ApprovalRequest) ([]model.ApprovalNotification, error)
	NotifyRequester(ctx context.Context, req *model.ApprovalRequest) ([]model.ApprovalNotification, error)
	// Push sends already committed notifications over websocket.
	Push(notifications []model.ApprovalNotification)

	List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.ApprovalNotification, int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id uint, recipientID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo             repository.NotificationRepository
	users            repository.UserRepository
	pusher           Pusher
	reviewPermission string
	log              *zap.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	pusher Pusher,
	reviewPermission string,
	log *zap.Logger,
) NotificationService {
	if reviewPermission == "" {
		reviewPermission = model.PermApprovalsReview
	}
	return &notificationService{
		repo:             repo,
		users:            users,
		pusher:           pusher,
		reviewPermission: reviewPermission,
		log:              log,
	}
}

func (s *notificationService) NotifyReviewers(ctx context.Context, req *model.ApprovalRequest) ([]model.ApprovalNotification, error) {
	reviewers, err := s.users.ListActiveWithPermission(ctx, s.reviewPermission)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reviewers: %w", err)
	}

	title := "New approval request"
	message := fmt.Sprintf("A %s request for %s is waiting for review", req.RequestType, req.EntityType)
	if req.ChangeSummary != "" {
		message += ": " + req.ChangeSummary
	}

	notifications := make([]model.ApprovalNotification, 0, len(reviewers))
	for _, u := range reviewers {
		notifications = append(notifications, model.ApprovalNotification{
			ApprovalRequestID: req.ID,
			RecipientID:       u.ID,
			Type:              model.NotificationNewRequest,
			Title:             title,
			Message:           message,
		})
	}

	if err := s.repo.BulkCreate(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to create notifications: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) NotifyRequester(ctx context.Context, req *model.ApprovalRequest) ([]model.ApprovalNotification, error) {
	notifType := model.NotificationApproved
	title := "Approval request approved"
	if req.Status == model.ApprovalRejected {
		notifType = model.NotificationRejected
		title = "Approval request rejected"
	}

	message := fmt.Sprintf("Your %s request for %s was %s", req.RequestType, req.EntityType, req.Status)
	if req.ReviewerRemarks != "" {
		message += ": " + req.ReviewerRemarks
	}

	notifications := []model.ApprovalNotification{{
		ApprovalRequestID: req.ID,
		RecipientID:       req.RequestedBy,
		Type:              notifType,
		Title:             title,
		Message:           message,
	}}
	if err := s.repo.BulkCreate(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) Push(notifications []model.ApprovalNotification) {
	if s.pusher == nil {
		return
	}
	for _, n := range notifications {
		payload, err := json.Marshal(map[string]interface{}{
			"type": "approval_notification",
			"data": n,
		})
		if err != nil {
			s.log.Warn("failed to encode notification", zap.Uint("notification_id", n.ID), zap.Error(err))
			continue
		}
		s.pusher.SendToUser(n.RecipientID, payload)
	}
}

func (s *notificationService) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.ApprovalNotification, int64, error) {
	items, total, err := s.repo.ListForRecipient(ctx, recipientID, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return items, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, recipientID)
}

// MarkRead is idempotent for an already read notification.
func (s *notificationService) MarkRead(ctx context.Context, id uint, recipientID uuid.UUID) error {
	changed, err := s.repo.MarkRead(ctx, id, recipientID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if changed {
		return nil
	}
	exists, err := s.repo.Exists(ctx, id, recipientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("notification %d not found", id)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipientID, time.Now())
}
