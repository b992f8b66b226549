package repository

import (
	"context"
	"time"

	"marketplace/internal/model"
	"marketplace/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	BulkCreate(ctx context.Context, notifications []model.ApprovalNotification) error
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.ApprovalNotification, int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	// MarkRead flips is_read once and reports whether a row changed.
	MarkRead(ctx context.Context, id uint, recipientID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	Exists(ctx context.Context, id uint, recipientID uuid.UUID) (bool, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) BulkCreate(ctx context.Context, notifications []model.ApprovalNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&notifications).Error
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.ApprovalNotification, int64, error) {
	var items []model.ApprovalNotification
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("recipient_id = ?", recipientID)
		if unreadOnly {
			db = db.Where("is_read = ?", false)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ApprovalNotification{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).Order("created_at desc, id desc").Scopes(pagination.Scope(page, limit)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalNotification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint, recipientID uuid.UUID, at time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.ApprovalNotification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.ApprovalNotification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Exists(ctx context.Context, id uint, recipientID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalNotification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Count(&count).Error
	return count > 0, err
}
