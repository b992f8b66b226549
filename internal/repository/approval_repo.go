package repository

import (
	"context"

	"marketplace/internal/model"
	"marketplace/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovalFilter narrows List. Zero values are ignored.
type ApprovalFilter struct {
	Status      string
	EntityType  string
	RequestType string
	RequestedBy *uuid.UUID
	Page        int
	Limit       int
}

type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uint) (*model.ApprovalRequest, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.ApprovalRequest, error)
	FindWithHistory(ctx context.Context, id uint) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter ApprovalFilter) ([]model.ApprovalRequest, int64, error)
	Update(ctx context.Context, req *model.ApprovalRequest) error
	CountByStatus(ctx context.Context, status string) (int64, error)

	CreateHistory(ctx context.Context, entry *model.ApprovalHistory) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uint) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the request row until the enclosing transaction ends.
func (r *approvalRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) FindWithHistory(ctx context.Context, id uint) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("Reviewer").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter ApprovalFilter) ([]model.ApprovalRequest, int64, error) {
	var requests []model.ApprovalRequest
	var total int64

	query := r.applyFilter(GetDB(ctx, r.db).Model(&model.ApprovalRequest{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := r.applyFilter(GetDB(ctx, r.db), filter).Preload("Requester").Preload("Reviewer")
	if err := fetch.Order("created_at desc, id desc").Scopes(pagination.Scope(filter.Page, filter.Limit)).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *approvalRepository) applyFilter(db *gorm.DB, filter ApprovalFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.EntityType != "" {
		db = db.Where("entity_type = ?", filter.EntityType)
	}
	if filter.RequestType != "" {
		db = db.Where("request_type = ?", filter.RequestType)
	}
	if filter.RequestedBy != nil {
		db = db.Where("requested_by = ?", *filter.RequestedBy)
	}
	return db
}

// Update writes every column except the preloaded associations.
func (r *approvalRepository) Update(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(req).Error
}

func (r *approvalRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalRequest{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *approvalRepository) CreateHistory(ctx context.Context, entry *model.ApprovalHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}
