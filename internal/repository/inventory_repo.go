package repository

import (
	"context"

	"marketplace/internal/model"
	"marketplace/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	Create(ctx context.Context, inv *model.VendorInventory) error
	FindActive(ctx context.Context, vendorID uuid.UUID, productID uint) (*model.VendorInventory, error)
	FindByID(ctx context.Context, id uint, vendorID uuid.UUID) (*model.VendorInventory, error)
	FindByIDForUpdate(ctx context.Context, id uint, vendorID uuid.UUID) (*model.VendorInventory, error)
	Update(ctx context.Context, inv *model.VendorInventory) error
	SoftDelete(ctx context.Context, inv *model.VendorInventory) error
	ListByVendor(ctx context.Context, vendorID uuid.UUID, lowStockOnly bool, page, limit int) ([]model.VendorInventory, int64, error)

	LowStock(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorInventory, error)
	AggregateByProduct(ctx context.Context) ([]model.ProductStockAggregate, error)
	SummaryByVendor(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorStockSummary, error)

	CreateLog(ctx context.Context, entry *model.InventoryLog) error
	ListLogs(ctx context.Context, inventoryID uint, page, limit int) ([]model.InventoryLog, int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, inv *model.VendorInventory) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(inv).Error
}

func (r *inventoryRepository) FindActive(ctx context.Context, vendorID uuid.UUID, productID uint) (*model.VendorInventory, error) {
	var inv model.VendorInventory
	err := GetDB(ctx, r.db).
		Where("vendor_id = ? AND product_id = ?", vendorID, productID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uint, vendorID uuid.UUID) (*model.VendorInventory, error) {
	var inv model.VendorInventory
	err := GetDB(ctx, r.db).
		Preload("Product").
		Where("id = ? AND vendor_id = ?", id, vendorID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindByIDForUpdate locks the inventory row until the enclosing transaction ends.
func (r *inventoryRepository) FindByIDForUpdate(ctx context.Context, id uint, vendorID uuid.UUID) (*model.VendorInventory, error) {
	var inv model.VendorInventory
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepository) Update(ctx context.Context, inv *model.VendorInventory) error {
	return GetDB(ctx, r.db).Model(inv).
		Select("total_stock", "online_stock", "offline_stock", "low_stock_threshold", "updated_at").
		Updates(inv).Error
}

func (r *inventoryRepository) SoftDelete(ctx context.Context, inv *model.VendorInventory) error {
	return GetDB(ctx, r.db).Delete(inv).Error
}

func (r *inventoryRepository) ListByVendor(ctx context.Context, vendorID uuid.UUID, lowStockOnly bool, page, limit int) ([]model.VendorInventory, int64, error) {
	var items []model.VendorInventory
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("vendor_id = ?", vendorID)
		if lowStockOnly {
			db = db.Where("total_stock <= low_stock_threshold")
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.VendorInventory{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).Preload("Product").Order("id asc").Scopes(pagination.Scope(page, limit)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *inventoryRepository) LowStock(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorInventory, error) {
	var items []model.VendorInventory
	query := GetDB(ctx, r.db).Preload("Product").Where("total_stock <= low_stock_threshold")
	if vendorID != nil {
		query = query.Where("vendor_id = ?", *vendorID)
	}
	if err := query.Order("total_stock asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *inventoryRepository) AggregateByProduct(ctx context.Context) ([]model.ProductStockAggregate, error) {
	var rows []model.ProductStockAggregate
	err := GetDB(ctx, r.db).Model(&model.VendorInventory{}).
		Select(`vendor_inventory.product_id AS product_id,
			COALESCE(products.name, '') AS product_name,
			COUNT(DISTINCT vendor_inventory.vendor_id) AS vendor_count,
			COALESCE(SUM(vendor_inventory.total_stock), 0) AS total_stock,
			COALESCE(SUM(vendor_inventory.online_stock), 0) AS online_stock,
			COALESCE(SUM(vendor_inventory.offline_stock), 0) AS offline_stock`).
		Joins("LEFT JOIN products ON products.id = vendor_inventory.product_id").
		Group("vendor_inventory.product_id, products.name").
		Order("vendor_inventory.product_id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *inventoryRepository) SummaryByVendor(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorStockSummary, error) {
	var rows []model.VendorStockSummary
	query := GetDB(ctx, r.db).Model(&model.VendorInventory{}).
		Select(`vendor_id,
			COUNT(*) AS product_count,
			COALESCE(SUM(total_stock), 0) AS total_stock,
			COALESCE(SUM(online_stock), 0) AS online_stock,
			COALESCE(SUM(offline_stock), 0) AS offline_stock,
			COALESCE(SUM(CASE WHEN total_stock <= low_stock_threshold THEN 1 ELSE 0 END), 0) AS low_stock_count`)
	if vendorID != nil {
		query = query.Where("vendor_id = ?", *vendorID)
	}
	if err := query.Group("vendor_id").Order("vendor_id asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *inventoryRepository) CreateLog(ctx context.Context, entry *model.InventoryLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *inventoryRepository) ListLogs(ctx context.Context, inventoryID uint, page, limit int) ([]model.InventoryLog, int64, error) {
	var logs []model.InventoryLog
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.InventoryLog{}).Where("vendor_inventory_id = ?", inventoryID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Where("vendor_inventory_id = ?", inventoryID).
		Order("created_at desc, id desc").
		Scopes(pagination.Scope(page, limit)).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
