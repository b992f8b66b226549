package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock buckets addressed by a restock
const (
	StockTypeTotal   = "total"
	StockTypeOnline  = "online"
	StockTypeOffline = "offline"
)

// Inventory log transaction types
const (
	TxTypeRestock          = "restock"
	TxTypeSale             = "sale"
	TxTypeOfflineSale      = "offline_sale"
	TxTypeAdjustment       = "adjustment"
	TxTypeAllocationChange = "allocation_change"
	TxTypeDamage           = "damage"
	TxTypeReturn           = "return"
	TxTypeTransfer         = "transfer"
)

// VendorInventory is a vendor's stock of one product, split between the
// online and offline (in-store) channels. TotalStock always equals
// OnlineStock + OfflineStock.
type VendorInventory struct {
	Base
	VendorID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vendor_product_active,where:deleted_at IS NULL" json:"vendor_id"`
	ProductID         uint      `gorm:"not null;uniqueIndex:idx_vendor_product_active,where:deleted_at IS NULL;index" json:"product_id"`
	Product           *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	TotalStock        int       `gorm:"type:int;not null;default:0" json:"total_stock"`
	OnlineStock       int       `gorm:"type:int;not null;default:0" json:"online_stock"`
	OfflineStock      int       `gorm:"type:int;not null;default:0" json:"offline_stock"`
	LowStockThreshold int       `gorm:"type:int;not null" json:"low_stock_threshold"`
}

func (VendorInventory) TableName() string {
	return "vendor_inventory"
}

// IsLowStock reports whether the item is at or below its threshold.
func (v VendorInventory) IsLowStock() bool {
	return v.TotalStock <= v.LowStockThreshold
}

// StockSnapshot is the (total, online, offline) triple at one instant.
type StockSnapshot struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

func (v VendorInventory) Snapshot() StockSnapshot {
	return StockSnapshot{Total: v.TotalStock, Online: v.OnlineStock, Offline: v.OfflineStock}
}

// InventoryLog records one stock mutation. Rows are append-only.
type InventoryLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	VendorInventoryID uint       `gorm:"not null;index" json:"vendor_inventory_id"`
	VendorID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"vendor_id"`
	ProductID         uint       `gorm:"not null;index" json:"product_id"`
	TransactionType   string     `gorm:"type:varchar(20);not null" json:"transaction_type"`
	QuantityChange    int        `gorm:"type:int;not null" json:"quantity_change"`
	PreviousTotal     int        `gorm:"type:int;not null" json:"previous_total"`
	NewTotal          int        `gorm:"type:int;not null" json:"new_total"`
	PreviousOnline    int        `gorm:"type:int;not null" json:"previous_online"`
	NewOnline         int        `gorm:"type:int;not null" json:"new_online"`
	PreviousOffline   int        `gorm:"type:int;not null" json:"previous_offline"`
	NewOffline        int        `gorm:"type:int;not null" json:"new_offline"`
	Notes             string     `gorm:"type:text" json:"notes"`
	PerformedBy       *uuid.UUID `gorm:"type:uuid" json:"performed_by"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
}

func (InventoryLog) TableName() string {
	return "inventory_logs"
}

// ProductStockAggregate sums every vendor's active stock of one product.
type ProductStockAggregate struct {
	ProductID    uint   `json:"product_id"`
	ProductName  string `json:"product_name"`
	VendorCount  int    `json:"vendor_count"`
	TotalStock   int    `json:"total_stock"`
	OnlineStock  int    `json:"online_stock"`
	OfflineStock int    `json:"offline_stock"`
}

// VendorStockSummary sums one vendor's active stock across products.
type VendorStockSummary struct {
	VendorID      uuid.UUID `json:"vendor_id"`
	ProductCount  int       `json:"product_count"`
	TotalStock    int       `json:"total_stock"`
	OnlineStock   int       `json:"online_stock"`
	OfflineStock  int       `json:"offline_stock"`
	LowStockCount int       `json:"low_stock_count"`
}
