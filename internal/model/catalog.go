package model

import (
	"github.com/shopspring/decimal"
)

// Master data kinds that vendor-side staff may change only through an
// approval request.

type Manufacturer struct {
	Base
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Country     string `gorm:"type:varchar(100)" json:"country"`
	IsActive    bool   `gorm:"not null" json:"is_active"`
}

type Brand struct {
	Base
	Name           string `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	ManufacturerID *uint  `gorm:"index" json:"manufacturer_id"`
	Description    string `gorm:"type:text" json:"description"`
	IsActive       bool   `gorm:"not null" json:"is_active"`
	IsFeatured     bool   `gorm:"not null;default:false" json:"is_featured"`
}

type Category struct {
	Base
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	ParentID    *uint  `gorm:"index" json:"parent_id"`
	Description string `gorm:"type:text" json:"description"`
	IsActive    bool   `gorm:"not null" json:"is_active"`
	IsFeatured  bool   `gorm:"not null;default:false" json:"is_featured"`
}

// ProductName is a generic (molecule-level) product name.
type ProductName struct {
	Base
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

type Salt struct {
	Base
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IsActive    bool   `gorm:"not null" json:"is_active"`
}

type Dosage struct {
	Base
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

type UnitType struct {
	Base
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Abbreviation string `gorm:"type:varchar(20)" json:"abbreviation"`
	IsActive     bool   `gorm:"not null" json:"is_active"`
}

type Attribute struct {
	Base
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Value    string `gorm:"type:varchar(255)" json:"value"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

// GST is a goods-and-services tax slab.
type GST struct {
	Base
	Name     string          `gorm:"type:varchar(100);not null" json:"name"`
	Rate     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"rate"`
	IsActive bool            `gorm:"not null" json:"is_active"`
}

func (GST) TableName() string {
	return "gsts"
}

type Supplier struct {
	Base
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Email    string `gorm:"type:varchar(255)" json:"email"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
	Address  string `gorm:"type:text" json:"address"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

type Product struct {
	Base
	Name                 string          `gorm:"type:varchar(255);not null" json:"name"`
	Slug                 string          `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	SKU                  string          `gorm:"type:varchar(100);index" json:"sku"`
	ManufacturerID       *uint           `gorm:"index" json:"manufacturer_id"`
	BrandID              *uint           `gorm:"index" json:"brand_id"`
	CategoryID           *uint           `gorm:"index" json:"category_id"`
	ProductNameID        *uint           `gorm:"index" json:"product_name_id"`
	SaltID               *uint           `json:"salt_id"`
	DosageID             *uint           `json:"dosage_id"`
	UnitTypeID           *uint           `json:"unit_type_id"`
	GSTID                *uint           `gorm:"column:gst_id" json:"gst_id"`
	MRP                  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"mrp"`
	Description          string          `gorm:"type:text" json:"description"`
	IsActive             bool            `gorm:"not null" json:"is_active"`
	IsFeatured           bool            `gorm:"not null;default:false" json:"is_featured"`
	IsBestSeller         bool            `gorm:"not null;default:false" json:"is_best_seller"`
	IsOffer              bool            `gorm:"not null;default:false" json:"is_offer"`
	RequiresPrescription bool            `gorm:"not null;default:false" json:"requires_prescription"`
}
