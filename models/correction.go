package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryCorrection records a physical stock count against the system
// count. The most recent approved correction for a scope acts as a trusted
// baseline ("anchor") for historical reporting.
type InventoryCorrection struct {
	ID            int              `gorm:"primary_key" json:"id"`
	BusinessId    string           `gorm:"size:36;index:idx_correction_scope,priority:1;not null" json:"business_id"`
	ProductId     int              `gorm:"index:idx_correction_scope,priority:2;not null" json:"product_id"`
	VariationId   int              `gorm:"index:idx_correction_scope,priority:3;not null" json:"variation_id"`
	LocationId    int              `gorm:"index:idx_correction_scope,priority:4;not null" json:"location_id"`
	SystemCount   decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"system_count"`
	PhysicalCount decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"physical_count"`
	Difference    decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"difference"`
	Status        CorrectionStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ApprovedAt    *time.Time       `json:"approved_at"`
	ApprovedBy    string           `gorm:"size:100" json:"approved_by"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy     string           `gorm:"size:100" json:"created_by"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *InventoryCorrection) Scope() StockScope {
	return StockScope{
		BusinessId:  c.BusinessId,
		ProductId:   c.ProductId,
		VariationId: c.VariationId,
		LocationId:  c.LocationId,
	}
}

// BeforeSave keeps difference = physical_count - system_count.
func (c *InventoryCorrection) BeforeSave(tx *gorm.DB) error {
	_ = tx
	if c == nil {
		return nil
	}
	c.Difference = c.PhysicalCount.Sub(c.SystemCount)
	return nil
}

// LatestApprovedCorrection returns the most recent approved correction for
// the scope, or nil when none exists.
func LatestApprovedCorrection(tx *gorm.DB, scope StockScope) (*InventoryCorrection, error) {
	var correction InventoryCorrection
	err := scope.Where(tx.Model(&InventoryCorrection{})).
		Where("status = ?", CorrectionStatusApproved).
		Order("created_at DESC, id DESC").
		First(&correction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &correction, nil
}
