package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockProjection is the denormalized current balance per scope, kept in
// sync with the ledger by the writer. qty_available must equal the
// balance_after of the most recent ledger entry for the same scope; the
// reconciliation checker reports any drift.
type StockProjection struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"size:36;not null;index:uniq_projection_scope,unique" json:"business_id"`
	ProductId    int             `gorm:"not null;index:uniq_projection_scope,unique" json:"product_id"`
	VariationId  int             `gorm:"not null;index:uniq_projection_scope,unique" json:"variation_id"`
	LocationId   int             `gorm:"not null;index:uniq_projection_scope,unique" json:"location_id"`
	QtyAvailable decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"qty_available"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *StockProjection) Scope() StockScope {
	return StockScope{
		BusinessId:  p.BusinessId,
		ProductId:   p.ProductId,
		VariationId: p.VariationId,
		LocationId:  p.LocationId,
	}
}

// GetProjection returns the projection row for the scope, or nil when the
// scope has never had a stock-affecting event.
func GetProjection(tx *gorm.DB, scope StockScope) (*StockProjection, error) {
	var projection StockProjection
	err := scope.Where(tx).First(&projection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &projection, nil
}

// IncrementProjection atomically applies delta to the projection row and
// returns the resulting balance. The row is created on first use. The
// read-modify-write happens inside one UPDATE so two concurrent appends on
// the same scope serialize on the row lock instead of racing on a stale read.
func IncrementProjection(tx *gorm.DB, scope StockScope, delta decimal.Decimal) (decimal.Decimal, error) {
	var row struct {
		QtyAvailable decimal.Decimal
	}
	apply := func() *gorm.DB {
		return tx.Raw(`
			UPDATE stock_projections
			SET qty_available = qty_available + ?, updated_at = ?
			WHERE business_id = ? AND product_id = ? AND variation_id = ? AND location_id = ?
			RETURNING qty_available
		`, delta, time.Now().UTC(), scope.BusinessId, scope.ProductId, scope.VariationId, scope.LocationId).
			Scan(&row)
	}

	res := apply()
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected > 0 {
		return row.QtyAvailable, nil
	}

	// First stock-affecting event for this scope: create the row lazily.
	// A concurrent creator loses on the unique index and retries the update.
	err := tx.Create(&StockProjection{
		BusinessId:   scope.BusinessId,
		ProductId:    scope.ProductId,
		VariationId:  scope.VariationId,
		LocationId:   scope.LocationId,
		QtyAvailable: delta,
	}).Error
	if err == nil {
		return delta, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return decimal.Zero, err
	}
	res = apply()
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, errors.New("projection row vanished during concurrent create")
	}
	return row.QtyAvailable, nil
}

// SetProjectionUnitCost records the unit cost of the latest cost-bearing
// movement on the projection for fast as-of-today cost reads.
func SetProjectionUnitCost(tx *gorm.DB, scope StockScope, unitCost decimal.Decimal) error {
	return scope.Where(tx.Model(&StockProjection{})).
		Update("unit_cost", unitCost).Error
}

// SetProjectionQty overwrites qty_available. Only the rebuild flow uses
// this, after recomputing the balance chain under the scope lock.
func SetProjectionQty(tx *gorm.DB, scope StockScope, qty decimal.Decimal) error {
	return scope.Where(tx.Model(&StockProjection{})).
		Update("qty_available", qty).Error
}
