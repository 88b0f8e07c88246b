package models

import (
	"fmt"

	"gorm.io/gorm"
)

// StockScope is the (business, product, variation, location) tuple that both
// ledger entries and the projection are keyed by. All scope filtering goes
// through this type; nothing else builds ad-hoc WHERE combinations.
type StockScope struct {
	BusinessId  string `json:"business_id" validate:"required"`
	ProductId   int    `json:"product_id" validate:"required,gt=0"`
	VariationId int    `json:"variation_id" validate:"required,gt=0"`
	LocationId  int    `json:"location_id" validate:"required,gt=0"`
}

func (s StockScope) Validate() error {
	if s.BusinessId == "" || s.ProductId <= 0 || s.VariationId <= 0 || s.LocationId <= 0 {
		return fmt.Errorf("invalid stock scope: %+v", s)
	}
	return nil
}

// Where applies the scope filter to a query.
func (s StockScope) Where(db *gorm.DB) *gorm.DB {
	return db.Where(
		"business_id = ? AND product_id = ? AND variation_id = ? AND location_id = ?",
		s.BusinessId, s.ProductId, s.VariationId, s.LocationId,
	)
}

// LockName is the cross-instance lock key for multi-statement flows on this scope.
func (s StockScope) LockName() string {
	return fmt.Sprintf("stock:%s:%d:%d:%d", s.BusinessId, s.ProductId, s.VariationId, s.LocationId)
}

func (s StockScope) String() string {
	return fmt.Sprintf("business_id=%s product_id=%d variation_id=%d location_id=%d",
		s.BusinessId, s.ProductId, s.VariationId, s.LocationId)
}
