package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrBusinessIdRequired is returned when the context lacks a business id.
	ErrBusinessIdRequired = fmt.Errorf("business id is required")
	// ErrDBNotInitialized is returned when the DB connection has not been established.
	ErrDBNotInitialized = fmt.Errorf("database not initialized")
	// ErrLedgerDrift is returned under the strict drift policy when the ledger
	// and projection disagree beyond tolerance.
	ErrLedgerDrift = errors.New("ledger and projection disagree beyond tolerance")
)

// BalanceTolerance is the maximum acceptable disagreement between two
// independently computed balances before they are treated as drift.
var BalanceTolerance = decimal.RequireFromString("0.0001")

// StockLedgerEntry is one immutable record of a single inventory movement
// with its resulting running balance. Append-only: rows are never mutated
// after posting, except by the rebuild flow restoring the telescoping-sum
// invariant after backdated corrections.
//
// Invariant per scope, ordered by (created_at, id):
// balance_after[n] = balance_after[n-1] + qty_delta[n].
type StockLedgerEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"size:36;index:idx_ledger_scope_date,priority:1;not null" json:"business_id"`
	ProductId     int             `gorm:"index:idx_ledger_scope_date,priority:2;not null" json:"product_id"`
	VariationId   int             `gorm:"index:idx_ledger_scope_date,priority:3;not null" json:"variation_id"`
	LocationId    int             `gorm:"index:idx_ledger_scope_date,priority:4;not null" json:"location_id"`
	MovementType  MovementType    `gorm:"size:20;not null" json:"movement_type"`
	QtyDelta      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_delta"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance_after"`
	UnitCost      *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_cost"`
	ReferenceType ReferenceType   `gorm:"size:10" json:"reference_type"`
	ReferenceId   int             `gorm:"index" json:"reference_id"`
	IsOutgoing    *bool           `gorm:"not null;default:false" json:"is_outgoing"`
	CreatedAt     time.Time       `gorm:"index:idx_ledger_scope_date,priority:5;autoCreateTime" json:"created_at"`
	CreatedBy     string          `gorm:"size:100" json:"created_by"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
}

// BeforeSave enforces internal invariants for the inventory ledger.
//
// CRITICAL: reporting queries classify consumptions by IsOutgoing. If a row
// has qty_delta<0 but IsOutgoing=false the running-balance math still works,
// yet in/out breakdowns go wrong silently. For non-zero deltas IsOutgoing
// always matches the delta sign.
func (e *StockLedgerEntry) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if e == nil {
		return nil
	}
	if e.IsOutgoing == nil {
		b := false
		e.IsOutgoing = &b
	}
	if e.QtyDelta.IsZero() {
		return nil
	}
	b := e.QtyDelta.IsNegative()
	e.IsOutgoing = &b
	return nil
}

func (e *StockLedgerEntry) Scope() StockScope {
	return StockScope{
		BusinessId:  e.BusinessId,
		ProductId:   e.ProductId,
		VariationId: e.VariationId,
		LocationId:  e.LocationId,
	}
}

// LastEntryAtOrBefore returns the ledger entry with the greatest
// (created_at, id) not after cutoff, or nil when none exists.
func LastEntryAtOrBefore(tx *gorm.DB, scope StockScope, cutoff time.Time) (*StockLedgerEntry, error) {
	var entry StockLedgerEntry
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Where("created_at <= ?", cutoff).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LastEntry returns the most recent ledger entry for the scope, or nil.
// No time filter: a backdated import can leave entries stamped in the
// future and the tail must still see them.
func LastEntry(tx *gorm.DB, scope StockScope) (*StockLedgerEntry, error) {
	var entry StockLedgerEntry
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EarliestEntry returns the first ledger entry for the scope, or nil.
func EarliestEntry(tx *gorm.DB, scope StockScope) (*StockLedgerEntry, error) {
	var entry StockLedgerEntry
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Order("created_at ASC, id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SumDeltaAfter sums qty_delta over all entries strictly after cutoff.
func SumDeltaAfter(tx *gorm.DB, scope StockScope, cutoff time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Select("COALESCE(SUM(qty_delta), 0) AS total").
		Where("created_at > ?", cutoff).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// LastCostBearingEntryAtOrBefore returns the most recent entry carrying a
// unit cost at or before cutoff, or nil.
func LastCostBearingEntryAtOrBefore(tx *gorm.DB, scope StockScope, cutoff time.Time) (*StockLedgerEntry, error) {
	var entry StockLedgerEntry
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Where("created_at <= ? AND unit_cost IS NOT NULL", cutoff).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntriesInOrder loads all ledger entries for the scope at-or-after from,
// in replay order.
func EntriesInOrder(tx *gorm.DB, scope StockScope, from time.Time) ([]*StockLedgerEntry, error) {
	var entries []*StockLedgerEntry
	err := scope.Where(tx.Model(&StockLedgerEntry{})).
		Where("created_at >= ?", from).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
