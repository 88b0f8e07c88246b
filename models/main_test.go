package models

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_models_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&Business{},
		&StockLedgerEntry{}, &StockProjection{},
		&InventoryCorrection{},
		&IdempotencyKey{},
		&ReconciliationReport{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testScope(n int) StockScope {
	return StockScope{
		BusinessId:  "b7e2a1de-0000-4000-8000-000000000002",
		ProductId:   200 + n,
		VariationId: 1,
		LocationId:  10,
	}
}

// seedEntry writes a ledger row with an explicit timestamp, delta, stored
// balance, and optional unit cost.
func seedEntry(t *testing.T, db *gorm.DB, scope StockScope, at time.Time, delta, balance string, unitCost *decimal.Decimal) {
	t.Helper()
	entry := StockLedgerEntry{
		BusinessId:   scope.BusinessId,
		ProductId:    scope.ProductId,
		VariationId:  scope.VariationId,
		LocationId:   scope.LocationId,
		MovementType: MovementTypeAdjustment,
		QtyDelta:     dec(delta),
		BalanceAfter: dec(balance),
		UnitCost:     unitCost,
		CreatedAt:    at,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

// seedProjection writes the denormalized balance row for the scope.
func seedProjection(t *testing.T, db *gorm.DB, scope StockScope, qty string) *StockProjection {
	t.Helper()
	projection := StockProjection{
		BusinessId:   scope.BusinessId,
		ProductId:    scope.ProductId,
		VariationId:  scope.VariationId,
		LocationId:   scope.LocationId,
		QtyAvailable: dec(qty),
	}
	if err := db.Create(&projection).Error; err != nil {
		t.Fatalf("seed projection: %v", err)
	}
	return &projection
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
}
