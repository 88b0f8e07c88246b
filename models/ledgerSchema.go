package models

import (
	"fmt"

	"github.com/stockpit/ledger/config"
)

// EnsureLedgerSchema enforces strict schema constraints for stock_ledger_entries.
// This is intended for clean-start environments where legacy NULLs are not expected.
func EnsureLedgerSchema() error {
	db := config.GetDB()
	if db == nil {
		return ErrDBNotInitialized
	}
	if !config.StrictLedgerSchema() {
		return nil
	}

	var badCount int64
	if err := db.Model(&StockLedgerEntry{}).
		Where("location_id IS NULL OR location_id = 0").
		Count(&badCount).Error; err != nil {
		return err
	}
	if badCount > 0 {
		return fmt.Errorf("stock_ledger_entries has %d rows with NULL/0 location_id; clean start required before enforcing schema", badCount)
	}

	if err := db.Exec("ALTER TABLE stock_ledger_entries ALTER COLUMN location_id SET NOT NULL").Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_stock_ledger_entries_replay
		ON stock_ledger_entries (business_id, product_id, variation_id, location_id, created_at, id)
	`).Error; err != nil {
		return err
	}
	return nil
}
