package models

import (
	"log"

	"github.com/stockpit/ledger/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&StockLedgerEntry{}, &StockProjection{},
		&InventoryCorrection{},
		&IdempotencyKey{},
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
