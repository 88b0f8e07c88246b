package main

import (
	"fmt"

	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
	"github.com/stockpit/ledger/utils"
)

// migrate runs the gorm auto-migration for all ledger tables and then
// enforces the strict schema constraints (see LEDGER_STRICT_SCHEMA).
func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	utils.ErrorPanic(models.EnsureLedgerSchema())
	fmt.Println("migration complete")
}
