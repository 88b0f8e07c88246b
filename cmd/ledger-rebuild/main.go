package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
	"github.com/stockpit/ledger/utils"
	"github.com/stockpit/ledger/workflow"
)

// ledger-rebuild recomputes the balance_after chain for one scope from a
// start date forward and resyncs the projection. Run this after a backdated
// correction lands in the middle of existing history.
//
// Example:
//
//	go run ./cmd/ledger-rebuild/ \
//	  -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4 \
//	  -product-id=137 \
//	  -variation-id=2 \
//	  -location-id=30 \
//	  -from=2025-11-01
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	productID := flag.Int("product-id", 0, "Required: product id")
	variationID := flag.Int("variation-id", 0, "Required: variation id")
	locationID := flag.Int("location-id", 0, "Required: location id")
	from := flag.String("from", "", "Rebuild from this date (YYYY-MM-DD); empty = full history")
	dryRun := flag.Bool("dry-run", false, "Report what would change, then roll back")
	noLock := flag.Bool("no-lock", false, "Skip the cross-instance Redis scope lock (local/dev only)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *productID <= 0 || *variationID <= 0 || *locationID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id, --product-id, --variation-id, and --location-id are required")
		os.Exit(1)
	}
	scope := models.StockScope{
		BusinessId:  strings.TrimSpace(*businessID),
		ProductId:   *productID,
		VariationId: *variationID,
		LocationId:  *locationID,
	}

	var startDate time.Time
	if strings.TrimSpace(*from) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*from))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --from date: %v\n", err)
			os.Exit(1)
		}
		startDate = parsed.UTC()
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	// Hold the cross-instance lock so a rebuild never races live posting on
	// the same scope. The in-transaction advisory lock alone does not cover
	// workers that post outside this process's transaction timeline.
	if !*noLock {
		config.ConnectRedisWithRetry()
		release, err := utils.ScopeLock(scope.LockName(), "cmd/ledger-rebuild", "main")
		if err != nil {
			fmt.Fprintf(os.Stderr, "scope lock: %v\n", err)
			os.Exit(1)
		}
		defer release()
	}

	tx := db.Begin()
	if tx.Error != nil {
		fmt.Fprintf(os.Stderr, "begin failed: %v\n", tx.Error)
		os.Exit(1)
	}

	rewritten, err := workflow.RebuildScopeBalances(tx, logger, scope, startDate)
	if err != nil {
		tx.Rollback()
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		tx.Rollback()
		fmt.Printf("dry-run: %d rows would be rewritten for %s\n", rewritten, scope)
		return
	}
	if err := tx.Commit().Error; err != nil {
		fmt.Fprintf(os.Stderr, "commit failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rewrote %d rows for %s\n", rewritten, scope)
}
