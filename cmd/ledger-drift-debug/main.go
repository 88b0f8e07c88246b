package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
)

// balancesAgree compares two balances numerically; string comparison would
// false-flag scale differences like 70 vs 70.0000.
func balancesAgree(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(models.BalanceTolerance) < 0
}

// ledger-drift-debug prints the inventory ledger running balance for a single
// (business_id, product_id, variation_id, location_id) scope so you can see
// exactly which row makes the stored balance_after diverge from the replayed
// sum, and whether the projection agrees with the ledger tail.
//
// Example:
//
//	go run ./cmd/ledger-drift-debug/ \
//	  -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4 \
//	  -product-id=137 \
//	  -variation-id=2 \
//	  -location-id=30
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	productID := flag.Int("product-id", 0, "Required: product id")
	variationID := flag.Int("variation-id", 0, "Required: variation id")
	locationID := flag.Int("location-id", 0, "Required: location id")
	limit := flag.Int("limit", 500, "Max rows to print (0 = no limit)")
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

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	fmt.Printf("%s\n", scope)

	type row struct {
		ID           int
		CreatedAt    time.Time
		MovementType string
		RefType      string
		RefID        int
		QtyDelta     decimal.Decimal
		BalanceAfter decimal.Decimal
		RunningQty   decimal.Decimal
	}

	limitSQL := ""
	if *limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d ", *limit)
	}

	sql := fmt.Sprintf(`
SELECT
  id,
  created_at,
  movement_type,
  reference_type AS ref_type,
  reference_id   AS ref_id,
  qty_delta,
  balance_after,
  SUM(qty_delta) OVER (
    PARTITION BY business_id, product_id, variation_id, location_id
    ORDER BY created_at, id
  ) AS running_qty
FROM stock_ledger_entries
WHERE business_id = ? AND product_id = ? AND variation_id = ? AND location_id = ?
ORDER BY created_at, id
%s`, limitSQL)

	var rows []row
	if err := db.Raw(sql, scope.BusinessId, scope.ProductId, scope.VariationId, scope.LocationId).Scan(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}

	driftRows := 0
	for _, r := range rows {
		marker := ""
		if !balancesAgree(r.BalanceAfter, r.RunningQty) {
			marker = "  <-- DRIFT"
			driftRows++
		}
		fmt.Printf("id=%-8d %s %-15s %s#%-6d delta=%-12s balance_after=%-12s replayed=%-12s%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.MovementType, r.RefType, r.RefID,
			r.QtyDelta, r.BalanceAfter, r.RunningQty, marker)
	}

	projection, err := models.GetProjection(db, scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "projection lookup failed: %v\n", err)
		os.Exit(1)
	}
	switch {
	case projection == nil:
		fmt.Println("projection: (none)")
	case len(rows) > 0 && !balancesAgree(rows[len(rows)-1].BalanceAfter, projection.QtyAvailable):
		fmt.Printf("projection: qty_available=%s  <-- DISAGREES with ledger tail %s\n",
			projection.QtyAvailable, rows[len(rows)-1].BalanceAfter)
	default:
		fmt.Printf("projection: qty_available=%s (agrees)\n", projection.QtyAvailable)
	}
	fmt.Printf("rows=%d drift_rows=%d\n", len(rows), driftRows)
}
