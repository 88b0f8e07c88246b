package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/workflow"
)

// reconcile runs the ledger/projection drift checks for one business and
// prints every mismatch found. Mismatches are also persisted to
// reconciliation_reports for later triage.
//
// Example:
//
//	go run ./cmd/reconcile/ -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	reports, err := workflow.RunReconciliationChecks(context.Background(), db, logger, strings.TrimSpace(*businessID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	if len(reports) == 0 {
		fmt.Println("no drift detected")
		return
	}
	for _, r := range reports {
		fmt.Printf("[%s] %s#%d: %s\n", r.CheckType, r.EntityType, r.EntityId, r.Details)
	}
	fmt.Printf("%d mismatches recorded\n", len(reports))
	os.Exit(2)
}
