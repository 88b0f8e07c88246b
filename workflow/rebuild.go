package workflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

// RebuildScopeBalances recomputes the balance_after chain from startDate
// forward for a single scope and resyncs the projection to the final value.
// This is used after backdated corrections land in the middle of existing
// history and the telescoping sum downstream of them is stale.
//
// Returns the number of ledger rows rewritten.
func RebuildScopeBalances(
	tx *gorm.DB,
	logger *logrus.Logger,
	scope models.StockScope,
	startDate time.Time,
) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("rebuild balances: tx is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	if err := AcquireScopePostingLock(tx, scope); err != nil {
		return 0, err
	}

	logger.WithFields(logrus.Fields{
		"scope":      scope.String(),
		"start_date": startDate.Format(time.RFC3339),
	}).Info("ledger.rebuild.start")

	// Seed from the last good entry before the window.
	seed := decimal.Zero
	if !startDate.IsZero() {
		before, err := models.LastEntryAtOrBefore(tx, scope, startDate.Add(-time.Nanosecond))
		if err != nil {
			return 0, err
		}
		if before != nil {
			seed = before.BalanceAfter
		}
	}

	entries, err := models.EntriesInOrder(tx, scope, startDate)
	if err != nil {
		return 0, err
	}

	rewritten := 0
	running := seed
	for _, entry := range entries {
		running = running.Add(entry.QtyDelta)
		if running.Sub(entry.BalanceAfter).Abs().Cmp(models.BalanceTolerance) < 0 {
			continue
		}
		if err := tx.Model(&models.StockLedgerEntry{}).
			Where("id = ?", entry.ID).
			Update("balance_after", running).Error; err != nil {
			return rewritten, err
		}
		rewritten++
	}

	if err := models.SetProjectionQty(tx, scope, running); err != nil {
		return rewritten, err
	}

	logger.WithFields(logrus.Fields{
		"scope":         scope.String(),
		"start_date":    startDate.Format(time.RFC3339),
		"entries":       len(entries),
		"rewritten":     rewritten,
		"final_balance": running.String(),
	}).Info("ledger.rebuild.end")

	return rewritten, nil
}
