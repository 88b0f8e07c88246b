package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/utils"
	"gorm.io/gorm"
)

const (
	CheckTypeLedgerChain      = "LEDGER_CHAIN"
	CheckTypeProjectionDrift  = "PROJECTION_DRIFT"
	CheckTypeOrphanProjection = "ORPHAN_PROJECTION"
)

// RunReconciliationChecks replays every ledger scope for a business and
// writes mismatch rows to reconciliation_reports. Two independent checks:
//
//  1. LEDGER_CHAIN: each entry's balance_after must telescope from the
//     previous one (balance_after[n] = balance_after[n-1] + qty_delta[n]).
//  2. PROJECTION_DRIFT: the final replayed sum must equal the projection's
//     qty_available.
//
// Plus ORPHAN_PROJECTION for projections holding stock with no ledger rows.
// Intended to be run on a schedule (nightly) or via an admin trigger.
// A nil db falls back to the shared connection.
func RunReconciliationChecks(ctx context.Context, db *gorm.DB, businessId string) (correlationId string, reports []ReconciliationReport, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		db = config.GetDB()
	}
	if db == nil {
		return "", nil, ErrDBNotInitialized
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()

	var scopes []StockScope
	if err := db.WithContext(ctx).Raw(`
		SELECT business_id, product_id, variation_id, location_id
		FROM stock_ledger_entries
		WHERE business_id = ?
		UNION
		SELECT business_id, product_id, variation_id, location_id
		FROM stock_projections
		WHERE business_id = ?
	`, businessId, businessId).Scan(&scopes).Error; err != nil {
		return cid, nil, err
	}

	var scopesChecked, chainBreaks, projectionDrifts int
	for _, scope := range scopes {
		scopesChecked++

		entries, err := EntriesInOrder(db.WithContext(ctx), scope, time.Time{})
		if err != nil {
			return cid, reports, err
		}
		projection, err := GetProjection(db.WithContext(ctx), scope)
		if err != nil {
			return cid, reports, err
		}

		running := decimal.Zero
		chainBroken := false
		for _, entry := range entries {
			running = running.Add(entry.QtyDelta)
			if running.Sub(entry.BalanceAfter).Abs().Cmp(BalanceTolerance) >= 0 {
				chainBroken = true
				reports = append(reports, ReconciliationReport{
					BusinessId: businessId,
					CheckType:  CheckTypeLedgerChain,
					EntityType: "StockLedgerEntry",
					EntityId:   entry.ID,
					Details: fmt.Sprintf("replayed sum=%s != balance_after=%s (%s)",
						running, entry.BalanceAfter, scope),
					CorrelationId: cid,
					CreatedAt:     now,
				})
				// Resync so one broken row does not cascade into a report per row.
				running = entry.BalanceAfter
			}
		}
		if chainBroken {
			chainBreaks++
		}

		if projection == nil {
			if len(entries) > 0 && !running.IsZero() {
				reports = append(reports, ReconciliationReport{
					BusinessId:    businessId,
					CheckType:     CheckTypeProjectionDrift,
					EntityType:    "StockProjection",
					EntityId:      0,
					Details:       fmt.Sprintf("ledger sums to %s but no projection row exists (%s)", running, scope),
					CorrelationId: cid,
					CreatedAt:     now,
				})
				projectionDrifts++
			}
			continue
		}

		if len(entries) == 0 {
			if !projection.QtyAvailable.IsZero() {
				reports = append(reports, ReconciliationReport{
					BusinessId:    businessId,
					CheckType:     CheckTypeOrphanProjection,
					EntityType:    "StockProjection",
					EntityId:      projection.ID,
					Details:       fmt.Sprintf("qty_available=%s with no ledger entries (%s)", projection.QtyAvailable, scope),
					CorrelationId: cid,
					CreatedAt:     now,
				})
				projectionDrifts++
			}
			continue
		}

		if running.Sub(projection.QtyAvailable).Abs().Cmp(BalanceTolerance) >= 0 {
			reports = append(reports, ReconciliationReport{
				BusinessId: businessId,
				CheckType:  CheckTypeProjectionDrift,
				EntityType: "StockProjection",
				EntityId:   projection.ID,
				Details: fmt.Sprintf("ledger sums to %s but qty_available=%s (%s)",
					running, projection.QtyAvailable, scope),
				CorrelationId: cid,
				CreatedAt:     now,
			})
			projectionDrifts++
		}
	}

	for i := range reports {
		if err := db.WithContext(ctx).Create(&reports[i]).Error; err != nil {
			return cid, reports, err
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "ReconciliationChecks",
			"business_id":       businessId,
			"correlation_id":    cid,
			"scopes_checked":    scopesChecked,
			"chain_breaks":      chainBreaks,
			"projection_drifts": projectionDrifts,
		}).Info("ledger reconciliation checks completed")
	}
	return cid, reports, nil
}
