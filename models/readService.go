package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/utils"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/stockpit/ledger/models")

// BalanceSource says which row of the reconstruction decision table produced
// the answer.
type BalanceSource string

const (
	// BalanceSourceLiveProjection: asOf falls on the current calendar day;
	// the live projection is authoritative.
	BalanceSourceLiveProjection BalanceSource = "live_projection"
	// BalanceSourceLedger: the ledger tail at the cutoff agreed with the
	// projection within tolerance.
	BalanceSourceLedger BalanceSource = "ledger"
	// BalanceSourceEstimate: ledger and projection disagreed; the answer is
	// projection minus post-cutoff deltas (warn policy only).
	BalanceSourceEstimate BalanceSource = "estimate"
	// BalanceSourceScopeNotBorn: the scope had no stock history at the cutoff.
	BalanceSourceScopeNotBorn BalanceSource = "scope_not_born"
)

// AsOfBalance is the reconstructed quantity on hand for a scope at a cutoff.
type AsOfBalance struct {
	Scope    StockScope      `json:"scope"`
	AsOf     time.Time       `json:"as_of"`
	Qty      decimal.Decimal `json:"qty"`     // display value, clamped to zero
	RawQty   decimal.Decimal `json:"raw_qty"` // unclamped computation result
	UnitCost decimal.Decimal `json:"unit_cost"`
	Source   BalanceSource   `json:"source"`
	Drift    decimal.Decimal `json:"drift"` // |ledger-implied current - projection|
}

// ReconstructBalance answers "what was the quantity on hand at asOf?"
// without mutating any state. asOf must already be a concrete instant
// (callers normalize dates to end-of-day via DateString).
//
// Decision table, first match wins:
//  1. asOf on the current calendar day        -> live projection
//  2. ledger tail exists, agrees w/ projection -> tail balance_after
//  3. ledger tail exists, drift, policy=strict -> ErrLedgerDrift
//  4. ledger tail exists, drift, policy=warn   -> projection - afterSum
//  5. no tail, scope born after asOf           -> 0
//  6. no tail, no entries, projection predates -> projection - afterSum
func ReconstructBalance(tx *gorm.DB, logger *logrus.Logger, scope StockScope, asOf time.Time, timezone string) (*AsOfBalance, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = config.GetLogger()
	}

	if ctx := tx.Statement.Context; ctx != nil {
		spanCtx, span := tracer.Start(ctx, "ledger.reconstruct")
		defer span.End()
		tx = tx.WithContext(spanCtx)
	}

	result := &AsOfBalance{Scope: scope, AsOf: asOf}

	projection, err := GetProjection(tx, scope)
	if err != nil {
		return nil, err
	}
	projQty := decimal.Zero
	if projection != nil {
		projQty = projection.QtyAvailable
	}

	// Row 1: today's figure is always the live projection.
	startOfToday, err := utils.ConvertToDate(time.Now().UTC(), timezone)
	if err != nil {
		return nil, err
	}
	if !asOf.Before(startOfToday) {
		result.RawQty = projQty
		result.Source = BalanceSourceLiveProjection
		if projection != nil {
			result.UnitCost = projection.UnitCost
		}
		return clampForDisplay(logger, result), nil
	}

	tail, err := LastEntryAtOrBefore(tx, scope, asOf)
	if err != nil {
		return nil, err
	}
	afterSum, err := SumDeltaAfter(tx, scope, asOf)
	if err != nil {
		return nil, err
	}

	if tail != nil {
		drift := tail.BalanceAfter.Add(afterSum).Sub(projQty).Abs()
		result.Drift = drift
		if drift.Cmp(BalanceTolerance) < 0 {
			// Row 2: ledger self-consistent with the projection.
			result.RawQty = tail.BalanceAfter
			result.Source = BalanceSourceLedger
		} else {
			if config.GetDriftPolicy() == config.DriftPolicyStrict {
				// Row 3.
				return nil, fmt.Errorf("%w: %s drift=%s", ErrLedgerDrift, scope, drift)
			}
			// Row 4: warn and estimate from the projection side.
			logger.WithFields(logrus.Fields{
				"scope": scope.String(),
				"as_of": asOf.Format(time.RFC3339),
				"drift": drift.String(),
			}).Warn("ledger.reconstruct.drift")
			result.RawQty = projQty.Sub(afterSum)
			result.Source = BalanceSourceEstimate
		}
		cost, err := unitCostAt(tx, scope, asOf)
		if err != nil {
			return nil, err
		}
		result.UnitCost = cost
		return clampForDisplay(logger, result), nil
	}

	earliest, err := EarliestEntry(tx, scope)
	if err != nil {
		return nil, err
	}
	if earliest != nil {
		// Row 5: first movement happened after the cutoff.
		result.RawQty = decimal.Zero
		result.Source = BalanceSourceScopeNotBorn
		return clampForDisplay(logger, result), nil
	}

	// No ledger entries at all: fall back to the projection row's own
	// created_at as a weaker proxy for "did this scope exist yet".
	if projection == nil || projection.CreatedAt.After(asOf) {
		result.RawQty = decimal.Zero
		result.Source = BalanceSourceScopeNotBorn
		return clampForDisplay(logger, result), nil
	}
	// Row 6.
	result.RawQty = projQty.Sub(afterSum)
	result.Source = BalanceSourceEstimate
	result.UnitCost = projection.UnitCost
	return clampForDisplay(logger, result), nil
}

// BalanceAsOf is the tenant-aware entry point: normalizes the date to
// end-of-day in the business timezone, then reconstructs.
func BalanceAsOf(ctx context.Context, scope StockScope, asOf DateString) (*AsOfBalance, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	if err := asOf.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}
	return ReconstructBalance(db.WithContext(ctx), config.GetLogger(), scope, time.Time(asOf), business.Timezone)
}

// A genuinely negative historical balance is a data-quality problem; it is
// clamped for display but logged so it cannot hide silently.
func clampForDisplay(logger *logrus.Logger, result *AsOfBalance) *AsOfBalance {
	result.Qty = result.RawQty
	if result.RawQty.IsNegative() {
		logger.WithFields(logrus.Fields{
			"scope":   result.Scope.String(),
			"as_of":   result.AsOf.Format(time.RFC3339),
			"raw_qty": result.RawQty.String(),
			"source":  string(result.Source),
		}).Warn("ledger.reconstruct.negative_balance_clamped")
		result.Qty = decimal.Zero
	}
	return result
}

func unitCostAt(tx *gorm.DB, scope StockScope, asOf time.Time) (decimal.Decimal, error) {
	entry, err := LastCostBearingEntryAtOrBefore(tx, scope, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if entry == nil || entry.UnitCost == nil {
		return decimal.Zero, nil
	}
	return *entry.UnitCost, nil
}

// lastCostBearingCost is the snapshot variant of unitCostAt: locationId may
// be nil, meaning "whatever location last received cost-bearing stock".
func lastCostBearingCost(tx *gorm.DB, businessId string, productId, variationId int, locationId *int, asOf time.Time) (decimal.Decimal, error) {
	q := tx.Model(&StockLedgerEntry{}).
		Where("business_id = ? AND product_id = ? AND variation_id = ?", businessId, productId, variationId).
		Where("created_at <= ? AND unit_cost IS NOT NULL", asOf)
	if locationId != nil && *locationId > 0 {
		q = q.Where("location_id = ?", *locationId)
	}
	var entry StockLedgerEntry
	err := q.Order("created_at DESC, id DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if entry.UnitCost == nil {
		return decimal.Zero, nil
	}
	return *entry.UnitCost, nil
}

// InventorySnapshot is an aggregated view of stock for a product variation
// (optionally per location) as-of a timestamp.
type InventorySnapshot struct {
	ProductId    int             `json:"product_id"`
	VariationId  int             `json:"variation_id"`
	LocationId   *int            `json:"location_id,omitempty"`
	StockOnHand  decimal.Decimal `json:"stock_on_hand"`
	AssetValue   decimal.Decimal `json:"asset_value"`
	UnitCostSafe decimal.Decimal `json:"unit_cost_safe"`
}

// computeLedgerSnapshots aggregates ledger entries as-of the supplied timestamp.
// All rows are filtered by business_id. When locationId is nil, results are
// aggregated across all locations (grouped only by product variation), so
// multi-location stock nets to a grand total.
func computeLedgerSnapshots(ctx context.Context, asOf time.Time, locationId *int, productId *int) ([]InventorySnapshot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	args := map[string]interface{}{
		"businessId": businessId,
		"asOf":       asOf,
	}

	where := `
		business_id = @businessId
		AND created_at <= @asOf
	`
	if locationId != nil && *locationId > 0 {
		where += " AND location_id = @locationId"
		args["locationId"] = *locationId
	}
	if productId != nil && *productId > 0 {
		where += " AND product_id = @productId"
		args["productId"] = *productId
	}

	group := "product_id, variation_id"
	selectCols := `
		product_id,
		variation_id,
		SUM(qty_delta) AS stock_on_hand
	`
	if locationId != nil && *locationId > 0 {
		selectCols = `
			product_id,
			variation_id,
			location_id,
			SUM(qty_delta) AS stock_on_hand
		`
		group = "product_id, variation_id, location_id"
	}

	sql := `
	SELECT
		` + selectCols + `
	FROM stock_ledger_entries
	WHERE ` + where + `
	GROUP BY ` + group + `
	`

	var rows []InventorySnapshot
	if err := db.WithContext(ctx).Raw(sql, args).Scan(&rows).Error; err != nil {
		return nil, err
	}

	for i := range rows {
		cost, err := lastCostBearingCost(db.WithContext(ctx), businessId, rows[i].ProductId, rows[i].VariationId, rows[i].LocationId, asOf)
		if err != nil {
			return nil, err
		}
		rows[i].UnitCostSafe = cost
		rows[i].AssetValue = rows[i].StockOnHand.Mul(cost)
	}

	return rows, nil
}

// SnapshotByProduct returns aggregated snapshots across all locations.
func SnapshotByProduct(ctx context.Context, asOf DateString, productId *int) ([]InventorySnapshot, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	if err := asOf.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	return computeLedgerSnapshots(ctx, time.Time(asOf), nil, productId)
}

// SnapshotByProductLocation returns snapshots per location.
func SnapshotByProductLocation(ctx context.Context, asOf DateString, locationId *int, productId *int) ([]InventorySnapshot, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	if err := asOf.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	return computeLedgerSnapshots(ctx, time.Time(asOf), locationId, productId)
}

// SumSnapshot aggregates snapshot rows by product variation (ignoring the
// location dimension).
func SumSnapshot(rows []InventorySnapshot) map[string]InventorySnapshot {
	result := make(map[string]InventorySnapshot)
	for _, r := range rows {
		key := snapshotKey(r.ProductId, r.VariationId)
		acc := result[key]
		acc.ProductId = r.ProductId
		acc.VariationId = r.VariationId
		acc.StockOnHand = acc.StockOnHand.Add(r.StockOnHand)
		acc.AssetValue = acc.AssetValue.Add(r.AssetValue)
		if !acc.StockOnHand.IsZero() {
			acc.UnitCostSafe = acc.AssetValue.Div(acc.StockOnHand)
		}
		result[key] = acc
	}
	return result
}

func snapshotKey(productId, variationId int) string {
	return fmt.Sprintf("%d-%d", productId, variationId)
}
