package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockpit/ledger/models"
	"gorm.io/gorm"
)

// ReportWindow is the reporting boundary for a scope's transaction history.
// Start is the trust boundary: the most recent approved correction, or the
// Unix epoch when none exists. OpeningQty carries the correction's physical
// count into the report as an explicit opening line, so a window that starts
// at the anchor never silently swallows pre-anchor stock.
type ReportWindow struct {
	Start      time.Time                   `json:"start"`
	OpeningQty decimal.Decimal             `json:"opening_qty"`
	Anchor     *models.InventoryCorrection `json:"anchor,omitempty"`
}

// ResolveReportWindow determines the start date a transaction-history report
// should use for the scope.
func ResolveReportWindow(tx *gorm.DB, scope models.StockScope) (*ReportWindow, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	correction, err := models.LatestApprovedCorrection(tx, scope)
	if err != nil {
		return nil, err
	}
	if correction == nil {
		return &ReportWindow{Start: time.Unix(0, 0).UTC(), OpeningQty: decimal.Zero}, nil
	}
	return &ReportWindow{
		Start:      correction.CreatedAt,
		OpeningQty: correction.PhysicalCount,
		Anchor:     correction,
	}, nil
}
