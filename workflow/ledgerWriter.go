package workflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockpit/ledger/config"
	"github.com/stockpit/ledger/models"
	"github.com/stockpit/ledger/utils"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/stockpit/ledger/workflow")

// StockMovementInput describes one inventory movement to append.
type StockMovementInput struct {
	Scope         models.StockScope    `validate:"required"`
	MovementType  models.MovementType  `validate:"required"`
	QtyDelta      decimal.Decimal      `json:"qty_delta"`
	UnitCost      *decimal.Decimal     `json:"unit_cost"`
	ReferenceType models.ReferenceType `json:"reference_type"`
	ReferenceId   int                  `json:"reference_id"`
	CreatedBy     string               `json:"created_by"`
	CorrelationId string               `json:"correlation_id"`
}

func (in *StockMovementInput) validate() error {
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	if err := in.Scope.Validate(); err != nil {
		return err
	}
	if !in.MovementType.Valid() {
		return fmt.Errorf("unknown movement type %q", in.MovementType)
	}
	if err := in.MovementType.ValidateDelta(in.QtyDelta); err != nil {
		return err
	}
	if in.MovementType.CostBearing() && in.UnitCost != nil && in.UnitCost.IsNegative() {
		return fmt.Errorf("unit cost cannot be negative, got %s", in.UnitCost)
	}
	return nil
}

// AppendMovement appends one ledger entry and synchronously updates the
// matching projection, as one atomic unit inside the caller's transaction.
// Business-document handlers run this in the same transaction as the parent
// document's state change, so a failed append aborts the whole operation.
//
// The new balance comes from an atomic UPDATE..RETURNING on the projection
// row, not from a read-then-write on the ledger tail: two concurrent appends
// on the same scope serialize on the row lock and both land on a fresh base.
func AppendMovement(tx *gorm.DB, logger *logrus.Logger, in *StockMovementInput) (*models.StockLedgerEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("append movement: tx is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if in == nil {
		return nil, fmt.Errorf("append movement: input is nil")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if ctx := tx.Statement.Context; ctx != nil {
		spanCtx, span := tracer.Start(ctx, "ledger.append")
		defer span.End()
		tx = tx.WithContext(spanCtx)
	}

	// The ledger tail is consulted only for drift detection; the projection
	// row is the serialization point.
	tail, err := models.LastEntry(tx, in.Scope)
	if err != nil {
		return nil, err
	}

	newBalance, err := models.IncrementProjection(tx, in.Scope, in.QtyDelta)
	if err != nil {
		return nil, err
	}

	previous := newBalance.Sub(in.QtyDelta)
	if tail != nil && tail.BalanceAfter.Sub(previous).Abs().Cmp(models.BalanceTolerance) >= 0 {
		// Drift existed before this append. The projection wins (it is the
		// serialization point); the reconciliation checker reports the gap.
		logger.WithFields(logrus.Fields{
			"scope":           in.Scope.String(),
			"tail_balance":    tail.BalanceAfter.String(),
			"projection_base": previous.String(),
		}).Warn("ledger.append.pre_existing_drift")
	}

	entry := &models.StockLedgerEntry{
		BusinessId:    in.Scope.BusinessId,
		ProductId:     in.Scope.ProductId,
		VariationId:   in.Scope.VariationId,
		LocationId:    in.Scope.LocationId,
		MovementType:  in.MovementType,
		QtyDelta:      in.QtyDelta,
		BalanceAfter:  newBalance,
		UnitCost:      in.UnitCost,
		ReferenceType: in.ReferenceType,
		ReferenceId:   in.ReferenceId,
		CreatedBy:     in.CreatedBy,
		CorrelationId: in.CorrelationId,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}

	if in.MovementType.CostBearing() && in.UnitCost != nil {
		if err := models.SetProjectionUnitCost(tx, in.Scope, *in.UnitCost); err != nil {
			return nil, err
		}
	}

	return entry, nil
}

// AppendMovements appends a batch in order, stopping at the first failure.
// Incoming movements are routed before outgoing ones so that same-instant
// receipts are never consumed before they land.
func AppendMovements(tx *gorm.DB, logger *logrus.Logger, inputs []*StockMovementInput) ([]*models.StockLedgerEntry, error) {
	incoming := make([]*StockMovementInput, 0)
	outgoing := make([]*StockMovementInput, 0)
	for _, in := range inputs {
		if in == nil {
			continue
		}
		if in.QtyDelta.IsNegative() {
			outgoing = append(outgoing, in)
		} else {
			incoming = append(incoming, in)
		}
	}

	entries := make([]*models.StockLedgerEntry, 0, len(inputs))
	for _, in := range append(incoming, outgoing...) {
		entry, err := AppendMovement(tx, logger, in)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
